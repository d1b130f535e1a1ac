package ai

import (
	"errors"
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// ErrModelNotFound is returned when a model file does not exist on disk.
var ErrModelNotFound = errors.New("model file not found")

// loadNet reads an ONNX network and pins it to the default backend on CPU.
func loadNet(modelPath string) (gocv.Net, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return gocv.Net{}, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return gocv.Net{}, fmt.Errorf("failed to load network from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return gocv.Net{}, fmt.Errorf("failed to set preferable backend or target")
	}

	return net, nil
}

// outputData copies the float32 payload out of a network output so the Mat can be closed.
func outputData(output gocv.Mat) ([]float32, error) {
	if output.Empty() {
		return nil, fmt.Errorf("network produced no output")
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}
