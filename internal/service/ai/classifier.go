package ai

import (
	"fmt"
	"image"
	"sync"

	"drivermonitor/internal/service/behavior"

	"gocv.io/x/gocv"
)

// Classifier assigns class probabilities to a decoded frame.
type Classifier interface {
	Classify(frame gocv.Mat) (behavior.ClassProbabilities, error)
}

// ClassifierOptions configures an ONNXClassifier.
type ClassifierOptions struct {
	ModelPath  string
	LabelsPath string
	InputSize  int
}

// ONNXClassifier wraps an ONNX image classification export.
type ONNXClassifier struct {
	net       gocv.Net
	labels    []string
	inputSize int
	mu        sync.Mutex
}

// NewONNXClassifier loads the network and its labels.
func NewONNXClassifier(opts ClassifierOptions) (*ONNXClassifier, error) {
	net, err := loadNet(opts.ModelPath)
	if err != nil {
		return nil, err
	}

	labels, err := LoadLabels(opts.LabelsPath)
	if err != nil {
		net.Close()
		return nil, err
	}

	return &ONNXClassifier{
		net:       net,
		labels:    labels,
		inputSize: opts.InputSize,
	}, nil
}

// Classify returns one probability per label.
func (c *ONNXClassifier) Classify(frame gocv.Mat) (behavior.ClassProbabilities, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(c.inputSize, c.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	c.mu.Lock()
	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	c.mu.Unlock()
	defer output.Close()

	scores, err := outputData(output)
	if err != nil {
		return nil, err
	}

	return LabelProbabilities(c.labels, scores)
}

// LabelProbabilities pairs raw scores with labels after normalizing them.
func LabelProbabilities(labels []string, scores []float32) (behavior.ClassProbabilities, error) {
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("classifier returned %d scores for %d labels", len(scores), len(labels))
	}

	probs := Probabilities(scores)
	out := make(behavior.ClassProbabilities, len(labels))
	for i, label := range labels {
		out[label] = probs[i]
	}
	return out, nil
}

// Close releases the network.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}
