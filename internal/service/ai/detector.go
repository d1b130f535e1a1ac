package ai

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"drivermonitor/internal/service/behavior"

	"gocv.io/x/gocv"
)

// letterboxColor is the padding used by YOLO exports during training.
var letterboxColor = color.RGBA{R: 114, G: 114, B: 114, A: 0}

// Detector runs a detection model over a decoded frame.
type Detector interface {
	Detect(frame gocv.Mat) (behavior.DetectionSet, error)
}

// DetectorOptions configures a YOLODetector.
type DetectorOptions struct {
	ModelPath    string
	LabelsPath   string
	InputSize    int
	Confidence   float64
	NMSThreshold float64
}

// YOLODetector wraps an ONNX YOLOv8 export. Forward passes are serialized because
// a gocv.Net must not be used from several goroutines at once.
type YOLODetector struct {
	net          gocv.Net
	labels       []string
	inputSize    int
	confidence   float32
	nmsThreshold float32
	mu           sync.Mutex
}

// NewYOLODetector loads the network and its labels.
func NewYOLODetector(opts DetectorOptions) (*YOLODetector, error) {
	net, err := loadNet(opts.ModelPath)
	if err != nil {
		return nil, err
	}

	labels, err := LoadLabels(opts.LabelsPath)
	if err != nil {
		net.Close()
		return nil, err
	}

	return &YOLODetector{
		net:          net,
		labels:       labels,
		inputSize:    opts.InputSize,
		confidence:   float32(opts.Confidence),
		nmsThreshold: float32(opts.NMSThreshold),
	}, nil
}

// Detect returns the label of every box that survives the confidence threshold and NMS.
func (d *YOLODetector) Detect(frame gocv.Mat) (behavior.DetectionSet, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	lb := NewLetterbox(frame.Cols(), frame.Rows(), d.inputSize)

	input := gocv.NewMat()
	defer input.Close()
	d.letterbox(frame, &input, lb)

	blob := gocv.BlobFromImage(input, 1.0/255.0, image.Pt(lb.Size, lb.Size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	// [batch, 4+classes, anchors]
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected detector output shape %v", dims)
	}

	data, err := outputData(output)
	if err != nil {
		return nil, err
	}

	candidates := DecodeYOLOv8(data, dims[1]-4, dims[2], d.confidence, lb)
	if len(candidates) == 0 {
		return behavior.DetectionSet{}, nil
	}

	kept := SuppressPerClass(candidates, func(boxes []image.Rectangle, scores []float32) []int {
		return gocv.NMSBoxes(boxes, scores, d.confidence, d.nmsThreshold)
	})

	detections := make(behavior.DetectionSet, 0, len(kept))
	for _, c := range kept {
		detections = append(detections, d.label(c.Class))
	}
	return detections, nil
}

// letterbox scales frame into dst keeping aspect and pads the remainder.
func (d *YOLODetector) letterbox(frame gocv.Mat, dst *gocv.Mat, lb Letterbox) {
	resized := gocv.NewMat()
	defer resized.Close()

	gocv.Resize(frame, &resized, image.Pt(lb.ResizedW, lb.ResizedH), 0, 0, gocv.InterpolationLinear)

	top := lb.PadY
	bottom := lb.Size - lb.ResizedH - lb.PadY
	left := lb.PadX
	right := lb.Size - lb.ResizedW - lb.PadX
	gocv.CopyMakeBorder(resized, dst, top, bottom, left, right, gocv.BorderConstant, letterboxColor)
}

func (d *YOLODetector) label(class int) string {
	if class >= 0 && class < len(d.labels) {
		return d.labels[class]
	}
	return fmt.Sprintf("class%d", class)
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
