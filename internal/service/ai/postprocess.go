package ai

import (
	"image"
	"math"
	"sort"
)

// Letterbox describes how a frame was scaled and padded into a square model input.
type Letterbox struct {
	Scale float64
	PadX  int
	PadY  int
	// ResizedW and ResizedH are the frame dimensions after scaling, before padding.
	ResizedW int
	ResizedH int
	Size     int
}

// NewLetterbox fits a width x height frame into a size x size input, preserving aspect.
func NewLetterbox(width, height, size int) Letterbox {
	scale := float64(size) / float64(max(width, height))
	rw := int(math.Round(float64(width) * scale))
	rh := int(math.Round(float64(height) * scale))

	return Letterbox{
		Scale:    scale,
		PadX:     (size - rw) / 2,
		PadY:     (size - rh) / 2,
		ResizedW: rw,
		ResizedH: rh,
		Size:     size,
	}
}

// ToFrame maps a center-format box from model input space back onto the original frame.
func (l Letterbox) ToFrame(cx, cy, w, h float32) image.Rectangle {
	x0 := (float64(cx-w/2) - float64(l.PadX)) / l.Scale
	y0 := (float64(cy-h/2) - float64(l.PadY)) / l.Scale
	x1 := (float64(cx+w/2) - float64(l.PadX)) / l.Scale
	y1 := (float64(cy+h/2) - float64(l.PadY)) / l.Scale

	return image.Rect(int(x0), int(y0), int(x1), int(y1))
}

// Candidate is one anchor that cleared the confidence threshold, before NMS.
type Candidate struct {
	Class      int
	Confidence float32
	Box        image.Rectangle
}

// DecodeYOLOv8 reads a [1, 4+classes, anchors] output laid out row-major and returns
// the anchors whose best class score is at least threshold.
func DecodeYOLOv8(data []float32, classes, anchors int, threshold float32, lb Letterbox) []Candidate {
	if classes <= 0 || anchors <= 0 || len(data) < (4+classes)*anchors {
		return nil
	}

	var candidates []Candidate
	for i := 0; i < anchors; i++ {
		bestClass := -1
		var bestScore float32
		for c := 0; c < classes; c++ {
			score := data[(4+c)*anchors+i]
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}

		cx := data[i]
		cy := data[anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		candidates = append(candidates, Candidate{
			Class:      bestClass,
			Confidence: bestScore,
			Box:        lb.ToFrame(cx, cy, w, h),
		})
	}
	return candidates
}

// SuppressFunc runs non-maximum suppression over one set of boxes and returns
// the indices that survive.
type SuppressFunc func(boxes []image.Rectangle, scores []float32) []int

// SuppressPerClass applies suppress to each class separately, so overlapping
// boxes of different classes both survive. Results are ordered by class.
func SuppressPerClass(candidates []Candidate, suppress SuppressFunc) []Candidate {
	groups := make(map[int][]Candidate)
	for _, c := range candidates {
		groups[c.Class] = append(groups[c.Class], c)
	}

	classes := make([]int, 0, len(groups))
	for class := range groups {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	var kept []Candidate
	for _, class := range classes {
		group := groups[class]
		boxes := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, c := range group {
			boxes[i] = c.Box
			scores[i] = c.Confidence
		}
		for _, idx := range suppress(boxes, scores) {
			kept = append(kept, group[idx])
		}
	}
	return kept
}

// Probabilities turns raw classifier scores into a distribution. Scores that already
// form one (non-negative, summing to ~1) are returned unchanged; otherwise softmax is applied.
func Probabilities(scores []float32) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	sum := 0.0
	isDistribution := true
	for i, s := range scores {
		if s < 0 || s > 1 {
			isDistribution = false
		}
		out[i] = float64(s)
		sum += float64(s)
	}
	if isDistribution && math.Abs(sum-1) < 0.01 {
		return out
	}

	maxScore := out[0]
	for _, s := range out {
		maxScore = math.Max(maxScore, s)
	}
	sum = 0
	for i, s := range out {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
