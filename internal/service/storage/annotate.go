package storage

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"drivermonitor/internal/dto"
	"drivermonitor/internal/service/behavior"

	"gocv.io/x/gocv"
)

// Annotate writes the flagged behaviors onto the frame and re-encodes it as JPEG.
func Annotate(frame []byte, result dto.BehaviorResult) ([]byte, error) {
	red := color.RGBA{R: 255, G: 0, B: 0, A: 0}

	mat, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode image: empty frame")
	}

	for i, label := range flagLabels(result) {
		pt := image.Pt(10, 25+i*25)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.7, red, 2); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	annotated := make([]byte, len(buf.GetBytes()))
	copy(annotated, buf.GetBytes())

	return annotated, nil
}

// IsJPEG reports whether data starts with a JPEG start-of-image marker.
func IsJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// flagLabels returns "behavior: level" lines in a stable order.
func flagLabels(result dto.BehaviorResult) []string {
	flagged := behavior.Flagged(result)

	names := make([]string, 0, len(flagged))
	for name := range flagged {
		names = append(names, name)
	}
	sort.Strings(names)

	labels := make([]string, 0, len(names))
	for _, name := range names {
		labels = append(labels, name+": "+flagged[name])
	}
	return labels
}
