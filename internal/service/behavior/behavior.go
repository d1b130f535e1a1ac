// Package behavior maps raw model outputs for a single frame onto the
// four-field result returned to callers.
package behavior

import (
	"sort"
	"strings"

	"drivermonitor/internal/dto"
)

// Answers for the yes/no fields.
const (
	Yes = "Yes"
	No  = "No"
)

// Level is the ordinal drowsiness answer.
type Level string

const (
	LevelNo     Level = "No"
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Probability cut-points for the drowsy class. High and Low require p strictly
// above their cut-point; Medium includes 0.5 itself.
const (
	HighThreshold   = 0.7
	MediumThreshold = 0.5
	LowThreshold    = 0.4
)

// Labels emitted by the models.
const (
	LabelPhone      = "phone"
	LabelDrinking   = "drinking"
	LabelSmoking    = "smoking"
	LabelEyesClosed = "eyes_closed"
	LabelYawning    = "yawning"
)

// DetectionSet is the unordered list of labels a detection model found in one frame.
// A label may appear once per matching box.
type DetectionSet []string

// Contains reports whether label is present, ignoring case.
func (s DetectionSet) Contains(label string) bool {
	for _, l := range s {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// ClassProbabilities maps class names to the probability a classifier assigned them.
type ClassProbabilities map[string]float64

// Distraction holds the three detection-driven fields.
type Distraction struct {
	Drinking string
	Phone    string
	Smoking  string
}

// ClassifyDistraction answers Yes for every behavior whose label is in detections.
func ClassifyDistraction(detections DetectionSet) Distraction {
	return Distraction{
		Drinking: yesNo(detections.Contains(LabelDrinking)),
		Phone:    yesNo(detections.Contains(LabelPhone)),
		Smoking:  yesNo(detections.Contains(LabelSmoking)),
	}
}

// DrowsinessFromProbabilities grades the probability of the drowsy class.
// The boolean is false when no class names drowsiness, in which case the level is No.
func DrowsinessFromProbabilities(probs ClassProbabilities) (Level, bool) {
	name, ok := DrowsyClass(probs)
	if !ok {
		return LevelNo, false
	}
	return LevelForProbability(probs[name]), true
}

// DrowsyClass finds the class whose name contains "drowsy" but not "non".
// With several candidates the lexicographically smallest name is used.
func DrowsyClass(probs ClassProbabilities) (string, bool) {
	names := make([]string, 0, len(probs))
	for name := range probs {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "drowsy") && !strings.Contains(lower, "non") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

// LevelForProbability applies the fixed cut-points.
func LevelForProbability(p float64) Level {
	switch {
	case p > HighThreshold:
		return LevelHigh
	case p >= MediumThreshold:
		return LevelMedium
	case p > LowThreshold:
		return LevelLow
	default:
		return LevelNo
	}
}

// DrowsinessFromDetections is the two-level variant for detection-style drowsiness models.
func DrowsinessFromDetections(detections DetectionSet) Level {
	if detections.Contains(LabelEyesClosed) || detections.Contains(LabelYawning) {
		return LevelHigh
	}
	return LevelNo
}

// Merge combines independently computed fields into one result.
func Merge(d Distraction, drowsiness Level) dto.BehaviorResult {
	if drowsiness == "" {
		drowsiness = LevelNo
	}
	return dto.BehaviorResult{
		Drowsiness: string(drowsiness),
		Drinking:   orNo(d.Drinking),
		Phone:      orNo(d.Phone),
		Smoking:    orNo(d.Smoking),
	}
}

// DefaultResult is the answer when nothing was detected.
func DefaultResult() dto.BehaviorResult {
	return Merge(Distraction{}, LevelNo)
}

// Flagged returns the behaviors whose answer is not No, keyed by behavior name.
func Flagged(r dto.BehaviorResult) map[string]string {
	flagged := make(map[string]string)
	if r.Drowsiness != "" && r.Drowsiness != No {
		flagged["drowsiness"] = r.Drowsiness
	}
	if r.Drinking == Yes {
		flagged[LabelDrinking] = Yes
	}
	if r.Phone == Yes {
		flagged[LabelPhone] = Yes
	}
	if r.Smoking == Yes {
		flagged[LabelSmoking] = Yes
	}
	return flagged
}

func yesNo(b bool) string {
	if b {
		return Yes
	}
	return No
}

func orNo(s string) string {
	if s == "" {
		return No
	}
	return s
}
