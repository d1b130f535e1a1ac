package dto

// BehaviorResult is the four-field answer returned for every inferred frame.
type BehaviorResult struct {
	Drowsiness string `json:"drowsiness"`
	Drinking   string `json:"drinking"`
	Phone      string `json:"phone"`
	Smoking    string `json:"smoking"`
}
