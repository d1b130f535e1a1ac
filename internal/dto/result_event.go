package dto

import "time"

// ResultEvent is pushed to dashboard viewers for every answered frame.
type ResultEvent struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Result    BehaviorResult `json:"result"`
	Image     string         `json:"image,omitempty"`
}
