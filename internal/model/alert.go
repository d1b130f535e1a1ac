package model

import "time"

// Alert records one flagged behavior of one frame.
type Alert struct {
	ID         int64     `json:"id"`
	SnapshotID int64     `json:"snapshot_id"`
	RequestID  string    `json:"request_id"`
	Behavior   string    `json:"behavior"`
	Level      string    `json:"level"`
	Timestamp  time.Time `json:"timestamp"`
	Snapshot   string    `json:"snapshot,omitempty"`
}
