package model

import "time"

// Snapshot is a stored frame in which at least one behavior was flagged.
type Snapshot struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id"`
	Filename   string    `json:"filename"`
	Timestamp  time.Time `json:"timestamp"`
	FilePath   string    `json:"filepath"`
	FileSize   int64     `json:"filesize"`
	Drowsiness string    `json:"drowsiness"`
	Drinking   string    `json:"drinking"`
	Phone      string    `json:"phone"`
	Smoking    string    `json:"smoking"`
}
