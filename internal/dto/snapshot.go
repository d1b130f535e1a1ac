package dto

import "time"

// BufferedSnapshot holds a flagged frame and its result before flushing to disk.
type BufferedSnapshot struct {
	RequestID string
	Timestamp time.Time
	Result    BehaviorResult
	Data      []byte
}
