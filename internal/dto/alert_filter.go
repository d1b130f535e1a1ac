package dto

import "time"

// AlertFilters narrows alert queries; zero values mean "no constraint".
type AlertFilters struct {
	Behavior   string
	Level      string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
