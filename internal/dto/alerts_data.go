package dto

import "drivermonitor/internal/model"

// AlertsData is the paginated alert listing served to the dashboard.
type AlertsData struct {
	Alerts      []model.Alert `json:"alerts"`
	Length      int           `json:"length"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int           `json:"limit"`
}

// AlertStats summarizes the stored alert log.
type AlertStats struct {
	TotalAlerts int            `json:"total_alerts"`
	PerBehavior map[string]int `json:"per_behavior"`
	PerLevel    map[string]int `json:"per_level"`
}
