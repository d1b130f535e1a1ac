package dto

import "drivermonitor/internal/model"

// SnapshotDetail is a stored snapshot together with the alerts raised for it.
type SnapshotDetail struct {
	Snapshot *model.Snapshot `json:"snapshot"`
	Alerts   []model.Alert   `json:"alerts"`
}
