package repository

import (
	"drivermonitor/internal/dto"
	"drivermonitor/internal/model"
)

// SnapshotRepository defines the interface for snapshot data operations.
type SnapshotRepository interface {
	// Create operations
	Insert(s *model.Snapshot) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Snapshot, error)
	GetByFilename(filename string) (*model.Snapshot, error)
	GetDirectorySize() (int64, error)

	// Delete operations
	DeleteByFilename(filename string) error
	DeleteAll() error
}

// AlertRepository defines the interface for alert data operations.
type AlertRepository interface {
	// Create operations
	InsertBatch(alerts []model.Alert) error

	// Read operations
	GetAll(filter *dto.AlertFilters) ([]model.Alert, error)
	GetTotalCount(filter *dto.AlertFilters) (int, error)
	GetBySnapshotID(snapshotID int64) ([]model.Alert, error)
	GetStats() (*dto.AlertStats, error)

	// Delete operations
	DeleteAll() error
}
