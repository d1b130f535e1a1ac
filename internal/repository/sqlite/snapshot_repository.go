package sqlite

import (
	"database/sql"
	"fmt"

	"drivermonitor/internal/model"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `id, request_id, filename, timestamp, filepath, filesize, drowsiness, drinking, phone, smoking`

// Insert adds a new snapshot record to the database.
func (r *SnapshotRepository) Insert(s *model.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO snapshots (request_id, filename, timestamp, filepath, filesize, drowsiness, drinking, phone, smoking)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.RequestID, s.Filename, s.Timestamp, s.FilePath, s.FileSize, s.Drowsiness, s.Drinking, s.Phone, s.Smoking)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a snapshot by its ID.
func (r *SnapshotRepository) GetByID(id int64) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return scanSnapshot(r.db.Conn().QueryRow(`SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id))
}

// GetByFilename retrieves a snapshot by its filename.
func (r *SnapshotRepository) GetByFilename(filename string) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return scanSnapshot(r.db.Conn().QueryRow(`SELECT `+snapshotColumns+` FROM snapshots WHERE filename = ?`, filename))
}

func scanSnapshot(row *sql.Row) (*model.Snapshot, error) {
	var s model.Snapshot
	err := row.Scan(&s.ID, &s.RequestID, &s.Filename, &s.Timestamp, &s.FilePath, &s.FileSize,
		&s.Drowsiness, &s.Drinking, &s.Phone, &s.Smoking)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

// GetDirectorySize returns the total size in bytes of all stored snapshots.
func (r *SnapshotRepository) GetDirectorySize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM snapshots`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum snapshot sizes: %w", err)
	}
	return size, nil
}

// DeleteByFilename removes a snapshot and its alerts.
func (r *SnapshotRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	var snapshotID int64
	err := r.db.Conn().QueryRow(`SELECT id FROM snapshots WHERE filename = ?`, filename).Scan(&snapshotID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get snapshot id: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM alerts WHERE snapshot_id = ?`, snapshotID); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE id = ?`, snapshotID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// DeleteAll removes all snapshots and the alerts attached to them.
func (r *SnapshotRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM alerts WHERE snapshot_id IS NOT NULL`); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}
