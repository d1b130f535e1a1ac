package sqlite

import (
	"database/sql"
	"fmt"

	"drivermonitor/internal/dto"
	"drivermonitor/internal/model"
)

// AlertRepository implements repository.AlertRepository for SQLite.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new SQLite alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// InsertBatch adds multiple alerts in a single transaction.
func (r *AlertRepository) InsertBatch(alerts []model.Alert) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO alerts (snapshot_id, request_id, behavior, level, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range alerts {
		if _, err := stmt.Exec(nullableID(a.SnapshotID), a.RequestID, a.Behavior, a.Level, a.Timestamp); err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	return tx.Commit()
}

// whereClause builds the filter part shared by GetAll and GetTotalCount.
func whereClause(filter *dto.AlertFilters) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}

	if filter == nil {
		return query, args
	}

	if filter.Behavior != "" {
		query += " AND a.behavior = ?"
		args = append(args, filter.Behavior)
	}

	if filter.Level != "" {
		query += " AND a.level = ?"
		args = append(args, filter.Level)
	}

	if !filter.DateAfter.IsZero() {
		query += " AND a.timestamp >= ?"
		args = append(args, filter.DateAfter)
	}

	if !filter.DateBefore.IsZero() {
		query += " AND a.timestamp <= ?"
		args = append(args, filter.DateBefore)
	}

	return query, args
}

// GetAll retrieves alerts, newest first, based on filter criteria.
func (r *AlertRepository) GetAll(filter *dto.AlertFilters) ([]model.Alert, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `
		SELECT a.id, a.snapshot_id, a.request_id, a.behavior, a.level, a.timestamp, COALESCE(s.filename, '')
		FROM alerts a
		LEFT JOIN snapshots s ON s.id = a.snapshot_id` + where + ` ORDER BY a.timestamp DESC, a.id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetTotalCount returns the number of alerts matching the filter.
func (r *AlertRepository) GetTotalCount(filter *dto.AlertFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM alerts a`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// GetBySnapshotID retrieves all alerts attached to a snapshot.
func (r *AlertRepository) GetBySnapshotID(snapshotID int64) ([]model.Alert, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT a.id, a.snapshot_id, a.request_id, a.behavior, a.level, a.timestamp, COALESCE(s.filename, '')
		FROM alerts a
		LEFT JOIN snapshots s ON s.id = a.snapshot_id
		WHERE a.snapshot_id = ?
		ORDER BY a.behavior
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetStats returns counts of alerts per behavior and per level.
func (r *AlertRepository) GetStats() (*dto.AlertStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &dto.AlertStats{
		PerBehavior: make(map[string]int),
		PerLevel:    make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&stats.TotalAlerts); err != nil {
		return nil, err
	}

	if err := countGrouped(r.db.Conn(), `SELECT behavior, COUNT(*) FROM alerts GROUP BY behavior`, stats.PerBehavior); err != nil {
		return nil, err
	}

	if err := countGrouped(r.db.Conn(), `SELECT level, COUNT(*) FROM alerts GROUP BY level`, stats.PerLevel); err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteAll removes every alert.
func (r *AlertRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM alerts`); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}
	return nil
}

func countGrouped(conn *sql.DB, query string, into map[string]int) error {
	rows, err := conn.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

func scanAlerts(rows *sql.Rows) ([]model.Alert, error) {
	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var snapshotID sql.NullInt64
		if err := rows.Scan(&a.ID, &snapshotID, &a.RequestID, &a.Behavior, &a.Level, &a.Timestamp, &a.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.SnapshotID = snapshotID.Int64
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}
