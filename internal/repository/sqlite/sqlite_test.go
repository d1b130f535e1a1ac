package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"drivermonitor/internal/dto"
	"drivermonitor/internal/model"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file should exist")
	}
	return db
}

func insertSnapshot(t *testing.T, repo *SnapshotRepository, filename string, ts time.Time) int64 {
	t.Helper()

	id, err := repo.Insert(&model.Snapshot{
		RequestID:  "req-" + filename,
		Filename:   filename,
		Timestamp:  ts,
		FilePath:   "/snapshots/" + filename,
		FileSize:   100,
		Drowsiness: "High",
		Drinking:   "No",
		Phone:      "Yes",
		Smoking:    "No",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return id
}

func TestSnapshotRepository_InsertAndGet(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t))

	ts := time.Now().Truncate(time.Second)
	id := insertSnapshot(t, repo, "a.jpg", ts)
	if id <= 0 {
		t.Errorf("Expected positive ID, got %d", id)
	}

	byID, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID == nil {
		t.Fatal("Expected snapshot, got nil")
	}
	if byID.Drowsiness != "High" || byID.Phone != "Yes" {
		t.Errorf("Unexpected result columns: %+v", byID)
	}
	if !byID.Timestamp.Equal(ts) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", ts, byID.Timestamp)
	}

	byName, err := repo.GetByFilename("a.jpg")
	if err != nil {
		t.Fatalf("GetByFilename failed: %v", err)
	}
	if byName == nil || byName.ID != id {
		t.Errorf("Expected snapshot %d by filename, got %+v", id, byName)
	}
}

func TestSnapshotRepository_DuplicateFilename(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t))

	insertSnapshot(t, repo, "dup.jpg", time.Now())

	_, err := repo.Insert(&model.Snapshot{RequestID: "x", Filename: "dup.jpg", Timestamp: time.Now(), FilePath: "/x"})
	if err == nil {
		t.Error("Expected error for duplicate filename, got nil")
	}
}

func TestSnapshotRepository_NotFound(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t))

	s, err := repo.GetByID(4242)
	if err != nil {
		t.Fatalf("GetByID should not error for non-existent ID: %v", err)
	}
	if s != nil {
		t.Error("Expected nil for non-existent snapshot")
	}
}

func TestSnapshotRepository_DirectorySize(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t))

	size, err := repo.GetDirectorySize()
	if err != nil {
		t.Fatalf("GetDirectorySize failed: %v", err)
	}
	if size != 0 {
		t.Errorf("Expected 0 bytes, got %d", size)
	}

	insertSnapshot(t, repo, "a.jpg", time.Now())
	insertSnapshot(t, repo, "b.jpg", time.Now())

	size, _ = repo.GetDirectorySize()
	if size != 200 {
		t.Errorf("Expected 200 bytes, got %d", size)
	}
}

func TestSnapshotRepository_DeleteByFilenameRemovesAlerts(t *testing.T) {
	db := setupTestDB(t)
	snapshots := NewSnapshotRepository(db)
	alerts := NewAlertRepository(db)

	id := insertSnapshot(t, snapshots, "gone.jpg", time.Now())
	if err := alerts.InsertBatch([]model.Alert{
		{SnapshotID: id, RequestID: "r", Behavior: "drowsiness", Level: "High", Timestamp: time.Now()},
		{SnapshotID: id, RequestID: "r", Behavior: "phone", Level: "Yes", Timestamp: time.Now()},
	}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	if err := snapshots.DeleteByFilename("gone.jpg"); err != nil {
		t.Fatalf("DeleteByFilename failed: %v", err)
	}

	if s, _ := snapshots.GetByFilename("gone.jpg"); s != nil {
		t.Error("Snapshot should be deleted")
	}

	remaining, _ := alerts.GetBySnapshotID(id)
	if len(remaining) != 0 {
		t.Errorf("Expected alerts to be deleted, got %d", len(remaining))
	}

	// unknown filenames are not an error
	if err := snapshots.DeleteByFilename("never-existed.jpg"); err != nil {
		t.Errorf("DeleteByFilename of unknown file failed: %v", err)
	}
}

func TestAlertRepository_GetAllFilters(t *testing.T) {
	db := setupTestDB(t)
	snapshots := NewSnapshotRepository(db)
	repo := NewAlertRepository(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapID := insertSnapshot(t, snapshots, "s.jpg", base)

	entries := []model.Alert{
		{SnapshotID: snapID, RequestID: "1", Behavior: "drowsiness", Level: "High", Timestamp: base},
		{SnapshotID: snapID, RequestID: "1", Behavior: "phone", Level: "Yes", Timestamp: base},
		{RequestID: "2", Behavior: "drowsiness", Level: "Low", Timestamp: base.Add(time.Hour)},
		{RequestID: "3", Behavior: "smoking", Level: "Yes", Timestamp: base.Add(2 * time.Hour)},
	}
	if err := repo.InsertBatch(entries); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	all, err := repo.GetAll(&dto.AlertFilters{})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 alerts, got %d", len(all))
	}
	if all[0].Behavior != "smoking" {
		t.Errorf("Expected newest alert first, got %s", all[0].Behavior)
	}

	drowsy, _ := repo.GetAll(&dto.AlertFilters{Behavior: "drowsiness"})
	if len(drowsy) != 2 {
		t.Errorf("Expected 2 drowsiness alerts, got %d", len(drowsy))
	}

	high, _ := repo.GetAll(&dto.AlertFilters{Behavior: "drowsiness", Level: "High"})
	if len(high) != 1 || high[0].Snapshot != "s.jpg" {
		t.Errorf("Expected one High alert linked to s.jpg, got %+v", high)
	}

	later, _ := repo.GetAll(&dto.AlertFilters{DateAfter: base.Add(30 * time.Minute)})
	if len(later) != 2 {
		t.Errorf("Expected 2 alerts after date filter, got %d", len(later))
	}

	page, _ := repo.GetAll(&dto.AlertFilters{Limit: 2, Offset: 2})
	if len(page) != 2 {
		t.Errorf("Expected 2 alerts on second page, got %d", len(page))
	}

	count, err := repo.GetTotalCount(&dto.AlertFilters{Behavior: "drowsiness"})
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}
}

func TestAlertRepository_StatsAndDeleteAll(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))

	var alerts []model.Alert
	for _, level := range []string{"High", "High", "Medium"} {
		alerts = append(alerts, model.Alert{RequestID: "r", Behavior: "drowsiness", Level: level, Timestamp: time.Now()})
	}
	alerts = append(alerts, model.Alert{RequestID: "r", Behavior: "phone", Level: "Yes", Timestamp: time.Now()})
	if err := repo.InsertBatch(alerts); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	stats, err := repo.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalAlerts != 4 {
		t.Errorf("Expected 4 total alerts, got %d", stats.TotalAlerts)
	}
	if stats.PerBehavior["drowsiness"] != 3 || stats.PerBehavior["phone"] != 1 {
		t.Errorf("Unexpected per-behavior counts: %v", stats.PerBehavior)
	}
	if stats.PerLevel["High"] != 2 || stats.PerLevel["Yes"] != 1 {
		t.Errorf("Unexpected per-level counts: %v", stats.PerLevel)
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	count, _ := repo.GetTotalCount(nil)
	if count != 0 {
		t.Errorf("Expected 0 alerts after DeleteAll, got %d", count)
	}
}
