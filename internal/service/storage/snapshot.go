package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"drivermonitor/internal/config"
	"drivermonitor/internal/dto"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/model"
	"drivermonitor/internal/repository"
	"drivermonitor/internal/service/behavior"
)

const timestampLayout = "2006-01-02_15-04-05.000"

// SnapshotService buffers flagged frames in memory and periodically flushes
// them to disk together with their alert rows.
type SnapshotService struct {
	dir           string
	limit         int
	flushInterval time.Duration
	snapshots     []dto.BufferedSnapshot
	mu            sync.Mutex
	logger        *logger.Logger
	snapshotRepo  repository.SnapshotRepository
	alertRepo     repository.AlertRepository
}

// NewSnapshotService creates a SnapshotService writing to the configured directory.
func NewSnapshotService(config *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository, alertRepo repository.AlertRepository) *SnapshotService {
	interval := time.Duration(config.SnapshotFlushInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &SnapshotService{
		dir:           config.SnapshotDirectory,
		limit:         config.SnapshotBufferLimit,
		flushInterval: interval,
		snapshots:     make([]dto.BufferedSnapshot, 0),
		logger:        logger,
		snapshotRepo:  snapshotRepo,
		alertRepo:     alertRepo,
	}
}

// Dir returns the directory snapshots are written to.
func (s *SnapshotService) Dir() string {
	return s.dir
}

// Run flushes the buffer on every tick until ctx is cancelled, then flushes once more.
func (s *SnapshotService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushSnapshots()
			return
		case <-ticker.C:
			s.FlushSnapshots()
		}
	}
}

// AddSnapshot buffers a frame. It returns false when the buffer is full for
// the current flush interval.
func (s *SnapshotService) AddSnapshot(requestID string, timestamp time.Time, result dto.BehaviorResult, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) >= s.limit {
		return false
	}

	s.snapshots = append(s.snapshots, dto.BufferedSnapshot{
		RequestID: requestID,
		Timestamp: timestamp,
		Result:    result,
		Data:      data,
	})
	s.logger.Info("Snapshot buffer: %d/%d", len(s.snapshots), s.limit)
	return true
}

// Pending returns the number of buffered snapshots.
func (s *SnapshotService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// FlushSnapshots writes buffered snapshots to disk, records them in the
// database and resets the buffer. It returns the number of snapshots saved.
func (s *SnapshotService) FlushSnapshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, snap := range s.snapshots {
		filename := SnapshotFilename(snap.Timestamp, snap.RequestID, snap.Result)
		fullpath := filepath.Join(s.dir, filename)

		if err := os.WriteFile(fullpath, snap.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}

		if s.snapshotRepo != nil {
			if err := s.record(snap, filename, fullpath); err != nil {
				s.logger.Error("Error saving snapshot %s to database: %v", filename, err)
				continue
			}
		}

		savedCount++
	}

	s.logger.Info("Flushed %d snapshots to disk", savedCount)
	s.snapshots = s.snapshots[:0]
	return savedCount
}

func (s *SnapshotService) record(snap dto.BufferedSnapshot, filename, fullpath string) error {
	snapshotID, err := s.snapshotRepo.Insert(&model.Snapshot{
		RequestID:  snap.RequestID,
		Filename:   filename,
		Timestamp:  snap.Timestamp,
		FilePath:   fullpath,
		FileSize:   int64(len(snap.Data)),
		Drowsiness: snap.Result.Drowsiness,
		Drinking:   snap.Result.Drinking,
		Phone:      snap.Result.Phone,
		Smoking:    snap.Result.Smoking,
	})
	if err != nil {
		return err
	}

	if s.alertRepo == nil {
		return nil
	}

	var alerts []model.Alert
	for name, level := range behavior.Flagged(snap.Result) {
		alerts = append(alerts, model.Alert{
			SnapshotID: snapshotID,
			RequestID:  snap.RequestID,
			Behavior:   name,
			Level:      level,
			Timestamp:  snap.Timestamp,
		})
	}
	if len(alerts) == 0 {
		return nil
	}
	return s.alertRepo.InsertBatch(alerts)
}

// Clear removes every stored snapshot file and its database rows.
func (s *SnapshotService) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Error("Error deleting snapshot %s: %v", entry.Name(), err)
		}
	}

	s.snapshots = s.snapshots[:0]

	if s.snapshotRepo != nil {
		return s.snapshotRepo.DeleteAll()
	}
	return nil
}

// Delete removes one stored snapshot file and its database rows. Unknown
// filenames are not an error.
func (s *SnapshotService) Delete(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot %s: %w", filename, err)
	}

	if s.snapshotRepo != nil {
		return s.snapshotRepo.DeleteByFilename(filename)
	}
	return nil
}

// SnapshotFilename builds "<timestamp>_<flags>_<id>.jpg", where flags lists
// the flagged behaviors in name order and levels other than Yes are appended.
func SnapshotFilename(timestamp time.Time, requestID string, result dto.BehaviorResult) string {
	flagged := behavior.Flagged(result)

	names := make([]string, 0, len(flagged))
	for name := range flagged {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if level := flagged[name]; level != behavior.Yes {
			name += "-" + strings.ToLower(level)
		}
		parts = append(parts, name)
	}

	id := requestID
	if len(id) > 8 {
		id = id[:8]
	}

	return fmt.Sprintf("%s_%s_%s.jpg", timestamp.Format(timestampLayout), strings.Join(parts, "_"), id)
}

// ParseSnapshotFilename reverses SnapshotFilename.
func ParseSnapshotFilename(filename string) (time.Time, string, dto.BehaviorResult, error) {
	result := behavior.DefaultResult()

	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return time.Time{}, "", result, fmt.Errorf("unexpected snapshot filename %q", filename)
	}

	timestamp, err := time.ParseInLocation(timestampLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return time.Time{}, "", result, fmt.Errorf("invalid timestamp in %q: %w", filename, err)
	}

	for _, flag := range parts[2 : len(parts)-1] {
		name, level, hasLevel := strings.Cut(flag, "-")
		value := behavior.Yes
		if hasLevel && level != "" {
			value = strings.ToUpper(level[:1]) + level[1:]
		}

		switch name {
		case "drowsiness":
			result.Drowsiness = value
		case behavior.LabelDrinking:
			result.Drinking = value
		case behavior.LabelPhone:
			result.Phone = value
		case behavior.LabelSmoking:
			result.Smoking = value
		default:
			return time.Time{}, "", result, fmt.Errorf("unknown behavior %q in %q", name, filename)
		}
	}

	return timestamp, parts[len(parts)-1], result, nil
}
