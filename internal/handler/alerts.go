package handler

import (
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"drivermonitor/internal/dto"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/model"
	"drivermonitor/internal/repository"
)

const defaultAlertLimit = 24

// SnapshotStore is the part of the snapshot service the alert handlers need.
type SnapshotStore interface {
	Dir() string
	Clear() error
	Delete(filename string) error
}

// GetAlertsHandler returns a filtered page of alerts, newest first.
func GetAlertsHandler(alertRepo repository.AlertRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultAlertLimit)

		offset := (page - 1) * limit
		if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
			offset = v
			page = offset/limit + 1
		}

		filter := &dto.AlertFilters{
			Behavior:   q.Get("behavior"),
			Level:      q.Get("level"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     offset,
		}

		alerts, err := alertRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying alerts from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if alerts == nil {
			alerts = []model.Alert{}
		}

		totalCount, err := alertRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting alerts: %v", err)
			totalCount = len(alerts)
		}

		writeJSON(w, logger, http.StatusOK, dto.AlertsData{
			Alerts:      alerts,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// AlertStatsHandler returns alert counts per behavior and level.
func AlertStatsHandler(alertRepo repository.AlertRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := alertRepo.GetStats()
		if err != nil {
			logger.Error("Error computing alert stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// ClearAlertsHandler deletes every alert along with the stored snapshots.
func ClearAlertsHandler(alertRepo repository.AlertRepository, snapshots SnapshotStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if snapshots != nil {
			if err := snapshots.Clear(); err != nil {
				logger.Error("Error clearing snapshots: %v", err)
			}
		}

		if err := alertRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing alerts: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("All alerts cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

// ViewSnapshotHandler serves a single snapshot given by the "filename" query parameter.
func ViewSnapshotHandler(snapshots SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := snapshotFilename(w, r)
		if !ok {
			return
		}
		http.ServeFile(w, r, filepath.Join(snapshots.Dir(), filename))
	}
}

// DeleteSnapshotHandler removes one snapshot and, through the cascade, its alerts.
func DeleteSnapshotHandler(snapshots SnapshotStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filename, ok := snapshotFilename(w, r)
		if !ok {
			return
		}

		if err := snapshots.Delete(filename); err != nil {
			logger.Error("Error deleting snapshot %s: %v", filename, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted snapshot %s", filename)
		w.WriteHeader(http.StatusNoContent)
	}
}

// SnapshotDetailHandler returns a snapshot record and its alerts, looked up by
// "id" or "filename".
func SnapshotDetailHandler(snapshotRepo repository.SnapshotRepository, alertRepo repository.AlertRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			snapshot *model.Snapshot
			err      error
		)

		if rawID := r.URL.Query().Get("id"); rawID != "" {
			id, convErr := strconv.ParseInt(rawID, 10, 64)
			if convErr != nil || id <= 0 {
				http.Error(w, "Invalid id", http.StatusBadRequest)
				return
			}
			snapshot, err = snapshotRepo.GetByID(id)
		} else {
			filename, ok := snapshotFilename(w, r)
			if !ok {
				return
			}
			snapshot, err = snapshotRepo.GetByFilename(filename)
		}
		if err != nil {
			logger.Error("Error loading snapshot: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if snapshot == nil {
			http.NotFound(w, r)
			return
		}

		alerts, err := alertRepo.GetBySnapshotID(snapshot.ID)
		if err != nil {
			logger.Error("Error loading alerts for snapshot %d: %v", snapshot.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if alerts == nil {
			alerts = []model.Alert{}
		}

		writeJSON(w, logger, http.StatusOK, dto.SnapshotDetail{Snapshot: snapshot, Alerts: alerts})
	}
}

// snapshotFilename reads the "filename" query parameter and rejects paths.
func snapshotFilename(w http.ResponseWriter, r *http.Request) (string, bool) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		http.Error(w, "Filename parameter is required", http.StatusBadRequest)
		return "", false
	}
	if filename != filepath.Base(filename) {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return "", false
	}
	return filename, true
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
