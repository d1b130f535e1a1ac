package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"drivermonitor/internal/config"
	"drivermonitor/internal/dto"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/model"
	"drivermonitor/internal/repository/sqlite"
	"drivermonitor/internal/service/inference"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInferer struct {
	mu     sync.Mutex
	result dto.BehaviorResult
	err    error
	frames []string
}

func (f *fakeInferer) Infer(_ context.Context, frame string) (dto.BehaviorResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return f.result, f.err
}

func (f *fakeInferer) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeInferer) DrowsinessStrategy() string { return "probability" }

var allQuiet = dto.BehaviorResult{Drowsiness: "No", Drinking: "No", Phone: "No", Smoking: "No"}

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

func postInfer(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/infer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestInferHandler_OK(t *testing.T) {
	inferer := &fakeInferer{result: dto.BehaviorResult{Drowsiness: "High", Drinking: "No", Phone: "Yes", Smoking: "No"}}
	h := InferHandler(inferer, &config.Config{MaxBodyMB: 1}, testLogger())

	rec := postInfer(t, h, `{"frame":"data:image/jpeg;base64,AAAA"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"drowsiness":"High","drinking":"No","phone":"Yes","smoking":"No"}`, rec.Body.String())
	assert.Equal(t, []string{"data:image/jpeg;base64,AAAA"}, inferer.frames)
}

func TestInferHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{"frame":`, nil, http.StatusBadRequest},
		{"invalid frame", `{"frame":"nope"}`, fmt.Errorf("%w: frame is not a data URL", inference.ErrInvalidFrame), http.StatusBadRequest},
		{"missing frame", `{}`, fmt.Errorf("%w: frame is missing", inference.ErrInvalidFrame), http.StatusBadRequest},
		{"model fault", `{"frame":"data:,AAAA"}`, fmt.Errorf("%w: boom", inference.ErrInference), http.StatusInternalServerError},
		{"cancelled", `{"frame":"data:,AAAA"}`, context.Canceled, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := InferHandler(&fakeInferer{result: allQuiet, err: tt.err}, &config.Config{}, testLogger())

			rec := postInfer(t, h, tt.body)

			assert.Equal(t, tt.want, rec.Code)
			// a failed request never looks like a valid result
			assert.NotContains(t, rec.Body.String(), `"drowsiness"`)
		})
	}
}

func TestInferHandler_MethodNotAllowed(t *testing.T) {
	h := InferHandler(&fakeInferer{}, &config.Config{}, testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/infer", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInferHandler_BodyTooLarge(t *testing.T) {
	inferer := &fakeInferer{result: allQuiet}
	h := InferHandler(inferer, &config.Config{MaxBodyMB: 1}, testLogger())

	body := `{"frame":"data:image/png;base64,` + strings.Repeat("A", 2<<20) + `"}`
	rec := postInfer(t, h, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, inferer.frames)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(&fakeInferer{}, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","drowsiness":"probability"}`, rec.Body.String())
}

func TestStreamWebsocketHandler(t *testing.T) {
	inferer := &fakeInferer{result: dto.BehaviorResult{Drowsiness: "Low", Drinking: "No", Phone: "No", Smoking: "Yes"}}
	server := httptest.NewServer(StreamWebsocketHandler(inferer, &config.Config{}, testLogger()))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	require.NoError(t, conn.WriteJSON(dto.InferRequest{Frame: "data:image/jpeg;base64,AAAA"}))
	var result dto.BehaviorResult
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, inferer.result, result)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var errResp dto.ErrorResponse
	require.NoError(t, conn.ReadJSON(&errResp))
	assert.Equal(t, "Invalid JSON message", errResp.Error)

	inferer.fail(fmt.Errorf("%w: bad", inference.ErrInvalidFrame))
	require.NoError(t, conn.WriteJSON(dto.InferRequest{Frame: "bad"}))
	require.NoError(t, conn.ReadJSON(&errResp))
	assert.Contains(t, errResp.Error, "invalid frame")
}

type fakeSnapshotStore struct {
	dir     string
	cleared bool
	deleted []string
	err     error
}

func (f *fakeSnapshotStore) Dir() string { return f.dir }

func (f *fakeSnapshotStore) Clear() error {
	f.cleared = true
	return f.err
}

func (f *fakeSnapshotStore) Delete(filename string) error {
	f.deleted = append(f.deleted, filename)
	return f.err
}

func setupAlerts(t *testing.T) *sqlite.AlertRepository {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewAlertRepository(db)
	base := time.Now().Add(-time.Hour)
	var alerts []model.Alert
	for i := 0; i < 5; i++ {
		alerts = append(alerts, model.Alert{RequestID: fmt.Sprint(i), Behavior: "phone", Level: "Yes", Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	alerts = append(alerts, model.Alert{RequestID: "d", Behavior: "drowsiness", Level: "High", Timestamp: base})
	require.NoError(t, repo.InsertBatch(alerts))
	return repo
}

func TestGetAlertsHandler(t *testing.T) {
	h := GetAlertsHandler(setupAlerts(t), testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts?behavior=phone&limit=2&page=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var data dto.AlertsData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Len(t, data.Alerts, 2)
	assert.Equal(t, 5, data.Length)
	assert.Equal(t, 3, data.TotalPages)
	assert.Equal(t, 2, data.CurrentPage)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts?level=Critical", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alerts":[]`)
}

func TestAlertStatsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	AlertStatsHandler(setupAlerts(t), testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats dto.AlertStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 6, stats.TotalAlerts)
	assert.Equal(t, 5, stats.PerBehavior["phone"])
	assert.Equal(t, 1, stats.PerLevel["High"])
}

func TestClearAlertsHandler(t *testing.T) {
	repo := setupAlerts(t)
	store := &fakeSnapshotStore{err: errors.New("disk busy")}
	h := ClearAlertsHandler(repo, store, testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts/clear", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/alerts/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, store.cleared)

	count, err := repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestViewSnapshotHandler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snap.jpg"), []byte("jpeg-data"), 0644))
	h := ViewSnapshotHandler(&fakeSnapshotStore{dir: dir})

	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"?filename=../secret.txt", http.StatusBadRequest},
		{"?filename=missing.jpg", http.StatusNotFound},
		{"?filename=snap.jpg", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots/view"+tt.query, nil))
		assert.Equal(t, tt.want, rec.Code, "query %q", tt.query)
	}
}

func TestLogsHandlers(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewLogger(&config.Config{LogDirectory: dir})
	defer log.Close()

	log.Warning("brake check %d", 7)

	rec := httptest.NewRecorder()
	ShowLogsHandler(log, logger.WarningFile).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "brake check 7")

	rec = httptest.NewRecorder()
	ClearLogsHandler(log, logger.WarningFile).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	content, err := os.ReadFile(filepath.Join(dir, logger.WarningFile))
	require.NoError(t, err)
	assert.Empty(t, content)

	rec = httptest.NewRecorder()
	ShowLogsHandler(testLogger(), logger.InfoFile).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginAndLogout(t *testing.T) {
	h := LoginHandler(&config.Config{Password: "s3cret"}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=s3cret"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "true", rec.Result().Cookies()[0].Value)

	rec = httptest.NewRecorder()
	LogoutHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestDeleteSnapshotHandler(t *testing.T) {
	store := &fakeSnapshotStore{}
	h := DeleteSnapshotHandler(store, testLogger())

	tests := []struct {
		method string
		query  string
		want   int
	}{
		{http.MethodGet, "?filename=snap.jpg", http.StatusMethodNotAllowed},
		{http.MethodPost, "", http.StatusBadRequest},
		{http.MethodPost, "?filename=../alerts.db", http.StatusBadRequest},
		{http.MethodDelete, "?filename=snap.jpg", http.StatusNoContent},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/snapshots/delete"+tt.query, nil))
		assert.Equal(t, tt.want, rec.Code, "%s %q", tt.method, tt.query)
	}
	assert.Equal(t, []string{"snap.jpg"}, store.deleted)

	store.err = errors.New("disk busy")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots/delete?filename=other.jpg", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSnapshotDetailHandler(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	snapshots := sqlite.NewSnapshotRepository(db)
	alerts := sqlite.NewAlertRepository(db)

	now := time.Now()
	id, err := snapshots.Insert(&model.Snapshot{RequestID: "req", Filename: "snap.jpg", Timestamp: now,
		Drowsiness: "High", Drinking: "No", Phone: "Yes", Smoking: "No"})
	require.NoError(t, err)
	require.NoError(t, alerts.InsertBatch([]model.Alert{
		{SnapshotID: id, RequestID: "req", Behavior: "phone", Level: "Yes", Timestamp: now},
		{SnapshotID: id, RequestID: "req", Behavior: "drowsiness", Level: "High", Timestamp: now},
	}))

	h := SnapshotDetailHandler(snapshots, alerts, testLogger())

	for _, query := range []string{"?filename=snap.jpg", fmt.Sprintf("?id=%d", id)} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots/detail"+query, nil))

		require.Equal(t, http.StatusOK, rec.Code, query)
		var detail dto.SnapshotDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
		require.NotNil(t, detail.Snapshot)
		assert.Equal(t, "snap.jpg", detail.Snapshot.Filename)
		require.Len(t, detail.Alerts, 2)
		assert.Equal(t, "drowsiness", detail.Alerts[0].Behavior)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"?id=abc", http.StatusBadRequest},
		{"?id=999", http.StatusNotFound},
		{"?filename=missing.jpg", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots/detail"+tt.query, nil))
		assert.Equal(t, tt.want, rec.Code, "query %q", tt.query)
	}
}
