package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"drivermonitor/internal/config"
	"drivermonitor/internal/dto"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/repository/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T, limit int) (*SnapshotService, *sqlite.SnapshotRepository, *sqlite.AlertRepository) {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	snapshots := sqlite.NewSnapshotRepository(db)
	alerts := sqlite.NewAlertRepository(db)

	cfg := &config.Config{
		SnapshotDirectory:     filepath.Join(t.TempDir(), "snapshots"),
		SnapshotBufferLimit:   limit,
		SnapshotFlushInterval: 1,
	}
	return NewSnapshotService(cfg, logger.NewWithWriter(io.Discard), snapshots, alerts), snapshots, alerts
}

func TestSnapshotFilename(t *testing.T) {
	ts := time.Date(2026, 5, 4, 13, 2, 1, 250_000_000, time.UTC)
	result := dto.BehaviorResult{Drowsiness: "Medium", Drinking: "No", Phone: "Yes", Smoking: "No"}

	name := SnapshotFilename(ts, "0f8e7d6c-aaaa-bbbb", result)

	assert.Equal(t, "2026-05-04_13-02-01.250_drowsiness-medium_phone_0f8e7d6c.jpg", name)
}

func TestSnapshotService_FlushWritesFilesAndAlerts(t *testing.T) {
	svc, snapshots, alerts := setupService(t, 10)

	result := dto.BehaviorResult{Drowsiness: "High", Drinking: "Yes", Phone: "No", Smoking: "No"}
	require.True(t, svc.AddSnapshot("req-1", time.Now(), result, []byte("jpeg")))
	assert.Equal(t, 1, svc.Pending())

	saved := svc.FlushSnapshots()

	assert.Equal(t, 1, saved)
	assert.Zero(t, svc.Pending())

	entries, err := os.ReadDir(svc.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	snap, err := snapshots.GetByFilename(entries[0].Name())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "High", snap.Drowsiness)
	assert.Equal(t, int64(4), snap.FileSize)

	rows, err := alerts.GetBySnapshotID(snap.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "drinking", rows[0].Behavior)
	assert.Equal(t, "drowsiness", rows[1].Behavior)
	assert.Equal(t, "High", rows[1].Level)
}

func TestSnapshotService_BufferLimit(t *testing.T) {
	svc, _, _ := setupService(t, 2)
	result := dto.BehaviorResult{Drowsiness: "No", Drinking: "No", Phone: "Yes", Smoking: "No"}

	assert.True(t, svc.AddSnapshot("a", time.Now(), result, []byte("1")))
	assert.True(t, svc.AddSnapshot("b", time.Now(), result, []byte("2")))
	assert.False(t, svc.AddSnapshot("c", time.Now(), result, []byte("3")))

	assert.Equal(t, 2, svc.FlushSnapshots())
	assert.True(t, svc.AddSnapshot("d", time.Now(), result, []byte("4")))
}

func TestSnapshotService_RunFlushesOnShutdown(t *testing.T) {
	svc, _, _ := setupService(t, 5)
	svc.flushInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	svc.AddSnapshot("x", time.Now(), dto.BehaviorResult{Smoking: "Yes"}, []byte("frame"))
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, svc.Pending())
}

func TestSnapshotService_Clear(t *testing.T) {
	svc, snapshots, _ := setupService(t, 5)

	svc.AddSnapshot("x", time.Now(), dto.BehaviorResult{Phone: "Yes"}, []byte("frame"))
	require.Equal(t, 1, svc.FlushSnapshots())

	require.NoError(t, svc.Clear())

	entries, err := os.ReadDir(svc.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)

	size, err := snapshots.GetDirectorySize()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestSnapshotService_Delete(t *testing.T) {
	svc, snapshots, alerts := setupService(t, 5)

	svc.AddSnapshot("x", time.Now(), dto.BehaviorResult{Drinking: "Yes", Smoking: "Yes"}, []byte("frame"))
	require.Equal(t, 1, svc.FlushSnapshots())

	entries, err := os.ReadDir(svc.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()

	snap, err := snapshots.GetByFilename(name)
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.NoError(t, svc.Delete(name))

	_, err = os.Stat(filepath.Join(svc.Dir(), name))
	assert.True(t, os.IsNotExist(err))

	gone, err := snapshots.GetByFilename(name)
	require.NoError(t, err)
	assert.Nil(t, gone)

	rows, err := alerts.GetBySnapshotID(snap.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.NoError(t, svc.Delete("never-existed.jpg"))
}

func TestAnnotate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: 20, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := Annotate(buf.Bytes(), dto.BehaviorResult{Drowsiness: "Low", Phone: "Yes"})

	require.NoError(t, err)
	// JPEG SOI marker
	assert.Equal(t, []byte{0xFF, 0xD8}, out[:2])

	_, err = Annotate([]byte("not an image"), dto.BehaviorResult{})
	assert.Error(t, err)
}

func TestIsJPEG(t *testing.T) {
	assert.True(t, IsJPEG([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.False(t, IsJPEG([]byte("\x89PNG\r\n")))
	assert.False(t, IsJPEG([]byte{0xFF, 0xD8}))
	assert.False(t, IsJPEG(nil))
}

func TestParseSnapshotFilename(t *testing.T) {
	ts := time.Date(2026, 5, 4, 13, 2, 1, 250_000_000, time.Local)
	result := dto.BehaviorResult{Drowsiness: "Medium", Drinking: "No", Phone: "Yes", Smoking: "Yes"}

	parsedTS, id, parsed, err := ParseSnapshotFilename(SnapshotFilename(ts, "abcdef0123", result))

	require.NoError(t, err)
	assert.True(t, ts.Equal(parsedTS))
	assert.Equal(t, "abcdef01", id)
	assert.Equal(t, result, parsed)

	for _, bad := range []string{"photo.jpg", "2026-05-04_13-02-01.250_seatbelt_abc.jpg", "yesterday_noon_phone_abc.jpg"} {
		_, _, _, err := ParseSnapshotFilename(bad)
		assert.Error(t, err, bad)
	}
}
