package service

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"drivermonitor/internal/config"
	"drivermonitor/internal/dto"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/metrics"
	"drivermonitor/internal/service/behavior"
	"drivermonitor/internal/service/inference"
	"drivermonitor/internal/service/storage"
)

const queueSize = 100

// Broadcaster sends a message to every dashboard viewer.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// SnapshotSink buffers flagged frames for persistence.
type SnapshotSink interface {
	AddSnapshot(requestID string, timestamp time.Time, result dto.BehaviorResult, data []byte) bool
}

// Manager receives observations from the inference pipeline and handles the
// side effects on a worker pool so that responses are never delayed.
type Manager struct {
	broadcaster Broadcaster
	snapshots   SnapshotSink
	logger      *logger.Logger

	processingQueue chan inference.Observation
	numWorkers      int

	stopMu  sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewManager starts the workers. snapshots may be nil when snapshots are disabled.
func NewManager(broadcaster Broadcaster, snapshots SnapshotSink, config *config.Config, logger *logger.Logger) *Manager {
	workers := config.ProcessingWorkers
	if workers < 1 {
		workers = 1
	}

	manager := &Manager{
		broadcaster:     broadcaster,
		snapshots:       snapshots,
		numWorkers:      workers,
		processingQueue: make(chan inference.Observation, queueSize),
		logger:          logger,
	}

	for i := 0; i < manager.numWorkers; i++ {
		manager.wg.Add(1)
		go manager.processingWorker(i)
	}

	manager.logger.Info("Manager started with %d worker(s)", manager.numWorkers)
	return manager
}

// Observe queues an observation. It never blocks; when the queue is full the
// observation is dropped.
func (m *Manager) Observe(obs inference.Observation) {
	m.stopMu.RLock()
	defer m.stopMu.RUnlock()

	if m.stopped {
		return
	}

	select {
	case m.processingQueue <- obs:
	default:
		metrics.ObservationsDropped.Inc()
		m.logger.Warning("Processing queue full - dropping observation %s", obs.RequestID)
	}
}

func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Info("Processing worker %d started", workerID)

	for obs := range m.processingQueue {
		m.process(obs)
	}

	m.logger.Info("Processing worker %d stopped", workerID)
}

func (m *Manager) process(obs inference.Observation) {
	m.sendToViewers(obs)

	if m.snapshots == nil || len(behavior.Flagged(obs.Result)) == 0 {
		return
	}

	frame, err := storage.Annotate(obs.Frame, obs.Result)
	if err != nil {
		if !storage.IsJPEG(obs.Frame) {
			m.logger.Error("Failed to annotate frame %s, skipping snapshot: %v", obs.RequestID, err)
			return
		}
		m.logger.Warning("Failed to annotate frame %s, storing it unannotated: %v", obs.RequestID, err)
		frame = obs.Frame
	}

	if !m.snapshots.AddSnapshot(obs.RequestID, obs.Timestamp, obs.Result, frame) {
		m.logger.Warning("Snapshot buffer full - skipping frame %s", obs.RequestID)
	}
}

func (m *Manager) sendToViewers(obs inference.Observation) {
	if m.broadcaster == nil {
		return
	}

	msg, err := json.Marshal(dto.ResultEvent{
		RequestID: obs.RequestID,
		Timestamp: obs.Timestamp,
		Result:    obs.Result,
		Image:     base64.StdEncoding.EncodeToString(obs.Frame),
	})
	if err != nil {
		m.logger.Error("Failed to encode result event: %v", err)
		return
	}

	if !m.broadcaster.Broadcast(msg) {
		m.logger.Warning("Viewer queue full - dropping result %s", obs.RequestID)
	}
}

// Stop drains the queue and waits for the workers to finish.
func (m *Manager) Stop() {
	m.stopMu.Lock()
	if m.stopped {
		m.stopMu.Unlock()
		return
	}
	m.stopped = true
	close(m.processingQueue)
	m.stopMu.Unlock()

	m.wg.Wait()
	m.logger.Info("All processing workers stopped")
}
