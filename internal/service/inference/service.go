package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drivermonitor/internal/dto"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/metrics"
	"drivermonitor/internal/service/ai"
	"drivermonitor/internal/service/behavior"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

var (
	// ErrInvalidFrame marks requests whose frame cannot be turned into an image.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrInference marks faults of the distraction model.
	ErrInference = errors.New("inference failed")
)

// Observation is what the pipeline hands to its observer after answering a frame.
type Observation struct {
	RequestID  string
	Timestamp  time.Time
	Frame      []byte
	Result     dto.BehaviorResult
	Detections behavior.DetectionSet
}

// Observer receives observations. Observe must not block.
type Observer interface {
	Observe(obs Observation)
}

// Service answers frames with a BehaviorResult using the distraction detector
// and the drowsiness strategy chosen at startup.
type Service struct {
	detector   ai.Detector
	drowsiness DrowsinessStrategy
	observer   Observer
	logger     *logger.Logger
}

func NewService(detector ai.Detector, drowsiness DrowsinessStrategy, logger *logger.Logger) *Service {
	if drowsiness == nil {
		drowsiness = DisabledStrategy{}
	}
	return &Service{
		detector:   detector,
		drowsiness: drowsiness,
		logger:     logger,
	}
}

// SetObserver registers the receiver of observations. It must be called before serving.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// DrowsinessStrategy returns the name of the active drowsiness strategy.
func (s *Service) DrowsinessStrategy() string {
	return s.drowsiness.Name()
}

// Infer decodes a data-URL frame and classifies it. Malformed frames return
// ErrInvalidFrame and distraction model faults return ErrInference; drowsiness
// faults never fail the request.
func (s *Service) Infer(ctx context.Context, frame string) (dto.BehaviorResult, error) {
	if err := ctx.Err(); err != nil {
		return dto.BehaviorResult{}, err
	}

	data, err := DecodeDataURL(frame)
	if err != nil {
		metrics.InferenceTotal.WithLabelValues("invalid_frame").Inc()
		return dto.BehaviorResult{}, err
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		metrics.InferenceTotal.WithLabelValues("invalid_frame").Inc()
		return dto.BehaviorResult{}, fmt.Errorf("%w: failed to decode image: %w", ErrInvalidFrame, err)
	}
	defer mat.Close()

	if mat.Empty() {
		metrics.InferenceTotal.WithLabelValues("invalid_frame").Inc()
		return dto.BehaviorResult{}, fmt.Errorf("%w: decoded image is empty", ErrInvalidFrame)
	}

	start := time.Now()
	detections, err := s.detector.Detect(mat)
	metrics.ObserveLatency("distraction", start)
	if err != nil {
		metrics.InferenceTotal.WithLabelValues("model_error").Inc()
		return dto.BehaviorResult{}, fmt.Errorf("%w: distraction model: %w", ErrInference, err)
	}

	s.logger.Info("DETECTED: %v", detections)

	result := behavior.Merge(behavior.ClassifyDistraction(detections), s.drowsiness.Assess(mat))

	metrics.InferenceTotal.WithLabelValues("ok").Inc()
	for name, level := range behavior.Flagged(result) {
		metrics.BehaviorFlags.WithLabelValues(name, level).Inc()
	}

	if s.observer != nil {
		s.observer.Observe(Observation{
			RequestID:  uuid.NewString(),
			Timestamp:  time.Now(),
			Frame:      data,
			Result:     result,
			Detections: detections,
		})
	}

	return result, nil
}

// Close releases the models held by the service.
func (s *Service) Close() error {
	return errors.Join(closeModel(s.detector), closeModel(s.drowsiness))
}
