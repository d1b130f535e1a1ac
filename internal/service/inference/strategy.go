package inference

import (
	"errors"
	"fmt"
	"io"
	"time"

	"drivermonitor/internal/config"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/metrics"
	"drivermonitor/internal/service/ai"
	"drivermonitor/internal/service/behavior"

	"gocv.io/x/gocv"
)

// DrowsinessStrategy grades drowsiness for one frame. Implementations never fail:
// any model fault degrades to behavior.LevelNo.
type DrowsinessStrategy interface {
	Name() string
	Assess(frame gocv.Mat) behavior.Level
}

// DisabledStrategy is used when no drowsiness model is deployed.
type DisabledStrategy struct{}

func (DisabledStrategy) Name() string { return config.DrowsinessModeNone }

func (DisabledStrategy) Assess(gocv.Mat) behavior.Level { return behavior.LevelNo }

// ProbabilityStrategy grades the drowsy class probability of a classification model.
type ProbabilityStrategy struct {
	classifier ai.Classifier
	logger     *logger.Logger
}

func NewProbabilityStrategy(classifier ai.Classifier, logger *logger.Logger) *ProbabilityStrategy {
	return &ProbabilityStrategy{classifier: classifier, logger: logger}
}

func (s *ProbabilityStrategy) Name() string { return config.DrowsinessModeProbability }

func (s *ProbabilityStrategy) Assess(frame gocv.Mat) (level behavior.Level) {
	defer s.recoverFault(&level)

	start := time.Now()
	probs, err := s.classifier.Classify(frame)
	metrics.ObserveLatency("drowsiness", start)
	if err != nil {
		metrics.DrowsinessFallbacks.WithLabelValues(s.Name(), "error").Inc()
		s.logger.Error("Drowsiness classification failed: %v", err)
		return behavior.LevelNo
	}

	level, found := behavior.DrowsinessFromProbabilities(probs)
	if !found {
		metrics.DrowsinessFallbacks.WithLabelValues(s.Name(), "class_missing").Inc()
		s.logger.Warning("Drowsiness model has no drowsy class among %v", classNames(probs))
	}
	return level
}

func (s *ProbabilityStrategy) recoverFault(level *behavior.Level) {
	if r := recover(); r != nil {
		metrics.DrowsinessFallbacks.WithLabelValues(s.Name(), "panic").Inc()
		s.logger.Error("Drowsiness classification panicked: %v", r)
		*level = behavior.LevelNo
	}
}

func (s *ProbabilityStrategy) Close() error { return closeModel(s.classifier) }

// DetectionStrategy reports High when a detection model sees closed eyes or yawning.
type DetectionStrategy struct {
	detector ai.Detector
	logger   *logger.Logger
}

func NewDetectionStrategy(detector ai.Detector, logger *logger.Logger) *DetectionStrategy {
	return &DetectionStrategy{detector: detector, logger: logger}
}

func (s *DetectionStrategy) Name() string { return config.DrowsinessModeDetection }

func (s *DetectionStrategy) Assess(frame gocv.Mat) (level behavior.Level) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DrowsinessFallbacks.WithLabelValues(s.Name(), "panic").Inc()
			s.logger.Error("Drowsiness detection panicked: %v", r)
			level = behavior.LevelNo
		}
	}()

	start := time.Now()
	detections, err := s.detector.Detect(frame)
	metrics.ObserveLatency("drowsiness", start)
	if err != nil {
		metrics.DrowsinessFallbacks.WithLabelValues(s.Name(), "error").Inc()
		s.logger.Error("Drowsiness detection failed: %v", err)
		return behavior.LevelNo
	}

	s.logger.Info("DROWSINESS DETECTED: %v", detections)
	return behavior.DrowsinessFromDetections(detections)
}

func (s *DetectionStrategy) Close() error { return closeModel(s.detector) }

// NewDrowsinessStrategy resolves the configured drowsiness capability once at startup.
// A missing model file selects DisabledStrategy; other load failures are returned.
func NewDrowsinessStrategy(cfg *config.Config, logger *logger.Logger) (DrowsinessStrategy, error) {
	var (
		strategy DrowsinessStrategy
		err      error
	)

	switch cfg.DrowsinessMode {
	case config.DrowsinessModeNone:
		return DisabledStrategy{}, nil
	case config.DrowsinessModeProbability:
		var classifier *ai.ONNXClassifier
		classifier, err = ai.NewONNXClassifier(ai.ClassifierOptions{
			ModelPath:  cfg.DrowsinessModelPath,
			LabelsPath: cfg.DrowsinessLabelsPath,
			InputSize:  cfg.DrowsinessInputSize,
		})
		if err == nil {
			strategy = NewProbabilityStrategy(classifier, logger)
		}
	case config.DrowsinessModeDetection:
		var detector *ai.YOLODetector
		detector, err = ai.NewYOLODetector(ai.DetectorOptions{
			ModelPath:    cfg.DrowsinessModelPath,
			LabelsPath:   cfg.DrowsinessLabelsPath,
			InputSize:    cfg.InputSize,
			Confidence:   cfg.DrowsinessConfidence,
			NMSThreshold: cfg.NMSThreshold,
		})
		if err == nil {
			strategy = NewDetectionStrategy(detector, logger)
		}
	default:
		return nil, fmt.Errorf("unknown drowsiness mode %q", cfg.DrowsinessMode)
	}

	if errors.Is(err, ai.ErrModelNotFound) {
		logger.Warning("Drowsiness model not available (%v), drowsiness will always be No", err)
		return DisabledStrategy{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load drowsiness model: %w", err)
	}

	logger.Info("Drowsiness strategy: %s (%s)", strategy.Name(), cfg.DrowsinessModelPath)
	return strategy, nil
}

func closeModel(model any) error {
	if c, ok := model.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func classNames(probs behavior.ClassProbabilities) []string {
	names := make([]string, 0, len(probs))
	for name := range probs {
		names = append(names, name)
	}
	return names
}
