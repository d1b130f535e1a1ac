package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"drivermonitor/internal/config"
	"drivermonitor/internal/dto"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/service/inference"
)

// Inferer answers a data-URL frame with a BehaviorResult.
type Inferer interface {
	Infer(ctx context.Context, frame string) (dto.BehaviorResult, error)
	DrowsinessStrategy() string
}

// InferHandler handles POST /infer.
func InferHandler(inferer Inferer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes(cfg))

		var req dto.InferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warning("Invalid infer request: %v", err)
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		result, status, err := infer(r.Context(), inferer, req.Frame)
		if err != nil {
			logger.Error("Inference error: %v", err)
			http.Error(w, http.StatusText(status)+": "+err.Error(), status)
			return
		}

		writeJSON(w, logger, http.StatusOK, result)
	}
}

// infer runs the pipeline and maps its errors to HTTP status codes.
func infer(ctx context.Context, inferer Inferer, frame string) (dto.BehaviorResult, int, error) {
	result, err := inferer.Infer(ctx, frame)
	switch {
	case err == nil:
		return result, http.StatusOK, nil
	case errors.Is(err, inference.ErrInvalidFrame):
		return result, http.StatusBadRequest, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return result, http.StatusServiceUnavailable, err
	default:
		return result, http.StatusInternalServerError, err
	}
}

// HealthHandler reports liveness and the active drowsiness strategy.
func HealthHandler(inferer Inferer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{
			"status":     "ok",
			"drowsiness": inferer.DrowsinessStrategy(),
		})
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func maxBodyBytes(cfg *config.Config) int64 {
	if cfg.MaxBodyMB <= 0 {
		return 50 << 20
	}
	return cfg.MaxBodyMB << 20
}
