package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"drivermonitor/internal/config"
	"drivermonitor/internal/dto"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/metrics"
	"drivermonitor/internal/middleware"
)

const upstreamErrorMessage = "Model server not responding"

// Relayer forwards a frame to the model server.
type Relayer interface {
	Relay(ctx context.Context, frame string) ([]byte, error)
}

// ProcessFrameHandler handles POST /process-frame by relaying the frame to
// the model server and returning its answer unchanged.
func ProcessFrameHandler(relayer Relayer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit := cfg.MaxBodyMB << 20
		if limit <= 0 {
			limit = 50 << 20
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)

		var req dto.InferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warning("Invalid frame request: %v", err)
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		body, err := relayer.Relay(r.Context(), req.Frame)
		if err != nil {
			metrics.RelayTotal.WithLabelValues("error").Inc()
			logger.Error("Error communicating with model server: %v", err)
			writeError(w, logger)
			return
		}

		metrics.RelayTotal.WithLabelValues("ok").Inc()
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func writeError(w http.ResponseWriter, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	if err := json.NewEncoder(w).Encode(dto.ErrorResponse{Error: upstreamErrorMessage}); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// SetupRoutes registers the gateway endpoints.
func SetupRoutes(relayer Relayer, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/process-frame", ProcessFrameHandler(relayer, cfg, logger))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	return middleware.CORSMiddleware(mux)
}
