package route

import (
	"net/http"
	"os"
	"path/filepath"

	"drivermonitor/internal/config"
	"drivermonitor/internal/handler"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/metrics"
	"drivermonitor/internal/middleware"
	"drivermonitor/internal/repository"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the inference API, dashboard endpoints and static
// files, and wraps the mux with the CORS and authentication middleware.
func SetupRoutes(inferer handler.Inferer, hub handler.ViewerHub, snapshots handler.SnapshotStore,
	snapshotRepo repository.SnapshotRepository, alertRepo repository.AlertRepository,
	cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Inference
	mux.HandleFunc("/infer", handler.InferHandler(inferer, cfg, log))
	mux.HandleFunc("/api/stream", handler.StreamWebsocketHandler(inferer, cfg, log))
	mux.HandleFunc("/healthz", handler.HealthHandler(inferer, log))
	mux.Handle("/metrics", metrics.Handler())

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Dashboard API
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(hub, log))
	mux.HandleFunc("/api/alerts", handler.GetAlertsHandler(alertRepo, log))
	mux.HandleFunc("/api/alerts/stats", handler.AlertStatsHandler(alertRepo, log))
	mux.HandleFunc("/api/alerts/clear", handler.ClearAlertsHandler(alertRepo, snapshots, log))
	mux.HandleFunc("/api/snapshots/view", handler.ViewSnapshotHandler(snapshots))
	mux.HandleFunc("/api/snapshots/detail", handler.SnapshotDetailHandler(snapshotRepo, alertRepo, log))
	mux.HandleFunc("/api/snapshots/delete", handler.DeleteSnapshotHandler(snapshots, log))

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(log, logger.ErrorFile))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(log, logger.ErrorFile))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// /settings -> static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.CORSMiddleware(middleware.AuthMiddleware(mux))
}
