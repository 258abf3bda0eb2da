package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pxldrop/pxldrop/internal/app"
	"github.com/pxldrop/pxldrop/internal/handler"
	"github.com/pxldrop/pxldrop/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	upload := handler.NewUploadHandler(app.UploadService, app.Queue, app.Cfg.AppURL, app.Cfg.MaxUploadSize)
	file := handler.NewFileHandler(app.FileService)
	stats := handler.NewStatsHandler(app.ReconcileService)

	mux := http.NewServeMux()

	// Uploads
	mux.HandleFunc("POST /api/upload", upload.Upload)

	// File access
	mux.HandleFunc("GET /f/{user}/thumbnails/{name}", file.Thumbnail)
	mux.HandleFunc("GET /f/{user}/{name}", file.Serve)

	// File management (authorized by delete key)
	mux.HandleFunc("GET /api/delete/{id}", file.Delete)
	mux.HandleFunc("POST /api/rename/{id}", file.Rename)
	mux.HandleFunc("POST /api/favorite/{id}", file.Favorite)

	// Per-user views
	mux.HandleFunc("GET /api/users/{user}/files", file.List)
	mux.HandleFunc("GET /api/users/{user}/stats", stats.UserStats)

	// Operational endpoints
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return middleware.RequestLogging(mux)
}
