package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"parkscan/internal/config"
	"parkscan/internal/handler"
	"parkscan/internal/logger"
	"parkscan/internal/middleware"
	"parkscan/internal/service"
)

// dynamicHTMLHandler serves /path as static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers static file serving, the scanner API, log and auth
// endpoints, and wraps the mux with the authentication middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// Scanner API
	mux.HandleFunc("/api/scan", handler.StartScanHandler(manager, logger))
	mux.HandleFunc("/api/scan/cancel", handler.CancelScanHandler(manager, logger))
	mux.HandleFunc("/api/state", handler.StateHandler(manager, logger))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(manager, logger))
	mux.HandleFunc("/api/sessions", handler.RecentSessionsHandler(manager, logger))
	mux.HandleFunc("/api/sessions/stats", handler.SessionStatsHandler(manager, logger))

	// Log endpoints
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(logger, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(logger, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping, for example /login -> static/login.html
	mux.HandleFunc("/", dynamicHTMLHandler(cfg.StaticDirectory))

	return middleware.AuthMiddleware(mux)
}
