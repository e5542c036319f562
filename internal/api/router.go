package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ernie/altcheck/internal/alts"
	"github.com/ernie/altcheck/internal/auth"
	"github.com/ernie/altcheck/internal/logger"
	"github.com/ernie/altcheck/internal/notify"
	"github.com/ernie/altcheck/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the HTTP surface is built on
type Deps struct {
	Store     *storage.Store
	Join      *alts.JoinHandler
	Query     *alts.QueryService
	Hub       *notify.Hub
	Notifier  notify.Notifier // receives alerts raised through POST /api/connect
	Auth      *auth.Service
	Log       *logger.Logger
	StaticDir string
}

// Router holds the HTTP routes and dependencies
type Router struct {
	mux       *http.ServeMux
	store     *storage.Store
	join      *alts.JoinHandler
	query     *alts.QueryService
	hub       *notify.Hub
	notifier  notify.Notifier
	auth      *auth.Service
	log       *logger.Logger
	staticDir string
}

// NewRouter creates a new HTTP router
func NewRouter(d Deps) *Router {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	r := &Router{
		mux:       http.NewServeMux(),
		store:     d.Store,
		join:      d.Join,
		query:     d.Query,
		hub:       d.Hub,
		notifier:  d.Notifier,
		auth:      d.Auth,
		log:       log.With("component", "api"),
		staticDir: d.StaticDir,
	}

	// Alt lookups and connection ingestion
	r.mux.HandleFunc("GET /api/alts", r.requirePermission(auth.PermLookup, r.handleAlts))
	r.mux.HandleFunc("POST /api/connect", r.requirePermission(auth.PermIngest, r.handleConnect))

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /api/auth/logout", r.handleLogout)
	r.mux.HandleFunc("GET /api/auth/check", r.handleAuthCheck)
	r.mux.HandleFunc("POST /api/auth/change-password", r.requireAuth(r.handleChangePassword))

	// User management routes (admin only)
	r.mux.HandleFunc("GET /api/users", r.requireAdmin(r.handleListUsers))
	r.mux.HandleFunc("POST /api/users", r.requireAdmin(r.handleCreateUser))
	r.mux.HandleFunc("DELETE /api/users/{username}", r.requireAdmin(r.handleDeleteUser))
	r.mux.HandleFunc("PATCH /api/users/{id}", r.requireAdmin(r.handleUpdateUser))
	r.mux.HandleFunc("POST /api/users/{id}/reset-password", r.requireAdmin(r.handleResetUserPassword))

	// Live alert stream
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	// Static files - only serve if staticDir is configured
	if d.StaticDir != "" {
		r.mux.HandleFunc("GET /", r.handleStatic)
	}

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// handleStatic serves static files from the configured directory
// For SPA support, serves index.html for any path that doesn't match a file
func (r *Router) handleStatic(w http.ResponseWriter, req *http.Request) {
	path := filepath.Clean(req.URL.Path)
	if path == "/" {
		path = "/index.html"
	}

	fullPath := filepath.Join(r.staticDir, path)

	// Security: ensure the path is within staticDir
	absStaticDir, _ := filepath.Abs(r.staticDir)
	absPath, _ := filepath.Abs(fullPath)
	if !strings.HasPrefix(absPath, absStaticDir) {
		http.NotFound(w, req)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		fullPath = filepath.Join(r.staticDir, "index.html")
		if _, err := os.Stat(fullPath); err != nil {
			http.NotFound(w, req)
			return
		}
	}

	if contentType := getContentType(fullPath); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeFile(w, req, fullPath)
}

// getContentType returns the content type for a file based on extension
func getContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".ico":
		return "image/x-icon"
	default:
		return ""
	}
}
