package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Documents
	mux.HandleFunc("/api/documents/add", s.app.DocumentHandler.AddHandler)
	mux.HandleFunc("/api/documents/files/delete/", s.app.DocumentHandler.DeleteFileHandler)
	mux.HandleFunc("/api/documents/files/", s.app.DocumentHandler.FilesHandler)
	mux.HandleFunc("/api/documents/workspace/", s.app.DocumentHandler.DeleteWorkspaceHandler)

	// API routes - Workspaces
	mux.HandleFunc("/api/workspaces", s.app.WorkspaceHandler.Handler)

	// API routes - Retrieval and chat
	mux.HandleFunc("/api/context/fetch", s.app.ContextHandler.FetchHandler)
	mux.HandleFunc("/api/chat", s.app.ChatHandler.ChatHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/stats", s.app.APIHandler.StatsHandler)

	// Everything else under /api is a JSON 404; the bare root serves a
	// minimal liveness response for load balancers
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			s.app.APIHandler.NotFoundHandler(w, r)
			return
		}
		if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte("colligo"))
			return
		}
		s.app.APIHandler.NotFoundHandler(w, r)
	})

	return mux
}
