package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Jobs (drafting lifecycle)
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)  // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // Handles /api/jobs/{id} and subpaths

	// API routes - Settings (provider API keys)
	mux.HandleFunc("/api/settings/keys", s.handleSettingsRoute)
	mux.HandleFunc("/api/settings/keys/", s.handleSettingsKeyRoutes) // DELETE /{key}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.APIHandler.StatusHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsRoute routes /api/jobs requests (list and create)
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.JobHandler.ListJobsHandler(w, r)
	case "POST":
		s.app.JobHandler.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes /api/jobs/{id} and its subpaths to the appropriate
// handler. The path shape is /api/jobs/{id}[/suffix].
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	jobID := rest
	suffix := ""
	if idx := strings.Index(rest, "/"); idx >= 0 {
		jobID = rest[:idx]
		suffix = rest[idx+1:]
	}
	if jobID == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch suffix {
	case "":
		switch r.Method {
		case "GET":
			s.app.JobHandler.GetJobHandler(w, r, jobID)
		case "PUT":
			s.app.JobHandler.UpdateDraftHandler(w, r, jobID)
		case "DELETE":
			s.app.JobHandler.DeleteJobHandler(w, r, jobID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case "suggest":
		if requirePost(w, r) {
			s.app.JobHandler.SuggestHandler(w, r, jobID)
		}
	case "refine":
		if requirePost(w, r) {
			s.app.JobHandler.RefineHandler(w, r, jobID)
		}
	case "finalize":
		if requirePost(w, r) {
			s.app.JobHandler.FinalizeHandler(w, r, jobID)
		}

	case "channels":
		if r.Method == "GET" {
			s.app.JobHandler.GetChannelsHandler(w, r, jobID)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "channels/recompute":
		if requirePost(w, r) {
			s.app.JobHandler.RecomputeChannelsHandler(w, r, jobID)
		}
	case "channels/pick":
		if requirePost(w, r) {
			s.app.JobHandler.PickChannelHandler(w, r, jobID)
		}

	case "assets":
		switch r.Method {
		case "GET":
			s.app.AssetHandler.GetAssetsHandler(w, r, jobID)
		case "POST":
			s.app.AssetHandler.StartAssetsHandler(w, r, jobID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case "hero-image":
		if r.Method == "GET" {
			s.app.AssetHandler.GetHeroImageHandler(w, r, jobID)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "hero-image/request":
		if requirePost(w, r) {
			s.app.AssetHandler.RequestHeroImageHandler(w, r, jobID)
		}

	case "video":
		if r.Method == "GET" {
			s.app.AssetHandler.GetVideoHandler(w, r, jobID)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "video/request":
		if requirePost(w, r) {
			s.app.AssetHandler.RequestVideoHandler(w, r, jobID)
		}

	case "copilot":
		switch r.Method {
		case "GET":
			s.app.CopilotHandler.GetConversationHandler(w, r, jobID)
		case "POST":
			s.app.CopilotHandler.ChatHandler(w, r, jobID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleSettingsRoute routes /api/settings/keys requests (list and set)
func (s *Server) handleSettingsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.SettingsHandler.ListKeysHandler(w, r)
	case "POST":
		s.app.SettingsHandler.SetKeyHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSettingsKeyRoutes routes /api/settings/keys/{key} requests
func (s *Server) handleSettingsKeyRoutes(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/settings/keys/")
	if key == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != "DELETE" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.app.SettingsHandler.DeleteKeyHandler(w, r, key)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
