package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/common"
)

// APIHandler serves the system endpoints: health, status, version.
type APIHandler struct {
	config *common.Config
	logger arbor.ILogger
}

// NewAPIHandler creates the system endpoint handler.
func NewAPIHandler(config *common.Config) *APIHandler {
	return &APIHandler{
		config: config,
		logger: common.GetLogger(),
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.Version,
		"build":      common.Build,
		"git_commit": common.GitCommit,
	})
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// StatusHandler returns the runtime configuration surface the UI cares
// about: environment and which LLM provider handles unrouted tasks.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"environment":     h.config.Environment,
		"defaultProvider": h.config.LLM.DefaultProvider,
		"authEnabled":     h.config.Auth.BearerToken != "",
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
