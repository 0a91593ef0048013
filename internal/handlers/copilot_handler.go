package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/services/copilot"
)

// CopilotHandler exposes the conversational copilot endpoints.
type CopilotHandler struct {
	copilot *copilot.Service
	store   interfaces.JobStorage
	logger  arbor.ILogger
}

// NewCopilotHandler creates a copilot handler.
func NewCopilotHandler(copilotService *copilot.Service, store interfaces.JobStorage) *CopilotHandler {
	return &CopilotHandler{
		copilot: copilotService,
		store:   store,
		logger:  common.GetLogger(),
	}
}

// ChatHandler handles POST /api/jobs/{id}/copilot: one copilot turn.
func (h *CopilotHandler) ChatHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	var body struct {
		Message         string `json:"message" validate:"required"`
		Stage           string `json:"stage"`
		ClientMessageID string `json:"clientMessageId"`
	}
	if !DecodeJSONBody(w, r, &body) {
		return
	}
	if body.Message == "" {
		WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, fail, err := h.copilot.Chat(r.Context(), jobID, &copilot.ChatInput{
		Message:         body.Message,
		Stage:           body.Stage,
		ClientMessageID: body.ClientMessageID,
		Route:           common.RouteTag(r.Context()),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if fail != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"failure": fail})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reply":          result.Reply,
		"appliedActions": result.AppliedActions,
		"toolSteps":      result.ToolSteps,
		"duplicate":      result.Duplicate,
	})
}

// GetConversationHandler handles GET /api/jobs/{id}/copilot.
func (h *CopilotHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	conversation := job.Conversation
	if conversation == nil {
		conversation = []*models.ConversationMessage{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": conversation})
}
