package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/services/jobs"
)

// JobHandler exposes the job lifecycle endpoints: create, read, draft
// updates, suggestions, refinement, finalization and channel
// recommendations.
type JobHandler struct {
	jobs   *jobs.Service
	logger arbor.ILogger
}

// NewJobHandler creates a job handler.
func NewJobHandler(jobService *jobs.Service) *JobHandler {
	return &JobHandler{
		jobs:   jobService,
		logger: common.GetLogger(),
	}
}

// CreateJobHandler handles POST /api/jobs.
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var draft models.Draft
	if !DecodeJSONBody(w, r, &draft) {
		return
	}

	job, err := h.jobs.Create(r.Context(), &draft)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

// ListJobsHandler handles GET /api/jobs.
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	list, err := h.jobs.List(r.Context(), GetListParams(r))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJobHandler handles GET /api/jobs/{id}.
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// DeleteJobHandler handles DELETE /api/jobs/{id}.
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.jobs.Delete(r.Context(), jobID); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": jobID})
}

// UpdateDraftHandler handles PUT /api/jobs/{id}: a partial draft merge.
func (h *JobHandler) UpdateDraftHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	var patch models.Draft
	if !DecodeJSONBody(w, r, &patch) {
		return
	}

	job, err := h.jobs.UpdateDraft(r.Context(), jobID, &patch)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// SuggestHandler handles POST /api/jobs/{id}/suggest.
func (h *JobHandler) SuggestHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	var body struct {
		VisibleFields  []string `json:"visibleFields"`
		UpdatedField   string   `json:"updatedField"`
		CompanyContext string   `json:"companyContext"`
	}
	if !DecodeJSONBody(w, r, &body) {
		return
	}

	result, fail, err := h.jobs.Suggest(r.Context(), jobID, &jobs.SuggestInput{
		VisibleFieldIDs: body.VisibleFields,
		UpdatedFieldID:  body.UpdatedField,
		CompanyContext:  body.CompanyContext,
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
	WriteJSON(w, http.StatusOK, map[string]interface{}{"suggestions": result.Candidates})
}

// RefineHandler handles POST /api/jobs/{id}/refine.
func (h *JobHandler) RefineHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, fail, err := h.jobs.Refine(r.Context(), jobID, common.RouteTag(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if fail != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"failure": fail})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"originalJob": job.State,
		"refinedJob":  job.Refined.Draft,
		"summary":     job.Refined.Summary,
		"metadata":    job.Refined.Metadata,
	})
}

// FinalizeHandler handles POST /api/jobs/{id}/finalize. Channel
// recommendations are computed as part of finalization so the UI can move
// straight to channel selection.
func (h *JobHandler) FinalizeHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	var body struct {
		Source   models.FinalizationSource `json:"source" validate:"required,oneof=original refined edited"`
		FinalJob *models.Draft             `json:"finalJob"`
	}
	if !DecodeJSONBody(w, r, &body) {
		return
	}

	if _, err := h.jobs.Finalize(r.Context(), jobID, body.Source, body.FinalJob); err != nil {
		WriteDomainError(w, err)
		return
	}

	job, fail, err := h.jobs.RecommendChannels(r.Context(), jobID, common.RouteTag(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if fail != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"channelRecommendations": []models.ChannelRecommendation{},
			"channelFailure":         fail,
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"channelRecommendations": job.Channels.Items,
		"channelUpdatedAt":       job.Channels.UpdatedAt,
	})
}

// GetChannelsHandler handles GET /api/jobs/{id}/channels: the cached set.
func (h *JobHandler) GetChannelsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if job.Channels == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"channelRecommendations": []models.ChannelRecommendation{},
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"channelRecommendations": job.Channels.Items,
		"channelUpdatedAt":       job.Channels.UpdatedAt,
		"channelFailure":         job.Channels.Failure,
	})
}

// RecomputeChannelsHandler handles POST /api/jobs/{id}/channels/recompute.
func (h *JobHandler) RecomputeChannelsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, fail, err := h.jobs.RecommendChannels(r.Context(), jobID, common.RouteTag(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if fail != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"channelFailure": fail})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"channelRecommendations": job.Channels.Items,
		"channelUpdatedAt":       job.Channels.UpdatedAt,
	})
}

// PickChannelHandler handles POST /api/jobs/{id}/channels/pick: the single
// best channel with fit score and medium recommendation.
func (h *JobHandler) PickChannelHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	result, fail, err := h.jobs.PickChannel(r.Context(), jobID, common.RouteTag(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if fail != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"failure": fail})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"topChannel": map[string]interface{}{
			"id":          result.TopChannel,
			"fitScore":    result.FitScore,
			"reasonShort": result.ReasonShort,
		},
		"recommendedMedium": result.RecommendedMedium,
		"copyHint":          result.CopyHint,
		"alternatives":      result.Alternatives,
		"complianceFlags":   result.ComplianceFlags,
	})
}
