package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/services/assets"
)

// AssetHandler exposes asset-run, hero-image and video endpoints.
type AssetHandler struct {
	coordinator *assets.Coordinator
	store       interfaces.JobStorage
	logger      arbor.ILogger
}

// NewAssetHandler creates an asset handler.
func NewAssetHandler(coordinator *assets.Coordinator, store interfaces.JobStorage) *AssetHandler {
	return &AssetHandler{
		coordinator: coordinator,
		store:       store,
		logger:      common.GetLogger(),
	}
}

// StartAssetsHandler handles POST /api/jobs/{id}/assets: plans the run and
// returns immediately; the UI polls GET for progress.
func (h *AssetHandler) StartAssetsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	var body struct {
		ChannelIDs []string `json:"channelIds"`
	}
	if !DecodeJSONBody(w, r, &body) {
		return
	}

	job, err := h.coordinator.StartRun(r.Context(), jobID, body.ChannelIDs, common.RouteTag(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"run":    job.AssetRun,
		"assets": assetList(job),
	})
}

// GetAssetsHandler handles GET /api/jobs/{id}/assets: the poll endpoint.
func (h *AssetHandler) GetAssetsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run":    job.AssetRun,
		"assets": assetList(job),
	})
}

// GetHeroImageHandler handles GET /api/jobs/{id}/hero-image.
func (h *AssetHandler) GetHeroImageHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if job.HeroImage == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"status": models.MediaStatusIdle})
		return
	}
	WriteJSON(w, http.StatusOK, job.HeroImage)
}

// RequestHeroImageHandler handles POST /api/jobs/{id}/hero-image/request.
// Generation is synchronous for the caller that wins the single-flight;
// concurrent callers share the result.
func (h *AssetHandler) RequestHeroImageHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	var body struct {
		ForceRefresh bool `json:"forceRefresh"`
	}
	if !DecodeJSONBody(w, r, &body) {
		return
	}

	rec, err := h.coordinator.GenerateHeroImage(r.Context(), jobID, body.ForceRefresh, common.RouteTag(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// GetVideoHandler handles GET /api/jobs/{id}/video.
func (h *AssetHandler) GetVideoHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if job.Video == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"status": models.MediaStatusIdle})
		return
	}
	WriteJSON(w, http.StatusOK, job.Video)
}

// RequestVideoHandler handles POST /api/jobs/{id}/video/request.
func (h *AssetHandler) RequestVideoHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	rec, err := h.coordinator.GenerateVideo(r.Context(), jobID, common.RouteTag(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// assetList flattens the asset map into catalog order for responses.
func assetList(job *models.Job) []*models.Asset {
	out := make([]*models.Asset, 0, len(job.Assets))
	for _, channel := range models.SupportedChannels {
		for _, format := range models.FormatsForChannel(channel) {
			for _, asset := range job.Assets {
				if asset.ChannelID == channel && asset.FormatID == format {
					out = append(out, asset)
				}
			}
		}
	}
	return out
}
