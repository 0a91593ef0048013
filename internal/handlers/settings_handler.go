package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
)

// SettingsHandler manages KV-stored settings, primarily provider API keys.
// Keys stored here are picked up by ResolveAPIKey without a restart.
type SettingsHandler struct {
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// NewSettingsHandler creates the settings handler.
func NewSettingsHandler(kv interfaces.KeyValueStorage) *SettingsHandler {
	return &SettingsHandler{
		kv:     kv,
		logger: common.GetLogger(),
	}
}

// ListKeysHandler handles GET /api/settings/keys. Values are redacted.
func (h *SettingsHandler) ListKeysHandler(w http.ResponseWriter, r *http.Request) {
	all, err := h.kv.GetAll(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	redacted := make(map[string]string, len(all))
	for key, value := range all {
		redacted[key] = redact(value)
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"keys": redacted})
}

// SetKeyHandler handles POST /api/settings/keys.
func (h *SettingsHandler) SetKeyHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if !DecodeJSONBody(w, r, &body) {
		return
	}

	key := strings.TrimSpace(body.Key)
	if key == "" || body.Value == "" {
		WriteError(w, http.StatusBadRequest, "key and value are required")
		return
	}

	if err := h.kv.Set(r.Context(), key, body.Value); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info().Str("key", key).Msg("Setting stored")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "stored", "key": key})
}

// DeleteKeyHandler handles DELETE /api/settings/keys/{key}.
func (h *SettingsHandler) DeleteKeyHandler(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.kv.Delete(r.Context(), key); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "key": key})
}

func redact(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
