package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"

	"staffdesk/internal/observability"
)

// ReapHandler exposes the reaper for cron-style schedulers. It is
// disabled unless a cron secret is configured.
type ReapHandler struct {
	reaper     *Reaper
	logger     *observability.Logger
	cronSecret string
}

func NewReapHandler(reaper *Reaper, logger *observability.Logger, cronSecret string) *ReapHandler {
	return &ReapHandler{
		reaper:     reaper,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *ReapHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result, err := h.reaper.Run(r.Context())
	if err != nil {
		h.logger.Error("token_reaper_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reaper run failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
