package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/robotsunny/private-app-store/internal/store"
)

// ListAuditLogs returns the most recent request audit entries, newest first.
func ListAuditLogs(audits store.AuditStore, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := audits.RecentAudits(limit)
		if err != nil {
			lg.Errorw("audit list failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": entries})
	}
}
