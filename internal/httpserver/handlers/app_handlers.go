package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/robotsunny/private-app-store/internal/store"
)

// ListApps returns the active catalog, optionally filtered by platform.
// File content is never included; downloads go through the uploads route.
func ListApps(apps store.AppStore, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := apps.ListApps(store.AppFilter{Platform: r.URL.Query().Get("platform")})
		if err != nil {
			lg.Errorw("list apps failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": records})
	}
}

func GetApp(apps store.AppStore, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid app id")
			return
		}
		app, ok, err := apps.AppByID(uint(id))
		if err != nil {
			lg.Errorw("get app failed", "id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if !ok || !app.IsActive {
			respondError(w, http.StatusNotFound, "App not found")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": app})
	}
}
