package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/robotsunny/private-app-store/internal/auth"
	"github.com/robotsunny/private-app-store/internal/models"
	"github.com/robotsunny/private-app-store/internal/store"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Audit records one row per API request after the handler ran. Failures to
// write the row are logged and never affect the response.
func Audit(audits store.AuditStore, lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := models.AuditLog{
				Method:    r.Method,
				Path:      r.URL.Path,
				IP:        r.RemoteAddr,
				UserAgent: r.UserAgent(),
				Status:    rec.status,
			}
			if claims := auth.FromContext(r.Context()); claims.UserID != 0 {
				id := claims.UserID
				entry.UserID = &id
				if meta, err := json.Marshal(map[string]string{"email": claims.Email, "role": claims.Role}); err == nil {
					entry.Metadata = datatypes.JSON(meta)
				}
			}
			if err := audits.RecordAudit(&entry); err != nil {
				lg.Warnw("audit record failed", "path", r.URL.Path, "error", err)
			}
		})
	}
}
