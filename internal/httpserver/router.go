package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/robotsunny/private-app-store/internal/auth"
	"github.com/robotsunny/private-app-store/internal/httpserver/handlers"
	"github.com/robotsunny/private-app-store/internal/ratelimit"
	"github.com/robotsunny/private-app-store/internal/storage"
	"github.com/robotsunny/private-app-store/internal/store"
	"github.com/robotsunny/private-app-store/internal/upload"
)

// Deps is everything the routes need, constructed once in main and passed
// explicitly. No handler reaches for process-wide state.
type Deps struct {
	Store          store.Store
	Files          *storage.FileStore
	Tokens         *auth.TokenService
	Validator      *upload.Validator
	AuthLimiter    *ratelimit.FixedWindowLimiter // nil disables auth rate limiting
	MaxUploadBytes int64
	CORSOrigins    []string
	Lg             *zap.SugaredLogger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	audited := Audit(d.Store, d.Lg)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(pub chi.Router) {
			pub.Use(audited)
			pub.With(ratelimit.Middleware(d.AuthLimiter)).
				Post("/auth/register", handlers.Register(d.Store, d.Tokens, d.Lg))
			pub.With(ratelimit.Middleware(d.AuthLimiter)).
				Post("/auth/login", handlers.Login(d.Store, d.Tokens, d.Lg))

			pub.Get("/apps", handlers.ListApps(d.Store, d.Lg))
			pub.Get("/apps/{id}", handlers.GetApp(d.Store, d.Lg))

			// downloads are public: admin-curated catalog, open distribution
			pub.Get("/uploads/download/{appId}", handlers.Download(d.Store, d.Files, d.Lg))
		})

		api.Group(func(protected chi.Router) {
			protected.Use(auth.JWTAuth(d.Tokens, d.Store), audited)
			protected.Get("/uploads/stats", handlers.Stats(d.Store, d.Lg))

			protected.Group(func(admin chi.Router) {
				admin.Use(auth.RequireAdmin())
				admin.Post("/uploads/upload", handlers.Upload(d.Store, d.Files, d.Validator, d.MaxUploadBytes, d.Lg))
				admin.Get("/admin/audit", handlers.ListAuditLogs(d.Store, d.Lg))
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
