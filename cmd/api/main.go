package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/robotsunny/private-app-store/internal/auth"
	"github.com/robotsunny/private-app-store/internal/config"
	"github.com/robotsunny/private-app-store/internal/httpserver"
	"github.com/robotsunny/private-app-store/internal/logger"
	"github.com/robotsunny/private-app-store/internal/models"
	"github.com/robotsunny/private-app-store/internal/ratelimit"
	"github.com/robotsunny/private-app-store/internal/storage"
	"github.com/robotsunny/private-app-store/internal/store"
	"github.com/robotsunny/private-app-store/internal/upload"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	cfg, err := config.Load()
	if err != nil {
		lg.Fatalw("config load failed", "error", err)
	}

	db, err := store.Open(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	st, err := store.NewGormStore(db)
	if err != nil {
		lg.Fatalw("db migrate failed", "error", err)
	}

	seedBootstrapAccounts(cfg, st, lg)

	files, err := storage.NewFileStore(cfg.StorageDir)
	if err != nil {
		lg.Fatalw("storage init failed", "error", err)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	validator := upload.NewValidator(
		upload.DefaultPolicy().WithBounds(cfg.PackageMinBytes, cfg.PackageMaxBytes), lg)

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		limiter, err = ratelimit.NewFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.AuthRateLimit, cfg.AuthRateWin)
		if err != nil {
			lg.Fatalw("rate limiter init failed", "error", err)
		}
	}

	router := httpserver.NewRouter(httpserver.Deps{
		Store:          st,
		Files:          files,
		Tokens:         tokens,
		Validator:      validator,
		AuthLimiter:    limiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
		Lg:             lg,
	})

	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}

// seedBootstrapAccounts creates the configured admin and developer accounts
// when absent. Credentials come from the environment only; with none set,
// no account is compiled in and registration is the only way in.
func seedBootstrapAccounts(cfg config.Config, st *store.GormStore, lg *zap.SugaredLogger) {
	seed := func(name, email, password, role string) {
		if email == "" || password == "" {
			return
		}
		if _, exists, err := st.UserByEmail(email); err != nil || exists {
			return
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			lg.Errorw("bootstrap hash failed", "email", email, "error", err)
			return
		}
		u := models.User{Name: name, Email: email, PasswordHash: hash, Role: role}
		if err := st.CreateUser(&u); err != nil {
			lg.Errorw("bootstrap create failed", "email", email, "error", err)
			return
		}
		lg.Infow("seeded bootstrap account", "email", email, "role", role)
	}
	seed(cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword, models.RoleAdmin)
	seed(cfg.DeveloperName, cfg.DeveloperEmail, cfg.DeveloperPassword, models.RoleDeveloper)
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		lg.Warnw("no admin bootstrap configured; uploads require an admin account")
	}
}
