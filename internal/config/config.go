package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// Config carries every tunable the server reads from the environment.
// Secrets have no compiled-in defaults: Load fails when JWT_SECRET is empty,
// and bootstrap accounts are seeded only when their credentials are set.
type Config struct {
	HTTPPort    string
	DatabaseURL string // postgres DSN; empty selects the embedded sqlite file
	SQLitePath  string

	JWTSecret string
	JWTTTL    time.Duration

	StorageDir string

	// Upload size policy. MaxUploadBytes caps the request body for any
	// upload; Package{Min,Max}Bytes bound the package-specific policy.
	MaxUploadBytes  int64
	PackageMinBytes int64
	PackageMaxBytes int64

	AdminName     string
	AdminEmail    string
	AdminPassword string

	DeveloperName     string
	DeveloperEmail    string
	DeveloperPassword string

	// Auth-route rate limiting, active only when RedisAddr is set.
	RedisAddr     string
	RedisPassword string
	AuthRateLimit int
	AuthRateWin   time.Duration

	CORSOrigins []string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          getenv("HTTP_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        getenv("SQLITE_PATH", "data/appstore.db"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		StorageDir:        getenv("STORAGE_DIR", "uploads/apps"),
		AdminName:         getenv("ADMIN_NAME", "Admin User"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		DeveloperName:     getenv("DEVELOPER_NAME", "Developer"),
		DeveloperEmail:    os.Getenv("DEVELOPER_EMAIL"),
		DeveloperPassword: os.Getenv("DEVELOPER_PASSWORD"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}

	var err error
	if cfg.JWTTTL, err = parseDuration("JWT_EXPIRES_IN", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.MaxUploadBytes, err = parseSize("MAX_UPLOAD_SIZE", "500MiB"); err != nil {
		return Config{}, err
	}
	if cfg.PackageMinBytes, err = parseSize("PACKAGE_MIN_SIZE", "1MiB"); err != nil {
		return Config{}, err
	}
	if cfg.PackageMaxBytes, err = parseSize("PACKAGE_MAX_SIZE", "100MiB"); err != nil {
		return Config{}, err
	}
	if cfg.PackageMinBytes > cfg.PackageMaxBytes {
		return Config{}, fmt.Errorf("package size bounds inverted: min %d > max %d", cfg.PackageMinBytes, cfg.PackageMaxBytes)
	}

	if cfg.AuthRateLimit, err = parseInt("AUTH_RATE_LIMIT", 20); err != nil {
		return Config{}, err
	}
	if cfg.AuthRateWin, err = parseDuration("AUTH_RATE_WINDOW", 15*time.Minute); err != nil {
		return Config{}, err
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseSize accepts human-readable sizes ("100MiB", "500MB", "1048576").
func parseSize(key, def string) (int64, error) {
	s := getenv(key, def)
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, s)
	}
	return n, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
