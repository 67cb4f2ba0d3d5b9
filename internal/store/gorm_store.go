package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/robotsunny/private-app-store/internal/models"
)

// GormStore implements Store on gorm. ID assignment rides on database
// autoincrement, which serializes concurrent inserts without any lock here.
type GormStore struct {
	db *gorm.DB
}

// Open connects to postgres when a DSN is given, otherwise to an embedded
// sqlite file (created along with its parent directory).
func Open(databaseURL, sqlitePath string) (*gorm.DB, error) {
	if databaseURL != "" {
		return gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	}
	if dir := filepath.Dir(sqlitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	return gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
}

// NewGormStore runs migrations and wraps the connection.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.User{}, &models.App{}, &models.AuditLog{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateUser(u *models.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return s.db.Create(u).Error
}

func (s *GormStore) UserByID(id uint) (models.User, bool, error) {
	var u models.User
	if err := s.db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, false, nil
		}
		return models.User{}, false, err
	}
	return u, true, nil
}

func (s *GormStore) UserByEmail(email string) (models.User, bool, error) {
	var u models.User
	if err := s.db.First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, false, nil
		}
		return models.User{}, false, err
	}
	return u, true, nil
}

func (s *GormStore) UpdateUser(u *models.User) error {
	u.UpdatedAt = time.Now()
	return s.db.Save(u).Error
}

func (s *GormStore) CreateApp(a *models.App) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	return s.db.Create(a).Error
}

func (s *GormStore) AppByID(id uint) (models.App, bool, error) {
	var a models.App
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.App{}, false, nil
		}
		return models.App{}, false, err
	}
	return a, true, nil
}

func (s *GormStore) ListApps(f AppFilter) ([]models.App, error) {
	q := s.db.Order("created_at desc")
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if f.Platform != "" {
		q = q.Where("platform = ?", f.Platform)
	}
	var apps []models.App
	if err := q.Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *GormStore) AppsByDeveloper(developerID uint) ([]models.App, error) {
	var apps []models.App
	if err := s.db.Where("developer_id = ?", developerID).Order("created_at desc").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *GormStore) UpdateApp(a *models.App) error {
	a.UpdatedAt = time.Now()
	return s.db.Save(a).Error
}

func (s *GormStore) DeactivateApp(id uint) error {
	return s.db.Model(&models.App{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now()}).Error
}

func (s *GormStore) RecordAudit(e *models.AuditLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return s.db.Create(e).Error
}

func (s *GormStore) RecentAudits(limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.AuditLog
	if err := s.db.Order("id desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
