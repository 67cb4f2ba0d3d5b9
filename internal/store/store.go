package store

import "github.com/robotsunny/private-app-store/internal/models"

// UserStore persists user records.
type UserStore interface {
	CreateUser(u *models.User) error
	UserByID(id uint) (models.User, bool, error)
	UserByEmail(email string) (models.User, bool, error)
	UpdateUser(u *models.User) error
}

// AppFilter narrows catalog queries. The zero value matches every active app.
type AppFilter struct {
	Platform        string
	IncludeInactive bool
}

// AppStore persists application records. The stored binary is owned by the
// blob storage layer and referenced by App.FileName only.
type AppStore interface {
	CreateApp(a *models.App) error
	AppByID(id uint) (models.App, bool, error)
	ListApps(f AppFilter) ([]models.App, error)
	AppsByDeveloper(developerID uint) ([]models.App, error)
	UpdateApp(a *models.App) error
	DeactivateApp(id uint) error
}

// AuditStore records and reads back request audit entries.
type AuditStore interface {
	RecordAudit(e *models.AuditLog) error
	RecentAudits(limit int) ([]models.AuditLog, error)
}

// Store is the full persistence surface handed to the HTTP layer.
type Store interface {
	UserStore
	AppStore
	AuditStore
}
