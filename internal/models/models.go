package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
)

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;default:user;size:16" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// App is a stored application package plus its metadata. A row exists only
// for files that passed the full upload validation chain; the binary itself
// lives in the blob directory under FileName.
type App struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string    `gorm:"not null" json:"name"`
	Description      string    `json:"description"`
	Version          string    `gorm:"size:32" json:"version"`
	Platform         string    `gorm:"size:16;index;not null" json:"platform"`
	BundleID         string    `gorm:"not null" json:"bundleId"`
	DeveloperID      uint      `gorm:"index;not null" json:"developerId"`
	FileName         string    `gorm:"not null" json:"fileName"`
	OriginalFileName string    `json:"originalFileName"`
	FileSizeMB       float64   `json:"fileSize"`
	Checksum         string    `gorm:"size:64;not null" json:"checksum"`
	MinOSVersion     string    `gorm:"size:16" json:"minOsVersion"`
	IsActive         bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type AuditLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *uint          `json:"user_id,omitempty"`
	Method    string         `gorm:"size:8" json:"method"`
	Path      string         `json:"path"`
	IP        string         `gorm:"size:64" json:"ip"`
	UserAgent string         `json:"user_agent"`
	Status    int            `json:"status"`
	Metadata  datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
