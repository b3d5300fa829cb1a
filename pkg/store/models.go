package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ProfileModel struct {
	// Email is the normalized key; DisplayEmail keeps the address as entered.
	Email            string `gorm:"primaryKey"`
	DisplayEmail     string `gorm:"not null;default:''"`
	Name             string `gorm:"not null"`
	Language         string `gorm:"not null"`
	AuthMethod       string `gorm:"not null"`
	Credential       string `gorm:"not null"`
	LastReflectionAt *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time
}

type ReflectionModel struct {
	Seq        uint           `gorm:"primaryKey;autoIncrement"`
	Email      string         `gorm:"not null;index"`
	ResultID   string         `gorm:"not null"`
	Situation  string         `gorm:"type:text;not null"`
	Diagnostic datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null"`
}
