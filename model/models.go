package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending  = "pending"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
	StatusArchived = "archived"
)

// ValidStatus reports whether s is one of the known entity statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusOngoing, StatusFinished, StatusArchived:
		return true
	}
	return false
}

type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"unique;not null;index" json:"name"`
	Status    string    `gorm:"not null;default:'pending';check:status IN ('pending','ongoing','finished','archived')" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Users     []User    `gorm:"foreignKey:GroupID" json:"users,omitempty"`
}

type User struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null;index" json:"name"`

	// Free-form financial/contact details ingested from spreadsheets, e.g.
	// {"amount_owed": 500, "due_date": "2025-11-20", "contact_methods": [...]}
	Details datatypes.JSON `gorm:"type:jsonb" json:"details"`

	Status  string `gorm:"not null;default:'pending';check:status IN ('pending','ongoing','finished','archived')" json:"status"`
	GroupID *uint  `gorm:"index" json:"group_id"`

	Documents []UserDocument `gorm:"foreignKey:UserID" json:"documents,omitempty"`
}

type UserDocument struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"type:bigint;not null;index" json:"user_id"`
	Filename   string    `gorm:"not null" json:"filename"`
	FilePath   string    `gorm:"not null" json:"file_path"`
	FileType   string    `json:"file_type,omitempty"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// Strategy holds the latest collections timeline for exactly one owner,
// either a user or a group. Create-or-update semantics keep a single row
// per owner; prior timelines are replaced, not appended.
type Strategy struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	UserID  *uint `gorm:"index" json:"user_id,omitempty"`
	GroupID *uint `gorm:"index" json:"group_id,omitempty"`

	Timeline datatypes.JSON `gorm:"type:jsonb" json:"timeline"`
	Prompt   *string        `json:"prompt,omitempty"`
	Executed bool           `gorm:"not null;default:false" json:"executed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	OwnerTypeUser  = "user"
	OwnerTypeGroup = "group"
)

func (s *Strategy) OwnerType() string {
	if s.UserID != nil {
		return OwnerTypeUser
	}
	if s.GroupID != nil {
		return OwnerTypeGroup
	}
	return "unknown"
}
