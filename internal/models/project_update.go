package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProjectUpdate is a dated progress note on a project, independently markable
// complete. Unlike forecast items, completing an update never touches the
// project's status.
type ProjectUpdate struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ProjectID uint `gorm:"index;not null" json:"project_id" validate:"required"`

	UpdateText          string          `gorm:"not null" json:"update_text" validate:"required"`
	IsCompleted         bool            `gorm:"not null;default:false" json:"is_completed"`
	Timestamp           time.Time       `gorm:"autoCreateTime" json:"timestamp"`
	CompletionTimestamp *time.Time      `json:"completion_timestamp"`
	DueDate             *datatypes.Date `json:"-"`
}
