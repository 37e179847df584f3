package models

import (
	"time"

	"gorm.io/datatypes"
)

// Project is an engineering/procurement project under monitoring. Status is a
// completion percentage kept in [0,100]; RemainingAmount is derived from
// Amount and Status and recomputed whenever either changes.
type Project struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	DS          string   `gorm:"column:ds" json:"ds"`
	Year        *int     `json:"year"`
	ProjectNo   *string  `gorm:"uniqueIndex" json:"project_no"`
	Client      string   `json:"client"`
	ProjectName string   `gorm:"not null" json:"project_name" validate:"required"`
	Amount      *float64 `json:"amount"`
	Status      float64  `gorm:"not null;default:0;check:status >= 0 AND status <= 100" json:"status"`

	RemainingAmount *float64 `json:"remaining_amount"`

	PoDate        *datatypes.Date `json:"-"`
	PoNo          *string         `json:"po_no"`
	DateCompleted *datatypes.Date `json:"-"`
	PIC           string          `gorm:"column:pic" json:"pic"`
	Address       string          `json:"address"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ForecastItems []ForecastItem  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Updates       []ProjectUpdate `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// DateValue unwraps an optional calendar date for classification logic.
func DateValue(d *datatypes.Date) (time.Time, bool) {
	if d == nil {
		return time.Time{}, false
	}
	return time.Time(*d), true
}

// NewDate wraps a time.Time into an optional calendar date column value.
func NewDate(t time.Time) *datatypes.Date {
	d := datatypes.Date(t)
	return &d
}
