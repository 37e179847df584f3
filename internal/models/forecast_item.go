package models

import (
	"time"

	"gorm.io/datatypes"
)

// Forecast input types. The value stored in InputValue is interpreted either
// as a percentage of the project amount or as a flat monetary amount.
const (
	ForecastTypePercent = "percent"
	ForecastTypeAmount  = "amount"
)

// ForecastItem is a dated revenue claim against a project's contract value.
// The stored magnitude is non-negative; IsDeduction carries the sign.
// Toggling IsCompleted is the only operation that may move the owning
// project's Status.
type ForecastItem struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ProjectID uint `gorm:"index;not null" json:"project_id" validate:"required"`

	ForecastDate *datatypes.Date `json:"-"`
	InputType    string          `gorm:"column:forecast_input_type;type:varchar(16);not null;check:forecast_input_type IN ('percent','amount')" json:"forecast_input_type" validate:"required,oneof=percent amount"`
	InputValue   float64         `gorm:"column:forecast_input_value;not null" json:"forecast_input_value" validate:"gte=0"`
	IsDeduction  bool            `gorm:"not null;default:false" json:"is_deduction"`
	IsCompleted  bool            `gorm:"column:is_forecast_completed;not null;default:false" json:"is_forecast_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
