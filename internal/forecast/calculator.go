// Package forecast converts forecast items into monetary amounts and
// percentage-of-completion equivalents. Both conversions are total: every
// finite input combination yields a finite result, with ill-defined cases
// (unknown type, undefined or zero project amount) degrading to zero.
package forecast

import (
	"math"

	"github.com/ds-monitor/engine/internal/models"
	"github.com/ds-monitor/engine/pkg/logger"
	"go.uber.org/zap"
)

// ComputeAmount converts a forecast item into its signed monetary amount
// given the owning project's contract value. Percent-typed items with an
// undefined project amount contribute zero.
func ComputeAmount(item *models.ForecastItem, projectAmount *float64) float64 {
	if item == nil {
		return 0
	}

	var base float64
	switch item.InputType {
	case models.ForecastTypePercent:
		if projectAmount == nil || math.IsNaN(*projectAmount) {
			return 0
		}
		base = *projectAmount * (item.InputValue / 100.0)
	case models.ForecastTypeAmount:
		base = item.InputValue
	default:
		logger.L().Warn("unknown forecast input type in amount calculation",
			zap.String("input_type", item.InputType),
			zap.Uint("forecast_item_id", item.ID),
		)
	}

	result := base * sign(item.IsDeduction)
	if math.IsNaN(result) {
		return 0
	}
	return result
}

// ComputePercentEquivalent converts a forecast item into the signed share of
// the owning project's contract value it represents, in percent. An
// undefined, NaN or zero project amount yields zero so the caller never
// divides by zero.
func ComputePercentEquivalent(item *models.ForecastItem, projectAmount *float64) float64 {
	if item == nil {
		return 0
	}
	if projectAmount == nil || math.IsNaN(*projectAmount) || *projectAmount == 0 {
		return 0
	}

	var pct float64
	switch item.InputType {
	case models.ForecastTypePercent:
		pct = item.InputValue
	case models.ForecastTypeAmount:
		pct = (item.InputValue / *projectAmount) * 100.0
	default:
		logger.L().Warn("unknown forecast input type in percentage calculation",
			zap.String("input_type", item.InputType),
			zap.Uint("forecast_item_id", item.ID),
		)
	}

	result := pct * sign(item.IsDeduction)
	if math.IsNaN(result) {
		return 0
	}
	return result
}

func sign(isDeduction bool) float64 {
	if isDeduction {
		return -1.0
	}
	return 1.0
}
