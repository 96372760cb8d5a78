package alerts

import (
	"fmt"
	"time"
)

// Alert types
const (
	TypePriceTarget        = "PRICE_TARGET"
	TypePercentageChange   = "PERCENTAGE_CHANGE"
	TypeTechnicalIndicator = "TECHNICAL_INDICATOR"
)

// Alert conditions
const (
	ConditionAbove  = "ABOVE"
	ConditionBelow  = "BELOW"
	ConditionEquals = "EQUALS"
)

// equalsTolerance is the band within which EQUALS fires
const equalsTolerance = 0.01

// Alert is a user-defined trigger evaluated by the background sweep.
// Alerts fire once: after triggering they stay visible but inert.
type Alert struct {
	ID          int     `json:"id"`
	UserID      string  `json:"user_id"`
	Symbol      string  `json:"symbol"`
	AlertType   string  `json:"alert_type"`
	Condition   string  `json:"condition"`
	TargetValue float64 `json:"target_value"`
	// BaselinePrice anchors PERCENTAGE_CHANGE alerts to the price at
	// creation time
	BaselinePrice float64 `json:"baseline_price,omitempty"`
	// Indicator names the technical series for TECHNICAL_INDICATOR
	// alerts; only RSI is currently supported
	Indicator   string     `json:"indicator,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsTriggered bool       `json:"is_triggered"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateRequest is the request body for creating an alert
type CreateRequest struct {
	Symbol      string  `json:"symbol"`
	AlertType   string  `json:"alert_type"`
	Condition   string  `json:"condition"`
	TargetValue float64 `json:"target_value"`
	Indicator   string  `json:"indicator,omitempty"`
}

// Validate checks the create request fields
func (cr *CreateRequest) Validate() error {
	if cr.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	switch cr.AlertType {
	case TypePriceTarget, TypePercentageChange:
	case TypeTechnicalIndicator:
		if cr.Indicator != "RSI" {
			return fmt.Errorf("unsupported indicator %q, only RSI is supported", cr.Indicator)
		}
	default:
		return fmt.Errorf("invalid alert_type %q", cr.AlertType)
	}

	switch cr.Condition {
	case ConditionAbove, ConditionBelow, ConditionEquals:
	default:
		return fmt.Errorf("invalid condition %q", cr.Condition)
	}

	if cr.AlertType == TypePriceTarget && cr.TargetValue <= 0 {
		return fmt.Errorf("target_value must be positive for price targets")
	}

	return nil
}

// conditionMet compares an observed value against the alert's threshold
func conditionMet(condition string, value, target float64) bool {
	switch condition {
	case ConditionAbove:
		return value > target
	case ConditionBelow:
		return value < target
	case ConditionEquals:
		diff := value - target
		return diff >= -equalsTolerance && diff <= equalsTolerance
	default:
		return false
	}
}
