package models

import "errors"

// Severity represents alert severity levels
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity level is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Rule validation errors
var (
	ErrEmptyRuleID        = errors.New("rule ID cannot be empty")
	ErrEmptyRuleSignal    = errors.New("rule signal code cannot be empty")
	ErrInvalidSeverity    = errors.New("invalid severity level")
	ErrInvalidOperator    = errors.New("rule operator is not recognized")
	ErrInvalidMinDuration = errors.New("min duration must be at least 1 tick")
)

// AlertRule is one threshold condition evaluated against a signal's series.
// Rules are produced by the catalog (manually or auto-generated) and are
// read-only to the engine during a cycle.
type AlertRule struct {
	ID               string   `json:"id"`
	SignalCode       string   `json:"signal_code"`
	Operator         Operator `json:"operator"`
	Threshold        float64  `json:"threshold"`
	MinDurationTicks int      `json:"min_duration_ticks"`
	Severity         Severity `json:"severity"`
	Enabled          bool     `json:"enabled"`
}

// Validate checks the fields required before a rule enters the store.
func (r *AlertRule) Validate() error {
	if r.ID == "" {
		return ErrEmptyRuleID
	}
	if r.SignalCode == "" {
		return ErrEmptyRuleSignal
	}
	if !r.Operator.Valid() {
		return ErrInvalidOperator
	}
	if r.MinDurationTicks < 1 {
		return ErrInvalidMinDuration
	}
	if !r.Severity.IsValid() {
		return ErrInvalidSeverity
	}
	return nil
}
