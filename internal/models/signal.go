package models

import "errors"

// SignalKind classifies the value a signal carries.
type SignalKind string

const (
	// KindMetric is a continuous metric series (latency, queue depth, ...).
	KindMetric SignalKind = "xi"
	// KindHealth is a 0-100 percentage health score.
	KindHealth SignalKind = "yi"
	// KindRatio is a 0-1 ratio or probability.
	KindRatio SignalKind = "zi"
)

// Polarity states which direction of movement is bad for a signal.
type Polarity string

const (
	HigherIsWorse Polarity = "higher_is_worse"
	LowerIsWorse  Polarity = "lower_is_worse"
	PolarityNone  Polarity = ""
)

// Signal validation errors
var (
	ErrEmptySignalCode    = errors.New("signal code cannot be empty")
	ErrEmptyComponentCode = errors.New("component code cannot be empty")
	ErrEmptyColumnName    = errors.New("column name cannot be empty")
	ErrInvalidSignalKind  = errors.New("invalid signal kind")
)

// Signal describes one named metric series tied to a component and an
// underlying column of that component's time-series payload. Signals are
// owned by the catalog and read-only to the evaluation engine.
type Signal struct {
	Code           string     `json:"signal_code"`
	ComponentCode  string     `json:"component_code"`
	ColumnName     string     `json:"column_name"`
	Kind           SignalKind `json:"signal_type"`
	Unit           string     `json:"unit,omitempty"`
	Polarity       Polarity   `json:"polarity,omitempty"`
	Description    string     `json:"description,omitempty"`
	VisibleToRoles []string   `json:"visible_to_roles,omitempty"`
	Family         string     `json:"family,omitempty"`
}

// Validate checks the fields required before a signal enters the catalog.
func (s *Signal) Validate() error {
	if s.Code == "" {
		return ErrEmptySignalCode
	}
	if s.ComponentCode == "" {
		return ErrEmptyComponentCode
	}
	if s.ColumnName == "" {
		return ErrEmptyColumnName
	}
	switch s.Kind {
	case KindMetric, KindHealth, KindRatio:
		return nil
	default:
		return ErrInvalidSignalKind
	}
}

// VisibleTo reports whether a role may see this signal. Admin sees everything.
func (s *Signal) VisibleTo(role string) bool {
	for _, r := range s.VisibleToRoles {
		if r == role || r == "admin" {
			return true
		}
	}
	return false
}
