package models

// EventStatus is the lifecycle state of an AlertEvent.
type EventStatus string

const (
	StatusOpen   EventStatus = "OPEN"
	StatusClosed EventStatus = "CLOSED"
)

// Origin separates live evaluation state from dry-run state. The two
// spaces never interact: a SIMULATED cycle can only create, extend, or
// close SIMULATED events.
type Origin string

const (
	OriginReal      Origin = "REAL"
	OriginSimulated Origin = "SIMULATED"
)

// IsValid reports whether the origin is one of the two known spaces.
func (o Origin) IsValid() bool {
	return o == OriginReal || o == OriginSimulated
}

// AlertEvent records one OPEN..CLOSED violation episode for a rule.
// Component and signal codes are denormalized from the rule's signal for
// query convenience. At most one event per (rule, component, origin) may
// be OPEN at any time.
type AlertEvent struct {
	ID            string      `json:"id"`
	RuleID        string      `json:"rule_id"`
	ComponentCode string      `json:"component_code"`
	SignalCode    string      `json:"signal_code"`
	TickStart     int64       `json:"tick_start"`
	TickEnd       int64       `json:"tick_end"`
	PeakValue     float64     `json:"peak_value"`
	Severity      Severity    `json:"severity"`
	Status        EventStatus `json:"status"`
	Origin        Origin      `json:"origin"`
}

// Duration is the number of ticks the event has spanned so far.
func (e *AlertEvent) Duration() int64 {
	return e.TickEnd - e.TickStart
}

// EventKey identifies the exclusion scope for the exactly-once-open
// guarantee.
type EventKey struct {
	RuleID        string
	ComponentCode string
	Origin        Origin
}

// Key returns the event's exclusion-scope key.
func (e *AlertEvent) Key() EventKey {
	return EventKey{RuleID: e.RuleID, ComponentCode: e.ComponentCode, Origin: e.Origin}
}
