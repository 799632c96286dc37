package models

// IncidentStatus is the lifecycle state of an Incident.
type IncidentStatus string

const (
	IncidentOpen     IncidentStatus = "OPEN"
	IncidentResolved IncidentStatus = "RESOLVED"
)

// Incident is a component-level escalation aggregating several or
// sustained critical alerts into one higher-order record. Incidents are
// owned and mutated exclusively by the incident aggregator. At most one
// incident per (component, origin) may be OPEN at any time.
type Incident struct {
	ID            string         `json:"id"`
	ComponentCode string         `json:"component_code"`
	StartTick     int64          `json:"start_tick"`
	EndTick       *int64         `json:"end_tick,omitempty"`
	Severity      Severity       `json:"severity"`
	Status        IncidentStatus `json:"status"`
	Origin        Origin         `json:"origin"`
	Summary       string         `json:"summary"`
}

// IncidentAlert links a contributing alert event to its incident.
// Rows are created atomically with the incident and never mutated; the
// linked set is frozen at creation time.
type IncidentAlert struct {
	IncidentID   string `json:"incident_id"`
	AlertEventID string `json:"alert_event_id"`
}
