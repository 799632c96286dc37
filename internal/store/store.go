// Package store defines the durable record sets behind the engine:
// signals, alert rules, alert events, and incidents with their join rows.
// The interface is store-agnostic; the in-memory implementation in this
// package is the default backend.
package store

import (
	"context"
	"errors"

	"fleetwatch/internal/models"
)

// Store errors
var (
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateOpenEvent    = errors.New("an open alert event already exists for this rule/component/origin")
	ErrDuplicateOpenIncident = errors.New("an open incident already exists for this component/origin")
	ErrEventNotOpen          = errors.New("alert event is not open")
	ErrIncidentNotOpen       = errors.New("incident is not open")
)

// EventFilter selects alert events. Zero-valued fields match everything.
type EventFilter struct {
	RuleID        string
	ComponentCode string
	SignalCode    string
	Status        models.EventStatus
	Origin        models.Origin
	Severity      models.Severity
	FromTick      *int64
	ToTick        *int64
	Limit         int
}

// IncidentFilter selects incidents. Zero-valued fields match everything.
type IncidentFilter struct {
	ComponentCode string
	Status        models.IncidentStatus
	Origin        models.Origin
	Limit         int
}

// EventBatch is the complete set of event mutations produced by one
// evaluation cycle. It is applied atomically: either every mutation
// commits or none does.
type EventBatch struct {
	// New OPEN events
	Create []*models.AlertEvent
	// Existing OPEN events with refreshed tick_end/peak_value
	Extend []*models.AlertEvent
	// IDs of OPEN events to transition to CLOSED
	Close []string
}

// Empty reports whether the batch carries no mutations.
func (b *EventBatch) Empty() bool {
	return len(b.Create) == 0 && len(b.Extend) == 0 && len(b.Close) == 0
}

// IncidentCreate pairs a new incident with the alert events linked to it
// at creation time.
type IncidentCreate struct {
	Incident      *models.Incident
	AlertEventIDs []string
}

// IncidentResolution transitions one OPEN incident to RESOLVED.
type IncidentResolution struct {
	IncidentID string
	EndTick    int64
}

// IncidentBatch is the complete set of incident mutations produced by
// one incident cycle. Like EventBatch, it is applied atomically: either
// every mutation commits or none does.
type IncidentBatch struct {
	Create  []IncidentCreate
	Resolve []IncidentResolution
}

// Empty reports whether the batch carries no mutations.
func (b *IncidentBatch) Empty() bool {
	return len(b.Create) == 0 && len(b.Resolve) == 0
}

// Store is the durable state boundary for the evaluation engine.
type Store interface {
	// Signals
	PutSignal(ctx context.Context, s *models.Signal) error
	GetSignal(ctx context.Context, code string) (*models.Signal, error)
	ListSignals(ctx context.Context) ([]*models.Signal, error)

	// Rules
	PutRule(ctx context.Context, r *models.AlertRule) error
	ListRules(ctx context.Context, enabledOnly bool) ([]*models.AlertRule, error)

	// Alert events
	ListEvents(ctx context.Context, f EventFilter) ([]*models.AlertEvent, error)
	// ApplyEventBatch commits a cycle's event mutations all-or-nothing,
	// enforcing the at-most-one-OPEN invariant per (rule, component, origin).
	ApplyEventBatch(ctx context.Context, batch EventBatch) error
	// PurgeEvents removes all alert events and incident join rows.
	PurgeEvents(ctx context.Context) error

	// Incidents
	// ApplyIncidentBatch commits a cycle's incident mutations
	// all-or-nothing, enforcing the at-most-one-OPEN invariant per
	// (component, origin).
	ApplyIncidentBatch(ctx context.Context, batch IncidentBatch) error
	// CreateIncident inserts the incident and its alert join rows atomically.
	CreateIncident(ctx context.Context, inc *models.Incident, alertEventIDs []string) error
	ResolveIncident(ctx context.Context, id string, endTick int64) error
	FindOpenIncident(ctx context.Context, componentCode string, origin models.Origin) (*models.Incident, error)
	ListIncidents(ctx context.Context, f IncidentFilter) ([]*models.Incident, error)
	// IncidentAlerts returns the alert events linked to an incident at
	// creation time.
	IncidentAlerts(ctx context.Context, incidentID string) ([]*models.AlertEvent, error)
}
