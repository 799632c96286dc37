// Package notify carries newly created incidents across the delivery
// boundary. The engine builds the payload contract and fires it once per
// incident cycle; delivery failure is the caller's to log, never to roll
// back.
package notify

import (
	"context"

	"fleetwatch/internal/models"
)

// IncidentNotice pairs one new incident with its contributing alerts.
type IncidentNotice struct {
	Incident *models.Incident     `json:"incident"`
	Alerts   []*models.AlertEvent `json:"alerts"`
}

// Batch is the single payload dispatched for all incidents created in
// one incident cycle.
type Batch struct {
	Notices []IncidentNotice `json:"notices"`
	Report  string           `json:"report"`
}

// Dispatcher delivers incident notices. Implementations are
// fire-and-forget from the engine's perspective.
type Dispatcher interface {
	// NotifyNewIncidents sends one batched notice covering every new
	// incident of the cycle.
	NotifyNewIncidents(ctx context.Context, incidents []*models.Incident, alertsByIncident map[string][]*models.AlertEvent) error
	Close() error
}

// NewBatch assembles the dispatch payload from the aggregator's output.
func NewBatch(incidents []*models.Incident, alertsByIncident map[string][]*models.AlertEvent) Batch {
	notices := make([]IncidentNotice, 0, len(incidents))
	for _, inc := range incidents {
		notices = append(notices, IncidentNotice{
			Incident: inc,
			Alerts:   alertsByIncident[inc.ID],
		})
	}
	return Batch{
		Notices: notices,
		Report:  RenderReport(incidents, alertsByIncident),
	}
}
