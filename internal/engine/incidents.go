package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetwatch/internal/logger"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
	"fleetwatch/internal/store"
)

// IncidentResult summarizes one incident cycle.
type IncidentResult struct {
	Created  int `json:"created_incidents"`
	Resolved int `json:"resolved_incidents"`
}

// RunIncidentCycle groups the currently OPEN, REAL, critical alert events
// by component and applies the escalation triggers: a component opens an
// incident when it carries at least CriticalThreshold concurrent critical
// alerts, or when any single one has sustained for SustainedTicks.
//
// An incident's linked alert set is frozen at creation; alerts opening
// later never join it. Resolution looks at every component with an OPEN
// incident, including those whose alerts have all closed, and stamps
// end_tick with the maximum tick_end among the linked alerts.
//
// The cycle's creations and resolutions commit through one atomic store
// batch: a store failure applies nothing. All incidents created in a
// cycle are handed to the dispatcher as one batched notice after commit.
// Dispatch failure is logged and surfaced as a warning; committed
// incident state stands.
func (e *Engine) RunIncidentCycle(ctx context.Context) (IncidentResult, error) {
	e.incidentMu.Lock()
	defer e.incidentMu.Unlock()

	log := logger.WithComponent("incidents")
	start := time.Now()

	result, newIncidents, alertsByIncident, err := e.aggregateIncidents(ctx)
	if err != nil {
		metrics.IncidentCyclesTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("incident cycle failed")
		return IncidentResult{}, err
	}

	metrics.IncidentCyclesTotal.WithLabelValues("ok").Inc()
	metrics.IncidentsTotal.WithLabelValues("created").Add(float64(result.Created))
	metrics.IncidentsTotal.WithLabelValues("resolved").Add(float64(result.Resolved))

	log.Info().
		Int("created", result.Created).
		Int("resolved", result.Resolved).
		Dur("duration", time.Since(start)).
		Msg("incident cycle completed")

	// One dispatch call per cycle regardless of how many incidents opened.
	if len(newIncidents) > 0 && e.dispatcher != nil {
		if err := e.dispatcher.NotifyNewIncidents(ctx, newIncidents, alertsByIncident); err != nil {
			log.Warn().Err(err).Int("incidents", len(newIncidents)).
				Msg("incident notification failed; incident state stands")
		}
	}

	return result, nil
}

func (e *Engine) aggregateIncidents(ctx context.Context) (IncidentResult, []*models.Incident, map[string][]*models.AlertEvent, error) {
	var result IncidentResult

	alerts, err := e.store.ListEvents(ctx, store.EventFilter{
		Status:   models.StatusOpen,
		Origin:   models.OriginReal,
		Severity: models.SeverityCritical,
	})
	if err != nil {
		return result, nil, nil, fmt.Errorf("listing open critical events: %w", err)
	}

	byComponent := make(map[string][]*models.AlertEvent)
	for _, a := range alerts {
		byComponent[a.ComponentCode] = append(byComponent[a.ComponentCode], a)
	}

	openIncidents, err := e.store.ListIncidents(ctx, store.IncidentFilter{
		Status: models.IncidentOpen,
		Origin: models.OriginReal,
	})
	if err != nil {
		return result, nil, nil, fmt.Errorf("listing open incidents: %w", err)
	}
	incidentByComponent := make(map[string]*models.Incident, len(openIncidents))
	for _, inc := range openIncidents {
		incidentByComponent[inc.ComponentCode] = inc
	}

	var batch store.IncidentBatch
	var newIncidents []*models.Incident
	alertsByIncident := make(map[string][]*models.AlertEvent)

	for component, componentAlerts := range byComponent {
		if !e.triggered(componentAlerts) {
			continue
		}
		if incidentByComponent[component] != nil {
			continue
		}

		startTick := componentAlerts[0].TickStart
		for _, a := range componentAlerts[1:] {
			if a.TickStart < startTick {
				startTick = a.TickStart
			}
		}

		inc := &models.Incident{
			ID:            uuid.New().String(),
			ComponentCode: component,
			StartTick:     startTick,
			Severity:      models.SeverityCritical,
			Status:        models.IncidentOpen,
			Origin:        models.OriginReal,
			Summary:       fmt.Sprintf("Critical degradation detected on component %s", component),
		}

		ids := make([]string, len(componentAlerts))
		for i, a := range componentAlerts {
			ids[i] = a.ID
		}

		batch.Create = append(batch.Create, store.IncidentCreate{Incident: inc, AlertEventIDs: ids})
		newIncidents = append(newIncidents, inc)
		alertsByIncident[inc.ID] = componentAlerts
	}

	// Resolution considers every open incident, including ones whose
	// component no longer carries any open critical alert.
	for component, inc := range incidentByComponent {
		if e.triggered(byComponent[component]) {
			continue
		}

		endTick, err := e.resolutionTick(ctx, inc)
		if err != nil {
			return result, nil, nil, fmt.Errorf("resolving incident %s: %w", inc.ID, err)
		}
		batch.Resolve = append(batch.Resolve, store.IncidentResolution{IncidentID: inc.ID, EndTick: endTick})
	}

	// One commit for the whole cycle: a store failure leaves no partial
	// incident state behind.
	if !batch.Empty() {
		if err := e.store.ApplyIncidentBatch(ctx, batch); err != nil {
			return IncidentResult{}, nil, nil, fmt.Errorf("committing incident batch: %w", err)
		}
	}

	result.Created = len(batch.Create)
	result.Resolved = len(batch.Resolve)
	return result, newIncidents, alertsByIncident, nil
}

// triggered applies the escalation triggers to one component's open
// critical alerts.
func (e *Engine) triggered(alerts []*models.AlertEvent) bool {
	if len(alerts) >= e.cfg.CriticalThreshold {
		return true
	}
	for _, a := range alerts {
		if a.Duration() >= e.cfg.SustainedTicks {
			return true
		}
	}
	return false
}

// resolutionTick derives an incident's end tick from the alerts linked at
// creation time.
func (e *Engine) resolutionTick(ctx context.Context, inc *models.Incident) (int64, error) {
	linked, err := e.store.IncidentAlerts(ctx, inc.ID)
	if err != nil {
		return 0, err
	}
	endTick := inc.StartTick
	for _, a := range linked {
		if a.TickEnd > endTick {
			endTick = a.TickEnd
		}
	}
	return endTick, nil
}
