package notify

import (
	"context"

	"fleetwatch/internal/logger"
	"fleetwatch/internal/models"
)

// LogDispatcher writes incident notices to the structured log. It is the
// default delivery path when no Kafka brokers are configured.
type LogDispatcher struct{}

// NewLogDispatcher creates a log-only dispatcher.
func NewLogDispatcher() *LogDispatcher { return &LogDispatcher{} }

var _ Dispatcher = (*LogDispatcher)(nil)

// NotifyNewIncidents logs the batched incident report.
func (d *LogDispatcher) NotifyNewIncidents(ctx context.Context, incidents []*models.Incident, alertsByIncident map[string][]*models.AlertEvent) error {
	if len(incidents) == 0 {
		return nil
	}
	batch := NewBatch(incidents, alertsByIncident)
	log := logger.WithComponent("notify")
	log.Warn().
		Int("incidents", len(batch.Notices)).
		Str("report", batch.Report).
		Msg("new incidents detected")
	return nil
}

// Close implements Dispatcher.
func (d *LogDispatcher) Close() error { return nil }
