// Package engine implements the alert evaluation and incident lifecycle
// core: streak detection over gapped tick series, the OPEN/CLOSED alert
// event state machine, and component-level incident escalation.
package engine

import (
	"sync"

	"fleetwatch/internal/models"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/store"
	"fleetwatch/internal/timeseries"
)

// Config holds engine tunables.
type Config struct {
	// Default bounded sample window per rule
	LookbackTicks int
	// Parallel rule evaluation workers per cycle
	Workers int
	// Concurrent open critical alerts needed for the density trigger
	CriticalThreshold int
	// Alert duration in ticks needed for the sustained trigger
	SustainedTicks int64
}

// Engine coordinates evaluation and incident cycles over the store.
//
// Cycles are serialized per origin: the exactly-once-open invariant
// depends on read-then-write atomicity across the whole rule set, so two
// cycles for the same origin never interleave. REAL and SIMULATED cycles
// are independent and may run concurrently with each other.
type Engine struct {
	store      store.Store
	series     timeseries.Accessor
	dispatcher notify.Dispatcher
	cfg        Config

	realMu     sync.Mutex
	simMu      sync.Mutex
	incidentMu sync.Mutex
}

// New constructs an Engine. A nil dispatcher disables notification
// delivery (incident state still commits).
func New(st store.Store, series timeseries.Accessor, dispatcher notify.Dispatcher, cfg Config) *Engine {
	if cfg.LookbackTicks <= 0 {
		cfg.LookbackTicks = 200
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = 2
	}
	if cfg.SustainedTicks <= 0 {
		cfg.SustainedTicks = 10
	}
	return &Engine{
		store:      st,
		series:     series,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// originLock returns the single-flight lock for an origin's cycles.
func (e *Engine) originLock(origin models.Origin) *sync.Mutex {
	if origin == models.OriginSimulated {
		return &e.simMu
	}
	return &e.realMu
}
