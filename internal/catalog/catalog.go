// Package catalog owns signal metadata and the paired rule store. It is
// read-only to the evaluation engine; rule generation happens here, not
// in the engine.
package catalog

import (
	"context"

	"fleetwatch/internal/models"
	"fleetwatch/internal/store"
	"fleetwatch/internal/timeseries"
)

// Catalog answers signal and rule queries over the store.
type Catalog struct {
	store  store.Store
	series timeseries.Accessor
}

// New constructs a Catalog.
func New(st store.Store, series timeseries.Accessor) *Catalog {
	return &Catalog{store: st, series: series}
}

// LookupSignal returns a signal by code, or an error wrapping
// store.ErrNotFound when absent.
func (c *Catalog) LookupSignal(ctx context.Context, code string) (*models.Signal, error) {
	return c.store.GetSignal(ctx, code)
}

// ListSignals returns all cataloged signals.
func (c *Catalog) ListSignals(ctx context.Context) ([]*models.Signal, error) {
	return c.store.ListSignals(ctx)
}

// RegisterSignal validates and stores a signal.
func (c *Catalog) RegisterSignal(ctx context.Context, s *models.Signal) error {
	return c.store.PutSignal(ctx, s)
}

// ListRules returns alert rules, optionally enabled only.
func (c *Catalog) ListRules(ctx context.Context, enabledOnly bool) ([]*models.AlertRule, error) {
	return c.store.ListRules(ctx, enabledOnly)
}

// PutRule validates and stores a rule.
func (c *Catalog) PutRule(ctx context.Context, r *models.AlertRule) error {
	return c.store.PutRule(ctx, r)
}
