// Package timeseries is the sample-read boundary between the engine and
// whatever produces metric rows. The engine only depends on Accessor;
// the in-memory series store backs it in this deployment.
package timeseries

import "context"

// Sample is one (tick, value-or-absent) observation. Present is false
// when the component reported the tick but the column carried no value.
type Sample struct {
	Tick    int64   `json:"tick"`
	Value   float64 `json:"value"`
	Present bool    `json:"present"`
}

// Accessor reads bounded sample windows for a component/column pair.
type Accessor interface {
	// ReadWindow returns up to maxSamples of the newest samples for the
	// component/column, ordered oldest to newest. An unknown series
	// yields an empty window, not an error.
	ReadWindow(ctx context.Context, componentCode, columnName string, maxSamples int) ([]Sample, error)
}
