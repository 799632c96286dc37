package timeseries

import (
	"context"
	"sort"
	"sync"
)

type seriesKey struct {
	component string
	column    string
}

// MemorySeries is an in-process sample store implementing Accessor.
// Samples for a series are kept sorted by tick; appending an existing
// tick overwrites the earlier observation.
type MemorySeries struct {
	mu     sync.RWMutex
	series map[seriesKey][]Sample
}

// NewMemorySeries creates an empty series store.
func NewMemorySeries() *MemorySeries {
	return &MemorySeries{series: make(map[seriesKey][]Sample)}
}

var _ Accessor = (*MemorySeries)(nil)

// Append records one sample. A nil value records a present-tick gap.
func (m *MemorySeries) Append(componentCode, columnName string, tick int64, value *float64) {
	s := Sample{Tick: tick}
	if value != nil {
		s.Value = *value
		s.Present = true
	}

	key := seriesKey{component: componentCode, column: columnName}

	m.mu.Lock()
	defer m.mu.Unlock()

	samples := m.series[key]
	i := sort.Search(len(samples), func(i int) bool { return samples[i].Tick >= tick })
	if i < len(samples) && samples[i].Tick == tick {
		samples[i] = s
	} else {
		samples = append(samples, Sample{})
		copy(samples[i+1:], samples[i:])
		samples[i] = s
	}
	m.series[key] = samples
}

// ReadWindow returns the newest maxSamples samples, oldest to newest.
func (m *MemorySeries) ReadWindow(ctx context.Context, componentCode, columnName string, maxSamples int) ([]Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	samples := m.series[seriesKey{component: componentCode, column: columnName}]
	if maxSamples > 0 && len(samples) > maxSamples {
		samples = samples[len(samples)-maxSamples:]
	}
	out := make([]Sample, len(samples))
	copy(out, samples)
	return out, nil
}
