package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fleetwatch/internal/models"
)

// Memory is an in-process Store implementation. All reads return copies
// so callers can never alias internal state between cycles.
type Memory struct {
	mu sync.RWMutex

	signals       map[string]*models.Signal
	rules         map[string]*models.AlertRule
	ruleOrder     []string
	events        map[string]*models.AlertEvent
	eventOrder    []string
	incidents     map[string]*models.Incident
	incidentOrder []string
	// incidentID -> linked alert event IDs, frozen at creation
	incidentAlerts map[string][]string
	// open-event index for the exactly-once-open invariant
	openEvents map[models.EventKey]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		signals:        make(map[string]*models.Signal),
		rules:          make(map[string]*models.AlertRule),
		events:         make(map[string]*models.AlertEvent),
		incidents:      make(map[string]*models.Incident),
		incidentAlerts: make(map[string][]string),
		openEvents:     make(map[models.EventKey]string),
	}
}

var _ Store = (*Memory)(nil)

// PutSignal inserts or replaces a signal.
func (m *Memory) PutSignal(ctx context.Context, s *models.Signal) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.signals[s.Code] = &cp
	return nil
}

// GetSignal looks up a signal by code.
func (m *Memory) GetSignal(ctx context.Context, code string) (*models.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.signals[code]
	if !ok {
		return nil, fmt.Errorf("signal %q: %w", code, ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

// ListSignals returns all signals sorted by code.
func (m *Memory) ListSignals(ctx context.Context) ([]*models.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Signal, 0, len(m.signals))
	for _, s := range m.signals {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// PutRule inserts or replaces a rule.
func (m *Memory) PutRule(ctx context.Context, r *models.AlertRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[r.ID]; !ok {
		m.ruleOrder = append(m.ruleOrder, r.ID)
	}
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

// ListRules returns rules in insertion order, optionally enabled only.
func (m *Memory) ListRules(ctx context.Context, enabledOnly bool) ([]*models.AlertRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.AlertRule, 0, len(m.ruleOrder))
	for _, id := range m.ruleOrder {
		r := m.rules[id]
		if enabledOnly && !r.Enabled {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// ListEvents returns alert events matching the filter, in insertion order.
func (m *Memory) ListEvents(ctx context.Context, f EventFilter) ([]*models.AlertEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.AlertEvent
	for _, id := range m.eventOrder {
		e := m.events[id]
		if !matchEvent(e, f) {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func matchEvent(e *models.AlertEvent, f EventFilter) bool {
	if f.RuleID != "" && e.RuleID != f.RuleID {
		return false
	}
	if f.ComponentCode != "" && e.ComponentCode != f.ComponentCode {
		return false
	}
	if f.SignalCode != "" && e.SignalCode != f.SignalCode {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Origin != "" && e.Origin != f.Origin {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.FromTick != nil && e.TickEnd < *f.FromTick {
		return false
	}
	if f.ToTick != nil && e.TickStart > *f.ToTick {
		return false
	}
	return true
}

// ApplyEventBatch commits a cycle's mutations under one lock. The batch
// is validated in full before anything is written, so a rejected batch
// leaves the store untouched.
func (m *Memory) ApplyEventBatch(ctx context.Context, batch EventBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validation pass
	for _, e := range batch.Create {
		if e.ID == "" {
			return fmt.Errorf("create: alert event has no ID")
		}
		if _, exists := m.openEvents[e.Key()]; exists {
			return fmt.Errorf("rule %s component %s origin %s: %w",
				e.RuleID, e.ComponentCode, e.Origin, ErrDuplicateOpenEvent)
		}
	}
	for _, e := range batch.Extend {
		existing, ok := m.events[e.ID]
		if !ok {
			return fmt.Errorf("extend event %s: %w", e.ID, ErrNotFound)
		}
		if existing.Status != models.StatusOpen {
			return fmt.Errorf("extend event %s: %w", e.ID, ErrEventNotOpen)
		}
	}
	for _, id := range batch.Close {
		existing, ok := m.events[id]
		if !ok {
			return fmt.Errorf("close event %s: %w", id, ErrNotFound)
		}
		if existing.Status != models.StatusOpen {
			return fmt.Errorf("close event %s: %w", id, ErrEventNotOpen)
		}
	}

	// Commit pass
	for _, e := range batch.Create {
		cp := *e
		cp.Status = models.StatusOpen
		m.events[cp.ID] = &cp
		m.eventOrder = append(m.eventOrder, cp.ID)
		m.openEvents[cp.Key()] = cp.ID
	}
	for _, e := range batch.Extend {
		existing := m.events[e.ID]
		existing.TickEnd = e.TickEnd
		existing.PeakValue = e.PeakValue
	}
	for _, id := range batch.Close {
		existing := m.events[id]
		existing.Status = models.StatusClosed
		delete(m.openEvents, existing.Key())
	}
	return nil
}

// PurgeEvents removes all alert events and incident join rows.
func (m *Memory) PurgeEvents(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string]*models.AlertEvent)
	m.eventOrder = nil
	m.openEvents = make(map[models.EventKey]string)
	m.incidentAlerts = make(map[string][]string)
	return nil
}

type incidentScope struct {
	component string
	origin    models.Origin
}

// ApplyIncidentBatch commits a cycle's incident mutations under one
// lock. The batch is validated in full before anything is written, so a
// rejected batch leaves the store untouched.
func (m *Memory) ApplyIncidentBatch(ctx context.Context, batch IncidentBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validation pass
	pending := make(map[incidentScope]bool, len(batch.Create))
	for _, c := range batch.Create {
		inc := c.Incident
		if inc == nil || inc.ID == "" {
			return fmt.Errorf("create: incident has no ID")
		}
		if inc.Status == models.IncidentOpen {
			scope := incidentScope{component: inc.ComponentCode, origin: inc.Origin}
			if pending[scope] {
				return fmt.Errorf("component %s origin %s: %w",
					inc.ComponentCode, inc.Origin, ErrDuplicateOpenIncident)
			}
			for _, other := range m.incidents {
				if other.ComponentCode == inc.ComponentCode &&
					other.Origin == inc.Origin &&
					other.Status == models.IncidentOpen {
					return fmt.Errorf("component %s origin %s: %w",
						inc.ComponentCode, inc.Origin, ErrDuplicateOpenIncident)
				}
			}
			pending[scope] = true
		}
		for _, id := range c.AlertEventIDs {
			if _, ok := m.events[id]; !ok {
				return fmt.Errorf("link alert event %s: %w", id, ErrNotFound)
			}
		}
	}
	for _, r := range batch.Resolve {
		inc, ok := m.incidents[r.IncidentID]
		if !ok {
			return fmt.Errorf("resolve incident %s: %w", r.IncidentID, ErrNotFound)
		}
		if inc.Status != models.IncidentOpen {
			return fmt.Errorf("resolve incident %s: %w", r.IncidentID, ErrIncidentNotOpen)
		}
	}

	// Commit pass
	for _, c := range batch.Create {
		cp := *c.Incident
		m.incidents[cp.ID] = &cp
		m.incidentOrder = append(m.incidentOrder, cp.ID)
		m.incidentAlerts[cp.ID] = append([]string(nil), c.AlertEventIDs...)
	}
	for _, r := range batch.Resolve {
		inc := m.incidents[r.IncidentID]
		endTick := r.EndTick
		inc.Status = models.IncidentResolved
		inc.EndTick = &endTick
	}
	return nil
}

// CreateIncident inserts an incident and its join rows atomically,
// enforcing at most one OPEN incident per (component, origin).
func (m *Memory) CreateIncident(ctx context.Context, inc *models.Incident, alertEventIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc.ID == "" {
		return fmt.Errorf("incident has no ID")
	}
	if inc.Status == models.IncidentOpen {
		for _, other := range m.incidents {
			if other.ComponentCode == inc.ComponentCode &&
				other.Origin == inc.Origin &&
				other.Status == models.IncidentOpen {
				return fmt.Errorf("component %s origin %s: %w",
					inc.ComponentCode, inc.Origin, ErrDuplicateOpenIncident)
			}
		}
	}
	for _, id := range alertEventIDs {
		if _, ok := m.events[id]; !ok {
			return fmt.Errorf("link alert event %s: %w", id, ErrNotFound)
		}
	}
	cp := *inc
	m.incidents[cp.ID] = &cp
	m.incidentOrder = append(m.incidentOrder, cp.ID)
	m.incidentAlerts[cp.ID] = append([]string(nil), alertEventIDs...)
	return nil
}

// ResolveIncident transitions an OPEN incident to RESOLVED.
func (m *Memory) ResolveIncident(ctx context.Context, id string, endTick int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	if inc.Status != models.IncidentOpen {
		return fmt.Errorf("incident %s: %w", id, ErrIncidentNotOpen)
	}
	inc.Status = models.IncidentResolved
	inc.EndTick = &endTick
	return nil
}

// FindOpenIncident returns the OPEN incident for a component/origin, if any.
func (m *Memory) FindOpenIncident(ctx context.Context, componentCode string, origin models.Origin) (*models.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inc := range m.incidents {
		if inc.ComponentCode == componentCode &&
			inc.Origin == origin &&
			inc.Status == models.IncidentOpen {
			cp := *inc
			return &cp, nil
		}
	}
	return nil, nil
}

// ListIncidents returns incidents matching the filter, in insertion order.
func (m *Memory) ListIncidents(ctx context.Context, f IncidentFilter) ([]*models.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Incident
	for _, id := range m.incidentOrder {
		inc := m.incidents[id]
		if f.ComponentCode != "" && inc.ComponentCode != f.ComponentCode {
			continue
		}
		if f.Status != "" && inc.Status != f.Status {
			continue
		}
		if f.Origin != "" && inc.Origin != f.Origin {
			continue
		}
		cp := *inc
		out = append(out, &cp)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// IncidentAlerts returns the alert events linked to an incident.
func (m *Memory) IncidentAlerts(ctx context.Context, incidentID string) ([]*models.AlertEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.incidents[incidentID]; !ok {
		return nil, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
	}
	ids := m.incidentAlerts[incidentID]
	out := make([]*models.AlertEvent, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.events[id]; ok {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
