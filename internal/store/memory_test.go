package store

import (
	"context"
	"errors"
	"testing"

	"fleetwatch/internal/models"
)

func testEvent(id, ruleID, component string, origin models.Origin) *models.AlertEvent {
	return &models.AlertEvent{
		ID:            id,
		RuleID:        ruleID,
		ComponentCode: component,
		SignalCode:    component + ".signal",
		TickStart:     10,
		TickEnd:       12,
		PeakValue:     150,
		Severity:      models.SeverityCritical,
		Status:        models.StatusOpen,
		Origin:        origin,
	}
}

func mustApply(t *testing.T, m *Memory, batch EventBatch) {
	t.Helper()
	if err := m.ApplyEventBatch(context.Background(), batch); err != nil {
		t.Fatalf("applying batch: %v", err)
	}
}

func TestApplyEventBatch_CreateExtendClose(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})

	extended := testEvent("e1", "r1", "C1", models.OriginReal)
	extended.TickEnd = 15
	extended.PeakValue = 180
	mustApply(t, m, EventBatch{Extend: []*models.AlertEvent{extended}})

	events, err := m.ListEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].TickEnd != 15 || events[0].PeakValue != 180 {
		t.Errorf("extend did not apply: %+v", events[0])
	}

	mustApply(t, m, EventBatch{Close: []string{"e1"}})
	events, err = m.ListEvents(ctx, EventFilter{Status: models.StatusClosed})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatal("event did not close")
	}
	// Closing keeps the last extended bookkeeping.
	if events[0].TickEnd != 15 {
		t.Errorf("close altered tick_end: %d", events[0].TickEnd)
	}
}

func TestApplyEventBatch_RejectsDuplicateOpen(t *testing.T) {
	m := NewMemory()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})

	err := m.ApplyEventBatch(context.Background(), EventBatch{Create: []*models.AlertEvent{
		testEvent("e2", "r1", "C1", models.OriginReal),
	}})
	if !errors.Is(err, ErrDuplicateOpenEvent) {
		t.Fatalf("expected ErrDuplicateOpenEvent, got %v", err)
	}
}

func TestApplyEventBatch_AllowsSameKeyAfterClose(t *testing.T) {
	m := NewMemory()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})
	mustApply(t, m, EventBatch{Close: []string{"e1"}})

	// Same (rule, component, origin) key may open again once closed.
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e2", "r1", "C1", models.OriginReal),
	}})

	open, err := m.ListEvents(context.Background(), EventFilter{Status: models.StatusOpen})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].ID != "e2" {
		t.Fatalf("expected e2 open, got %+v", open)
	}
}

func TestApplyEventBatch_DistinctOriginsCoexist(t *testing.T) {
	m := NewMemory()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
		testEvent("e2", "r1", "C1", models.OriginSimulated),
	}})

	open, err := m.ListEvents(context.Background(), EventFilter{Status: models.StatusOpen})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 2 {
		t.Fatalf("same rule and component may be open once per origin, got %d", len(open))
	}
}

func TestApplyEventBatch_RejectedBatchLeavesStoreUntouched(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})

	// The create is valid but the close references a missing event, so
	// nothing from the batch may land.
	err := m.ApplyEventBatch(ctx, EventBatch{
		Create: []*models.AlertEvent{testEvent("e2", "r2", "C1", models.OriginReal)},
		Close:  []string{"missing"},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	events, listErr := m.ListEvents(ctx, EventFilter{})
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(events) != 1 {
		t.Fatalf("rejected batch partially committed: %d events", len(events))
	}
}

func TestApplyEventBatch_CloseClosedEventRejected(t *testing.T) {
	m := NewMemory()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})
	mustApply(t, m, EventBatch{Close: []string{"e1"}})

	err := m.ApplyEventBatch(context.Background(), EventBatch{Close: []string{"e1"}})
	if !errors.Is(err, ErrEventNotOpen) {
		t.Fatalf("expected ErrEventNotOpen, got %v", err)
	}
}

func TestListEvents_Filters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a := testEvent("e1", "r1", "C1", models.OriginReal)
	b := testEvent("e2", "r2", "C2", models.OriginReal)
	b.Severity = models.SeverityWarning
	b.TickStart = 30
	b.TickEnd = 35
	c := testEvent("e3", "r1", "C1", models.OriginSimulated)
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{a, b, c}})
	mustApply(t, m, EventBatch{Close: []string{"e3"}})

	cases := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"all", EventFilter{}, []string{"e1", "e2", "e3"}},
		{"by rule", EventFilter{RuleID: "r1"}, []string{"e1", "e3"}},
		{"by component", EventFilter{ComponentCode: "C2"}, []string{"e2"}},
		{"by status", EventFilter{Status: models.StatusClosed}, []string{"e3"}},
		{"by origin", EventFilter{Origin: models.OriginSimulated}, []string{"e3"}},
		{"by severity", EventFilter{Severity: models.SeverityWarning}, []string{"e2"}},
		{"from tick", EventFilter{FromTick: ptr(int64(20))}, []string{"e2"}},
		{"to tick", EventFilter{ToTick: ptr(int64(20))}, []string{"e1", "e3"}},
		{"limit", EventFilter{Limit: 2}, []string{"e1", "e2"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, err := m.ListEvents(ctx, tc.filter)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]string, len(events))
			for i, e := range events {
				got[i] = e.ID
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestListEventsReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})

	events, err := m.ListEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	events[0].PeakValue = 999

	again, err := m.ListEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if again[0].PeakValue != 150 {
		t.Error("caller mutation leaked into the store")
	}
}

func TestCreateIncident_DuplicateOpenRejected(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})

	inc := &models.Incident{
		ID:            "i1",
		ComponentCode: "C1",
		StartTick:     10,
		Severity:      models.SeverityCritical,
		Status:        models.IncidentOpen,
		Origin:        models.OriginReal,
	}
	if err := m.CreateIncident(ctx, inc, []string{"e1"}); err != nil {
		t.Fatal(err)
	}

	dup := *inc
	dup.ID = "i2"
	err := m.CreateIncident(ctx, &dup, []string{"e1"})
	if !errors.Is(err, ErrDuplicateOpenIncident) {
		t.Fatalf("expected ErrDuplicateOpenIncident, got %v", err)
	}
}

func TestCreateIncident_UnknownAlertRejected(t *testing.T) {
	m := NewMemory()
	inc := &models.Incident{
		ID:            "i1",
		ComponentCode: "C1",
		StartTick:     10,
		Severity:      models.SeverityCritical,
		Status:        models.IncidentOpen,
		Origin:        models.OriginReal,
	}
	err := m.CreateIncident(context.Background(), inc, []string{"missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyIncidentBatch_CreateAndResolve(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})

	inc := &models.Incident{
		ID:            "i1",
		ComponentCode: "C1",
		StartTick:     10,
		Severity:      models.SeverityCritical,
		Status:        models.IncidentOpen,
		Origin:        models.OriginReal,
	}
	if err := m.ApplyIncidentBatch(ctx, IncidentBatch{
		Create: []IncidentCreate{{Incident: inc, AlertEventIDs: []string{"e1"}}},
	}); err != nil {
		t.Fatal(err)
	}

	linked, err := m.IncidentAlerts(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 1 || linked[0].ID != "e1" {
		t.Fatalf("join rows not committed: %+v", linked)
	}

	if err := m.ApplyIncidentBatch(ctx, IncidentBatch{
		Resolve: []IncidentResolution{{IncidentID: "i1", EndTick: 48}},
	}); err != nil {
		t.Fatal(err)
	}

	resolved, err := m.ListIncidents(ctx, IncidentFilter{Status: models.IncidentResolved})
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved) != 1 || resolved[0].EndTick == nil || *resolved[0].EndTick != 48 {
		t.Fatalf("resolution not committed: %+v", resolved)
	}
}

func TestApplyIncidentBatch_RejectedBatchLeavesStoreUntouched(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})

	inc := &models.Incident{
		ID:            "i1",
		ComponentCode: "C1",
		StartTick:     10,
		Severity:      models.SeverityCritical,
		Status:        models.IncidentOpen,
		Origin:        models.OriginReal,
	}

	// The create is valid but the resolve references a missing incident,
	// so nothing from the batch may land.
	err := m.ApplyIncidentBatch(ctx, IncidentBatch{
		Create:  []IncidentCreate{{Incident: inc, AlertEventIDs: []string{"e1"}}},
		Resolve: []IncidentResolution{{IncidentID: "missing", EndTick: 5}},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	incidents, listErr := m.ListIncidents(ctx, IncidentFilter{})
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(incidents) != 0 {
		t.Fatalf("rejected batch partially committed: %d incidents", len(incidents))
	}
}

func TestApplyIncidentBatch_DuplicateScopeWithinBatch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})

	mk := func(id string) IncidentCreate {
		return IncidentCreate{
			Incident: &models.Incident{
				ID:            id,
				ComponentCode: "C1",
				StartTick:     10,
				Severity:      models.SeverityCritical,
				Status:        models.IncidentOpen,
				Origin:        models.OriginReal,
			},
			AlertEventIDs: []string{"e1"},
		}
	}

	err := m.ApplyIncidentBatch(ctx, IncidentBatch{Create: []IncidentCreate{mk("i1"), mk("i2")}})
	if !errors.Is(err, ErrDuplicateOpenIncident) {
		t.Fatalf("expected ErrDuplicateOpenIncident, got %v", err)
	}

	incidents, listErr := m.ListIncidents(ctx, IncidentFilter{})
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(incidents) != 0 {
		t.Fatal("duplicate-scope batch must commit nothing")
	}
}

func TestResolveIncident(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})
	inc := &models.Incident{
		ID:            "i1",
		ComponentCode: "C1",
		StartTick:     10,
		Severity:      models.SeverityCritical,
		Status:        models.IncidentOpen,
		Origin:        models.OriginReal,
	}
	if err := m.CreateIncident(ctx, inc, []string{"e1"}); err != nil {
		t.Fatal(err)
	}

	if err := m.ResolveIncident(ctx, "i1", 48); err != nil {
		t.Fatal(err)
	}

	got, err := m.ListIncidents(ctx, IncidentFilter{Status: models.IncidentResolved})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].EndTick == nil || *got[0].EndTick != 48 {
		t.Fatalf("resolution not recorded: %+v", got)
	}

	if err := m.ResolveIncident(ctx, "i1", 50); !errors.Is(err, ErrIncidentNotOpen) {
		t.Fatalf("expected ErrIncidentNotOpen on re-resolve, got %v", err)
	}

	open, err := m.FindOpenIncident(ctx, "C1", models.OriginReal)
	if err != nil {
		t.Fatal(err)
	}
	if open != nil {
		t.Error("resolved incident still reported open")
	}
}

func TestPurgeEvents(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e1", "r1", "C1", models.OriginReal),
	}})
	inc := &models.Incident{
		ID:            "i1",
		ComponentCode: "C1",
		StartTick:     10,
		Severity:      models.SeverityCritical,
		Status:        models.IncidentOpen,
		Origin:        models.OriginReal,
	}
	if err := m.CreateIncident(ctx, inc, []string{"e1"}); err != nil {
		t.Fatal(err)
	}

	if err := m.PurgeEvents(ctx); err != nil {
		t.Fatal(err)
	}

	events, err := m.ListEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Error("events survived purge")
	}

	linked, err := m.IncidentAlerts(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 0 {
		t.Error("incident joins survived purge")
	}

	// Purged keys may open again.
	mustApply(t, m, EventBatch{Create: []*models.AlertEvent{
		testEvent("e2", "r1", "C1", models.OriginReal),
	}})
}

func TestPutRule_ValidationAndOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	bad := &models.AlertRule{ID: "", SignalCode: "s", Operator: models.OpGT, MinDurationTicks: 1, Severity: models.SeverityInfo}
	if err := m.PutRule(ctx, bad); err == nil {
		t.Error("expected validation error for empty rule ID")
	}

	for _, id := range []string{"r2", "r1", "r3"} {
		r := &models.AlertRule{
			ID:               id,
			SignalCode:       "s",
			Operator:         models.OpGT,
			Threshold:        1,
			MinDurationTicks: 1,
			Severity:         models.SeverityInfo,
			Enabled:          id != "r3",
		}
		if err := m.PutRule(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	all, err := m.ListRules(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "r2" || all[1].ID != "r1" {
		t.Fatalf("insertion order lost: %+v", all)
	}

	enabled, err := m.ListRules(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled rules, got %d", len(enabled))
	}
}
