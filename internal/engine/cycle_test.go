package engine

import (
	"context"
	"fmt"
	"testing"

	"fleetwatch/internal/models"
	"fleetwatch/internal/store"
	"fleetwatch/internal/timeseries"
)

func newTestEngine(t *testing.T) (*Engine, *store.Memory, *timeseries.MemorySeries) {
	t.Helper()
	st := store.NewMemory()
	series := timeseries.NewMemorySeries()
	eng := New(st, series, nil, Config{
		LookbackTicks:     200,
		Workers:           2,
		CriticalThreshold: 2,
		SustainedTicks:    10,
	})
	return eng, st, series
}

func seedRule(t *testing.T, st *store.Memory, ruleID string, op models.Operator, threshold float64, minDuration int, severity models.Severity) {
	t.Helper()
	ctx := context.Background()
	signal := &models.Signal{
		Code:          ruleID + ".signal",
		ComponentCode: "C1",
		ColumnName:    ruleID + "_col",
		Kind:          models.KindMetric,
		Polarity:      models.HigherIsWorse,
	}
	if err := st.PutSignal(ctx, signal); err != nil {
		t.Fatalf("putting signal: %v", err)
	}
	rule := &models.AlertRule{
		ID:               ruleID,
		SignalCode:       signal.Code,
		Operator:         op,
		Threshold:        threshold,
		MinDurationTicks: minDuration,
		Severity:         severity,
		Enabled:          true,
	}
	if err := st.PutRule(ctx, rule); err != nil {
		t.Fatalf("putting rule: %v", err)
	}
}

func push(series *timeseries.MemorySeries, column string, startTick int64, values ...float64) {
	for i := range values {
		val := values[i]
		series.Append("C1", column, startTick+int64(i), &val)
	}
}

func openEvents(t *testing.T, st *store.Memory, origin models.Origin) []*models.AlertEvent {
	t.Helper()
	events, err := st.ListEvents(context.Background(), store.EventFilter{
		Status: models.StatusOpen,
		Origin: origin,
	})
	if err != nil {
		t.Fatalf("listing events: %v", err)
	}
	return events
}

func TestCycle_CreatesEvent(t *testing.T) {
	eng, st, series := newTestEngine(t)
	seedRule(t, st, "r1", models.OpGT, 100, 2, models.SeverityCritical)
	push(series, "r1_col", 1, 150, 160, 170)

	result, err := eng.RunEvaluationCycle(context.Background(), models.OriginReal, 0)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if result.Evaluated != 1 || result.Created != 1 || result.Updated != 0 || result.Closed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Origin != models.OriginReal {
		t.Errorf("expected REAL origin, got %s", result.Origin)
	}

	events := openEvents(t, st, models.OriginReal)
	if len(events) != 1 {
		t.Fatalf("expected 1 open event, got %d", len(events))
	}
	ev := events[0]
	if ev.TickStart != 1 {
		t.Errorf("expected tick_start 1, got %d", ev.TickStart)
	}
	if ev.TickEnd != 3 {
		t.Errorf("expected tick_end 3, got %d", ev.TickEnd)
	}
	if ev.PeakValue != 170 {
		t.Errorf("expected peak 170, got %v", ev.PeakValue)
	}
	if ev.Severity != models.SeverityCritical {
		t.Errorf("severity not copied from rule: %s", ev.Severity)
	}
	if ev.ComponentCode != "C1" || ev.SignalCode != "r1.signal" {
		t.Errorf("denormalized codes wrong: %s %s", ev.ComponentCode, ev.SignalCode)
	}
}

func TestCycle_ExtendsEvent(t *testing.T) {
	eng, st, series := newTestEngine(t)
	seedRule(t, st, "r1", models.OpGT, 100, 2, models.SeverityWarning)
	push(series, "r1_col", 1, 150, 160)

	ctx := context.Background()
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	push(series, "r1_col", 3, 180)
	result, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if result.Created != 0 || result.Updated != 1 || result.Closed != 0 {
		t.Fatalf("expected pure extend, got %+v", result)
	}

	events := openEvents(t, st, models.OriginReal)
	if len(events) != 1 {
		t.Fatalf("expected 1 open event, got %d", len(events))
	}
	if events[0].TickEnd != 3 {
		t.Errorf("expected tick_end 3, got %d", events[0].TickEnd)
	}
	if events[0].PeakValue != 180 {
		t.Errorf("expected peak 180, got %v", events[0].PeakValue)
	}
}

func TestCycle_PeakNeverRelaxesWhileOpen(t *testing.T) {
	eng, st, series := newTestEngine(t)
	seedRule(t, st, "r1", models.OpGT, 100, 1, models.SeverityWarning)
	push(series, "r1_col", 1, 190)

	ctx := context.Background()
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}

	// Still violating but at a milder level: peak must not relax.
	push(series, "r1_col", 2, 120)
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}

	events := openEvents(t, st, models.OriginReal)
	if events[0].PeakValue != 190 {
		t.Errorf("peak relaxed from 190 to %v", events[0].PeakValue)
	}
}

func TestCycle_MinTrackingPeak(t *testing.T) {
	eng, st, series := newTestEngine(t)
	seedRule(t, st, "r1", models.OpLT, 50, 1, models.SeverityWarning)
	push(series, "r1_col", 1, 20)

	ctx := context.Background()
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}
	push(series, "r1_col", 2, 40)
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}

	events := openEvents(t, st, models.OriginReal)
	if events[0].PeakValue != 20 {
		t.Errorf("expected min-tracking peak 20, got %v", events[0].PeakValue)
	}
}

func TestCycle_ClosesOnGap(t *testing.T) {
	eng, st, series := newTestEngine(t)
	seedRule(t, st, "r1", models.OpGT, 100, 2, models.SeverityWarning)
	push(series, "r1_col", 1, 150, 160)

	ctx := context.Background()
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}

	series.Append("C1", "r1_col", 3, nil)
	result, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Closed != 1 || result.Created != 0 {
		t.Fatalf("expected one close, got %+v", result)
	}

	if len(openEvents(t, st, models.OriginReal)) != 0 {
		t.Error("event still open after gap")
	}

	closed, err := st.ListEvents(ctx, store.EventFilter{Status: models.StatusClosed})
	if err != nil {
		t.Fatal(err)
	}
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed event, got %d", len(closed))
	}
	// Close applies no new tick_end or peak.
	if closed[0].TickEnd != 2 {
		t.Errorf("close must not extend tick_end, got %d", closed[0].TickEnd)
	}
}

func TestCycle_ReopenIsNewIdentity(t *testing.T) {
	eng, st, series := newTestEngine(t)
	seedRule(t, st, "r1", models.OpGT, 100, 1, models.SeverityWarning)
	push(series, "r1_col", 1, 150)

	ctx := context.Background()
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}
	first := openEvents(t, st, models.OriginReal)[0]

	push(series, "r1_col", 2, 10) // recovery closes
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}
	push(series, "r1_col", 3, 150) // violation reopens
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}

	second := openEvents(t, st, models.OriginReal)
	if len(second) != 1 {
		t.Fatalf("expected 1 open event, got %d", len(second))
	}
	if second[0].ID == first.ID {
		t.Error("reopened violation must be a new event identity")
	}
	if second[0].TickStart != 3 {
		t.Errorf("expected new streak start 3, got %d", second[0].TickStart)
	}
}

func TestCycle_Idempotence(t *testing.T) {
	eng, st, series := newTestEngine(t)
	seedRule(t, st, "r1", models.OpGT, 100, 2, models.SeverityWarning)
	push(series, "r1_col", 1, 150, 160, 170)

	ctx := context.Background()
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}
	result, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0)
	if err != nil {
		t.Fatal(err)
	}

	if result.Created != 0 || result.Closed != 0 {
		t.Fatalf("second run over unchanged samples must create/close nothing, got %+v", result)
	}
	if len(openEvents(t, st, models.OriginReal)) != 1 {
		t.Error("exactly one open event expected after repeated cycles")
	}
}

func TestCycle_OriginIsolation(t *testing.T) {
	eng, st, series := newTestEngine(t)
	seedRule(t, st, "r1", models.OpGT, 100, 1, models.SeverityWarning)
	push(series, "r1_col", 1, 150)

	ctx := context.Background()
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
		t.Fatal(err)
	}
	simResult, err := eng.RunEvaluationCycle(ctx, models.OriginSimulated, 0)
	if err != nil {
		t.Fatal(err)
	}
	if simResult.Created != 1 {
		t.Fatalf("simulated cycle should open its own event, got %+v", simResult)
	}

	real := openEvents(t, st, models.OriginReal)
	sim := openEvents(t, st, models.OriginSimulated)
	if len(real) != 1 || len(sim) != 1 {
		t.Fatalf("expected one open event per origin, got %d real %d simulated", len(real), len(sim))
	}

	// A simulated recovery must not touch the REAL event.
	push(series, "r1_col", 2, 10)
	if _, err := eng.RunEvaluationCycle(ctx, models.OriginSimulated, 0); err != nil {
		t.Fatal(err)
	}
	if len(openEvents(t, st, models.OriginReal)) != 1 {
		t.Error("simulated cycle closed a REAL event")
	}
	if len(openEvents(t, st, models.OriginSimulated)) != 0 {
		t.Error("simulated event should have closed")
	}
}

func TestCycle_SkipsRuleWithUnknownSignal(t *testing.T) {
	eng, st, series := newTestEngine(t)
	seedRule(t, st, "r1", models.OpGT, 100, 1, models.SeverityWarning)
	push(series, "r1_col", 1, 150)

	ctx := context.Background()
	orphan := &models.AlertRule{
		ID:               "r-orphan",
		SignalCode:       "missing.signal",
		Operator:         models.OpGT,
		Threshold:        1,
		MinDurationTicks: 1,
		Severity:         models.SeverityInfo,
		Enabled:          true,
	}
	if err := st.PutRule(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	result, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0)
	if err != nil {
		t.Fatalf("unknown signal must not fail the cycle: %v", err)
	}
	if result.Evaluated != 1 {
		t.Errorf("skipped rule must not count as evaluated, got %d", result.Evaluated)
	}
	if result.Created != 1 {
		t.Errorf("healthy rule should still evaluate, got %+v", result)
	}
}

func TestCycle_SkipsRuleWithEmptyWindow(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	seedRule(t, st, "r1", models.OpGT, 100, 1, models.SeverityWarning)
	// No samples pushed at all.

	result, err := eng.RunEvaluationCycle(context.Background(), models.OriginReal, 0)
	if err != nil {
		t.Fatalf("empty window must not fail the cycle: %v", err)
	}
	if result.Evaluated != 0 || result.Created != 0 {
		t.Fatalf("empty window rule must be skipped, got %+v", result)
	}
}

func TestCycle_InvalidOrigin(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	if _, err := eng.RunEvaluationCycle(context.Background(), models.Origin("BOGUS"), 0); err == nil {
		t.Error("expected error for invalid origin")
	}
}

func TestCycle_ManyRulesParallel(t *testing.T) {
	eng, st, series := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		ruleID := fmt.Sprintf("r%02d", i)
		seedRule(t, st, ruleID, models.OpGT, 100, 1, models.SeverityWarning)
		push(series, ruleID+"_col", 1, 150)
	}

	result, err := eng.RunEvaluationCycle(ctx, models.OriginReal, 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Evaluated != 20 || result.Created != 20 {
		t.Fatalf("expected 20 evaluated and created, got %+v", result)
	}
	if len(openEvents(t, st, models.OriginReal)) != 20 {
		t.Error("expected 20 open events")
	}
}
