package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetwatch/internal/logger"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
	"fleetwatch/internal/store"
)

// CycleResult summarizes one evaluation cycle for observability.
type CycleResult struct {
	Evaluated int           `json:"evaluated_rules"`
	Created   int           `json:"created_events"`
	Updated   int           `json:"updated_events"`
	Closed    int           `json:"closed_events"`
	Origin    models.Origin `json:"origin"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeNoop
	outcomeCreate
	outcomeExtend
	outcomeClose
)

// decision is the per-rule result of a cycle's worker pass. Decisions are
// collected and committed as one atomic batch.
type decision struct {
	kind    outcome
	event   *models.AlertEvent // create/extend payload
	closeID string
}

// RunEvaluationCycle pulls enabled rules, evaluates each against its
// signal's sample window, and commits the resulting alert event
// transitions as one all-or-nothing batch.
//
// The cycle is serialized per origin. Rules are evaluated in parallel by
// a bounded worker pool: each rule's (rule, component, origin) key is
// owned by exactly one worker against a read-only open-event index built
// at cycle start, so no two workers can race on the same exclusion scope.
func (e *Engine) RunEvaluationCycle(ctx context.Context, origin models.Origin, lookbackTicks int) (CycleResult, error) {
	if !origin.IsValid() {
		return CycleResult{}, fmt.Errorf("invalid origin %q", origin)
	}
	if lookbackTicks <= 0 {
		lookbackTicks = e.cfg.LookbackTicks
	}

	lock := e.originLock(origin)
	lock.Lock()
	defer lock.Unlock()

	log := logger.WithOrigin("engine", string(origin))
	start := time.Now()

	result, err := e.runCycleLocked(ctx, origin, lookbackTicks, log)

	metrics.EvalCycleDuration.WithLabelValues(string(origin)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EvalCyclesTotal.WithLabelValues(string(origin), "failed").Inc()
		log.Error().Err(err).Msg("evaluation cycle failed")
		return CycleResult{}, err
	}

	metrics.EvalCyclesTotal.WithLabelValues(string(origin), "ok").Inc()
	metrics.RulesEvaluatedTotal.WithLabelValues(string(origin)).Add(float64(result.Evaluated))
	metrics.AlertEventsTotal.WithLabelValues(string(origin), "created").Add(float64(result.Created))
	metrics.AlertEventsTotal.WithLabelValues(string(origin), "updated").Add(float64(result.Updated))
	metrics.AlertEventsTotal.WithLabelValues(string(origin), "closed").Add(float64(result.Closed))

	log.Info().
		Int("evaluated", result.Evaluated).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("closed", result.Closed).
		Dur("duration", time.Since(start)).
		Msg("evaluation cycle completed")

	return result, nil
}

func (e *Engine) runCycleLocked(ctx context.Context, origin models.Origin, lookbackTicks int, log zerolog.Logger) (CycleResult, error) {
	rules, err := e.store.ListRules(ctx, true)
	if err != nil {
		return CycleResult{}, fmt.Errorf("listing rules: %w", err)
	}

	signalList, err := e.store.ListSignals(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("listing signals: %w", err)
	}
	signals := make(map[string]*models.Signal, len(signalList))
	for _, s := range signalList {
		signals[s.Code] = s
	}

	// Rebuild the open-event index from durable state; no open-alert
	// lookup state survives between cycles.
	openList, err := e.store.ListEvents(ctx, store.EventFilter{
		Status: models.StatusOpen,
		Origin: origin,
	})
	if err != nil {
		return CycleResult{}, fmt.Errorf("listing open events: %w", err)
	}
	openIdx := make(map[models.EventKey]*models.AlertEvent, len(openList))
	for _, ev := range openList {
		openIdx[ev.Key()] = ev
	}

	decisions := e.evaluateRules(ctx, rules, signals, openIdx, origin, lookbackTicks, log)

	result := CycleResult{Origin: origin}
	var batch store.EventBatch
	for _, d := range decisions {
		switch d.kind {
		case outcomeSkipped:
			continue
		case outcomeCreate:
			batch.Create = append(batch.Create, d.event)
			result.Created++
		case outcomeExtend:
			batch.Extend = append(batch.Extend, d.event)
			result.Updated++
		case outcomeClose:
			batch.Close = append(batch.Close, d.closeID)
			result.Closed++
		}
		result.Evaluated++
	}

	if !batch.Empty() {
		if err := e.store.ApplyEventBatch(ctx, batch); err != nil {
			return CycleResult{}, fmt.Errorf("committing event batch: %w", err)
		}
	}

	metrics.OpenAlertEvents.WithLabelValues(string(origin)).
		Set(float64(len(openIdx) + result.Created - result.Closed))

	return result, nil
}

// evaluateRules fans rules out to a bounded worker pool and collects one
// decision per rule.
func (e *Engine) evaluateRules(ctx context.Context, rules []*models.AlertRule, signals map[string]*models.Signal, openIdx map[models.EventKey]*models.AlertEvent, origin models.Origin, lookbackTicks int, log zerolog.Logger) []decision {
	workers := e.cfg.Workers
	if workers > len(rules) {
		workers = len(rules)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *models.AlertRule)
	out := make(chan decision, len(rules))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rule := range jobs {
				out <- e.evaluateRule(ctx, rule, signals, openIdx, origin, lookbackTicks, log)
			}
		}()
	}

	for _, rule := range rules {
		jobs <- rule
	}
	close(jobs)
	wg.Wait()
	close(out)

	decisions := make([]decision, 0, len(rules))
	for d := range out {
		decisions = append(decisions, d)
	}
	return decisions
}

// evaluateRule applies the streak evaluator's verdict to the state
// machine for one rule. Configuration and data errors skip the rule;
// they never fail the cycle.
func (e *Engine) evaluateRule(ctx context.Context, rule *models.AlertRule, signals map[string]*models.Signal, openIdx map[models.EventKey]*models.AlertEvent, origin models.Origin, lookbackTicks int, log zerolog.Logger) decision {
	signal, ok := signals[rule.SignalCode]
	if !ok {
		log.Debug().Str("rule_id", rule.ID).Str("signal", rule.SignalCode).Msg("rule skipped: unknown signal")
		metrics.RulesSkippedTotal.WithLabelValues(string(origin), "unknown_signal").Inc()
		return decision{kind: outcomeSkipped}
	}

	if !rule.Operator.Valid() {
		log.Debug().Str("rule_id", rule.ID).Msg("rule skipped: unrecognized operator")
		metrics.RulesSkippedTotal.WithLabelValues(string(origin), "bad_operator").Inc()
		return decision{kind: outcomeSkipped}
	}

	samples, err := e.series.ReadWindow(ctx, signal.ComponentCode, signal.ColumnName, lookbackTicks)
	if err != nil {
		log.Warn().Err(err).Str("rule_id", rule.ID).Str("signal", rule.SignalCode).Msg("rule skipped: sample read failed")
		metrics.RulesSkippedTotal.WithLabelValues(string(origin), "read_failed").Inc()
		return decision{kind: outcomeSkipped}
	}

	if len(samples) == 0 {
		metrics.RulesSkippedTotal.WithLabelValues(string(origin), "empty_window").Inc()
		return decision{kind: outcomeSkipped}
	}

	res := EvaluateStreak(rule.Operator, rule.Threshold, rule.MinDurationTicks, samples)
	latestTick := samples[len(samples)-1].Tick

	key := models.EventKey{RuleID: rule.ID, ComponentCode: signal.ComponentCode, Origin: origin}
	open := openIdx[key]

	switch {
	case res.Violating && open == nil:
		return decision{kind: outcomeCreate, event: &models.AlertEvent{
			ID:            uuid.New().String(),
			RuleID:        rule.ID,
			ComponentCode: signal.ComponentCode,
			SignalCode:    signal.Code,
			TickStart:     res.StreakStart,
			TickEnd:       latestTick,
			PeakValue:     res.Peak,
			Severity:      rule.Severity,
			Status:        models.StatusOpen,
			Origin:        origin,
		}}

	case res.Violating && open != nil:
		extended := *open
		extended.TickEnd = latestTick
		extended.PeakValue = rule.Operator.MoreExtreme(open.PeakValue, res.Peak)
		return decision{kind: outcomeExtend, event: &extended}

	case !res.Violating && open != nil:
		return decision{kind: outcomeClose, closeID: open.ID}

	default:
		return decision{kind: outcomeNoop}
	}
}
