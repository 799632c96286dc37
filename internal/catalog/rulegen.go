package catalog

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"fleetwatch/internal/logger"
	"fleetwatch/internal/models"
)

// baselineWindow is the number of recent samples used to derive a
// generated rule's threshold.
const baselineWindow = 50

// GenerateRules creates one alert rule for every cataloged signal that
// does not already have one, thresholded off the signal's recent
// baseline. Returns the number of rules created.
//
// Metric signals get mean +/- 2 standard deviations in the direction of
// their polarity; health scores alert below 70; ratios alert above 0.7
// with critical severity. Signals of an unknown kind get a disabled
// safety-net rule so the gap is visible without ever firing.
func (c *Catalog) GenerateRules(ctx context.Context) (int, error) {
	log := logger.WithComponent("rulegen")

	rules, err := c.store.ListRules(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("listing rules: %w", err)
	}
	covered := make(map[string]bool, len(rules))
	for _, r := range rules {
		covered[r.SignalCode] = true
	}

	signals, err := c.store.ListSignals(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing signals: %w", err)
	}

	created := 0
	for _, s := range signals {
		if covered[s.Code] {
			continue
		}

		rule := c.ruleFor(ctx, s)
		rule.ID = uuid.New().String()
		rule.SignalCode = s.Code

		if err := c.store.PutRule(ctx, rule); err != nil {
			return created, fmt.Errorf("storing rule for %s: %w", s.Code, err)
		}

		log.Debug().
			Str("signal", s.Code).
			Str("operator", rule.Operator.String()).
			Float64("threshold", rule.Threshold).
			Msg("rule generated")
		created++
	}

	return created, nil
}

func (c *Catalog) ruleFor(ctx context.Context, s *models.Signal) *models.AlertRule {
	switch s.Kind {
	case models.KindMetric:
		mean, std, ok := c.baseline(ctx, s)
		threshold := 1.0
		if ok {
			if s.Polarity == models.LowerIsWorse {
				threshold = mean - 2*std
			} else {
				threshold = mean + 2*std
			}
		}
		op := models.OpGT
		if s.Polarity == models.LowerIsWorse {
			op = models.OpLT
		}
		return &models.AlertRule{
			Operator:         op,
			Threshold:        threshold,
			MinDurationTicks: 2,
			Severity:         models.SeverityWarning,
			Enabled:          true,
		}

	case models.KindHealth:
		return &models.AlertRule{
			Operator:         models.OpLT,
			Threshold:        70.0,
			MinDurationTicks: 3,
			Severity:         models.SeverityWarning,
			Enabled:          true,
		}

	case models.KindRatio:
		return &models.AlertRule{
			Operator:         models.OpGT,
			Threshold:        0.7,
			MinDurationTicks: 5,
			Severity:         models.SeverityCritical,
			Enabled:          true,
		}

	default:
		return &models.AlertRule{
			Operator:         models.OpNE,
			Threshold:        -1,
			MinDurationTicks: 999999,
			Severity:         models.SeverityInfo,
			Enabled:          false,
		}
	}
}

// baseline computes mean and standard deviation over the signal's recent
// present samples. ok is false with fewer than five usable values.
func (c *Catalog) baseline(ctx context.Context, s *models.Signal) (mean, std float64, ok bool) {
	samples, err := c.series.ReadWindow(ctx, s.ComponentCode, s.ColumnName, baselineWindow)
	if err != nil {
		return 0, 0, false
	}

	var values []float64
	for _, sample := range samples {
		if sample.Present {
			values = append(values, sample.Value)
		}
	}
	if len(values) < 5 {
		return 0, 0, false
	}

	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)

	return mean, math.Sqrt(variance), true
}
