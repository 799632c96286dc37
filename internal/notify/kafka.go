package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"fleetwatch/internal/config"
	"fleetwatch/internal/logger"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
)

// Dispatcher errors
var (
	ErrDispatcherClosed = errors.New("dispatcher is closed")
	ErrSerializeFailed  = errors.New("failed to serialize incident batch")
)

// KafkaDispatcher publishes incident notice batches to a Kafka topic
// through a small pool of writers with exponential-backoff retry.
type KafkaDispatcher struct {
	cfg     config.KafkaConfig
	writers []*kafka.Writer
	pool    chan *kafka.Writer
	closed  atomic.Bool

	batchesSent   atomic.Uint64
	batchesFailed atomic.Uint64
}

// NewKafkaDispatcher creates a dispatcher for the configured brokers and topic.
func NewKafkaDispatcher(cfg config.KafkaConfig) (*KafkaDispatcher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2
	}

	d := &KafkaDispatcher{
		cfg:     cfg,
		writers: make([]*kafka.Writer, cfg.PoolSize),
		pool:    make(chan *kafka.Writer, cfg.PoolSize),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{}, // Partition by component
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  cfg.MaxRetries + 1,
			Async:        false, // Sync for reliability
		}
		d.writers[i] = writer
		d.pool <- writer
	}

	return d, nil
}

var _ Dispatcher = (*KafkaDispatcher)(nil)

// NotifyNewIncidents publishes one message carrying the whole batch.
func (d *KafkaDispatcher) NotifyNewIncidents(ctx context.Context, incidents []*models.Incident, alertsByIncident map[string][]*models.AlertEvent) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	if len(incidents) == 0 {
		return nil
	}

	batch := NewBatch(incidents, alertsByIncident)
	data, err := json.Marshal(batch)
	if err != nil {
		d.batchesFailed.Add(1)
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	msg := kafka.Message{
		Key:   []byte(incidents[0].ComponentCode),
		Value: data,
		Headers: []kafka.Header{
			{Key: "incident_count", Value: []byte(strconv.Itoa(len(incidents)))},
		},
		Time: time.Now().UTC(),
	}

	var writer *kafka.Writer
	select {
	case writer = <-d.pool:
		defer func() { d.pool <- writer }()
	case <-ctx.Done():
		d.batchesFailed.Add(1)
		return ctx.Err()
	}

	start := time.Now()
	err = d.publishWithRetry(ctx, writer, msg)
	metrics.NotificationPublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		d.batchesFailed.Add(1)
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return err
	}

	d.batchesSent.Add(1)
	metrics.NotificationsTotal.WithLabelValues("success").Inc()
	return nil
}

// publishWithRetry publishes a message with exponential backoff retry
func (d *KafkaDispatcher) publishWithRetry(ctx context.Context, writer *kafka.Writer, msg kafka.Message) error {
	log := logger.WithComponent("kafka_dispatcher")
	var lastErr error
	backoff := d.cfg.RetryBackoff

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying incident notice publish")

			metrics.NotificationRetries.Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Msg("incident notice publish attempt failed")

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", d.cfg.MaxRetries+1, lastErr)
}

// Close closes all writers in the pool
func (d *KafkaDispatcher) Close() error {
	if d.closed.Swap(true) {
		return nil // Already closed
	}

	var errs []error
	for _, writer := range d.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing writers: %v", errs)
	}
	return nil
}

// Stats returns dispatcher counters.
func (d *KafkaDispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		BatchesSent:   d.batchesSent.Load(),
		BatchesFailed: d.batchesFailed.Load(),
	}
}

// DispatcherStats holds dispatcher metrics
type DispatcherStats struct {
	BatchesSent   uint64
	BatchesFailed uint64
}
