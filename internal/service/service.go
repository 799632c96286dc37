// Package service wires the engine, catalog, store, and HTTP surface
// together and owns the process lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetwatch/internal/catalog"
	"fleetwatch/internal/config"
	"fleetwatch/internal/engine"
	"fleetwatch/internal/handlers"
	"fleetwatch/internal/logger"
	"fleetwatch/internal/middleware"
	"fleetwatch/internal/models"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/store"
	"fleetwatch/internal/timeseries"
)

// Service is the high-level coordinator for the evaluation engine.
type Service struct {
	cfg        *config.Config
	store      *store.Memory
	series     *timeseries.MemorySeries
	engine     *engine.Engine
	catalog    *catalog.Catalog
	dispatcher notify.Dispatcher
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Service with given config.
func New(cfg *config.Config) *Service {
	return &Service{
		cfg:    cfg,
		store:  store.NewMemory(),
		series: timeseries.NewMemorySeries(),
	}
}

// Run starts background goroutines and blocks until context cancelled.
func (s *Service) Run(ctx context.Context) error {
	log := logger.WithComponent("service")
	log.Info().Msg("service starting")

	if err := s.initDispatcher(); err != nil {
		log.Error().Err(err).Msg("failed to initialize dispatcher")
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	defer s.dispatcher.Close()

	s.engine = engine.New(s.store, s.series, s.dispatcher, engine.Config{
		LookbackTicks:     s.cfg.Eval.LookbackTicks,
		Workers:           s.cfg.Eval.Workers,
		CriticalThreshold: s.cfg.Incident.CriticalThreshold,
		SustainedTicks:    s.cfg.Incident.SustainedTicks,
	})
	s.catalog = catalog.New(s.store, s.series)

	s.initHTTPServer()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.Addr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	if s.cfg.Eval.Interval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScheduler(ctx)
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return s.shutdown()
}

// initDispatcher selects the notification transport. With no brokers
// configured, incident notices go to the structured log.
func (s *Service) initDispatcher() error {
	log := logger.WithComponent("service")

	if len(s.cfg.Kafka.Brokers) == 0 {
		log.Info().Msg("no kafka brokers configured, using log dispatcher")
		s.dispatcher = notify.NewLogDispatcher()
		return nil
	}

	dispatcher, err := notify.NewKafkaDispatcher(s.cfg.Kafka)
	if err != nil {
		return err
	}
	s.dispatcher = dispatcher
	log.Info().
		Strs("brokers", s.cfg.Kafka.Brokers).
		Str("topic", s.cfg.Kafka.Topic).
		Msg("kafka dispatcher initialized")
	return nil
}

// initHTTPServer initializes the HTTP server with handlers
func (s *Service) initHTTPServer() {
	mux := http.NewServeMux()

	api := handlers.New(s.engine, s.catalog, s.store, s.series)
	api.Register(mux)

	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr: s.cfg.Addr,
		Handler: middleware.Chain(
			mux,
			middleware.Recovery,
			middleware.Logging,
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// runScheduler triggers REAL evaluation and incident cycles on a fixed
// interval until the context is cancelled.
func (s *Service) runScheduler(ctx context.Context) {
	log := logger.WithComponent("scheduler")
	log.Info().Dur("interval", s.cfg.Eval.Interval).Msg("scheduler started")

	ticker := time.NewTicker(s.cfg.Eval.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.engine.RunEvaluationCycle(ctx, models.OriginReal, 0); err != nil {
				log.Error().Err(err).Msg("scheduled evaluation cycle failed")
				continue
			}
			if _, err := s.engine.RunIncidentCycle(ctx); err != nil {
				log.Error().Err(err).Msg("scheduled incident cycle failed")
			}
		}
	}
}

// shutdown performs graceful shutdown
func (s *Service) shutdown() error {
	log := logger.WithComponent("service")
	log.Info().Msg("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("closing dispatcher")
	if err := s.dispatcher.Close(); err != nil {
		log.Error().Err(err).Msg("dispatcher close error")
	}

	s.wg.Wait()

	log.Info().Msg("service stopped gracefully")
	return nil
}

// healthHandler handles health check requests
func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}
