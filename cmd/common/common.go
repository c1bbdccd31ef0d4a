// Package common wires the crawl service stack shared by the CLI commands.
package common

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/docspasta/internal/config"
	"github.com/jonesrussell/docspasta/internal/discovery"
	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/job"
	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
	"github.com/jonesrussell/docspasta/internal/metrics"
	"github.com/jonesrussell/docspasta/internal/pipeline"
	"github.com/jonesrussell/docspasta/internal/worker"
)

// discoveryTimeout bounds robots.txt and sitemap fetches.
const discoveryTimeout = 15 * time.Second

// Stack is the fully wired crawl service.
type Stack struct {
	Cfg        *config.Config
	Log        logger.Interface
	Store      *kv.RedisStore
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Events     *events.Log
	Jobs       *job.Service
	Dispatcher *worker.GoDispatcher
}

// Build loads configuration and constructs the service stack: store, event
// log, discovery, dispatcher, worker runner, and job service, bound together.
func Build() (*Stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, err
	}

	store, err := kv.NewRedisStore(cfg.Redis)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	stats := metrics.New(registry)
	eventLog := events.NewLog(store, log).Instrument(stats)

	httpClient := &http.Client{Timeout: discoveryTimeout}
	robots := discovery.NewRobots(store, httpClient, log, pipeline.UserAgent)
	sitemap := discovery.NewSitemap(store, httpClient, robots, log, pipeline.UserAgent)

	dispatcher := worker.NewGoDispatcher(cfg.Crawl.InvocationLimit, log)

	svc := job.New(job.Config{
		Store:      store,
		Events:     eventLog,
		Sitemap:    sitemap,
		Dispatcher: dispatcher,
		Metrics:    stats,
		Logger:     log,
		Caps:       cfg.Crawl.Caps(),
	})

	dispatcher.Bind(worker.NewRunner(worker.Config{
		Store:      store,
		Events:     eventLog,
		Metrics:    stats,
		Logger:     log,
		Robots:     robots,
		Dispatcher: dispatcher,
		Completer:  svc,
	}))

	return &Stack{
		Cfg:        cfg,
		Log:        log,
		Store:      store,
		Registry:   registry,
		Metrics:    stats,
		Events:     eventLog,
		Jobs:       svc,
		Dispatcher: dispatcher,
	}, nil
}

// Close waits for in-flight worker invocations and releases the store.
func (s *Stack) Close() {
	s.Dispatcher.Wait()

	if err := s.Store.Close(); err != nil {
		s.Log.Warn("store close failed", "error", err)
	}
}
