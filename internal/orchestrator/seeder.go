// Package orchestrator provisions a seller organization on the commerce platform and restores
// environment wiring after a staging data restore.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"headstart/internal/batch"
	"headstart/internal/catalog"
	"headstart/internal/ledger"
	"headstart/pkg/blob"
	"headstart/pkg/metrics"
	"headstart/pkg/platform"
	"headstart/pkg/portal"
)

// Config holds the settings provisioning writes into the organization.
type Config struct {
	APIURL            string
	ClientID          string
	WebhookHashKey    string
	MiddlewareBaseURL string
	LocalCheckoutURL  string
	// LockTTL bounds how long one run may hold its organization.
	LockTTL time.Duration
}

// RateUpdater refreshes exchange-rate tables.
type RateUpdater interface {
	Update(ctx context.Context) error
}

// Deps are the collaborators a Seeder drives. Platform and Portal are required.
type Deps struct {
	Platform     platform.Client
	Portal       portal.Service
	Rates        RateUpdater
	Translations blob.Store
	Catalog      *catalog.Catalog
	Batch        batch.Runner
	Runs         ledger.Store
	Locks        ledger.Locker
	Log          *zap.SugaredLogger
}

type Seeder struct {
	cfg          Config
	oc           platform.Client
	portal       portal.Service
	rates        RateUpdater
	translations blob.Store
	cat          *catalog.Catalog
	batch        batch.Runner
	runs         ledger.Store
	locks        ledger.Locker
	log          *zap.SugaredLogger
	tracer       trace.Tracer
}

func New(cfg Config, d Deps) *Seeder {
	if cfg.LocalCheckoutURL == "" {
		cfg.LocalCheckoutURL = "https://marketplaceteam.ngrok.io"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	s := &Seeder{
		cfg:          cfg,
		oc:           d.Platform,
		portal:       d.Portal,
		rates:        d.Rates,
		translations: d.Translations,
		cat:          d.Catalog,
		batch:        d.Batch,
		runs:         d.Runs,
		locks:        d.Locks,
		log:          d.Log,
		tracer:       otel.Tracer("headstart/orchestrator"),
	}
	if s.cat == nil {
		s.cat = catalog.MustDefault()
	}
	if s.runs == nil {
		s.runs = ledger.NewMemoryStore()
	}
	if s.locks == nil {
		s.locks = ledger.NewMemoryLocker()
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	return s
}

// checkConfig runs before anything touches the network.
func (s *Seeder) checkConfig() error {
	switch {
	case s.cfg.APIURL == "":
		return &ConfigurationError{Setting: "ORDERCLOUD_API_URL"}
	case s.cfg.WebhookHashKey == "":
		return &ConfigurationError{Setting: "ORDERCLOUD_WEBHOOK_HASH_KEY"}
	case s.cfg.MiddlewareBaseURL == "":
		return &ConfigurationError{Setting: "MIDDLEWARE_BASE_URL"}
	}
	return nil
}

// run is one ledger-tracked, lock-holding invocation.
type run struct {
	id      string
	org     string
	kind    ledger.Kind
	release func()
}

func (s *Seeder) begin(ctx context.Context, org string, kind ledger.Kind) (*run, error) {
	release, err := s.locks.Acquire(ctx, org, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", org, err)
	}
	rec, err := s.runs.Start(ctx, org, kind)
	if err != nil {
		release()
		return nil, fmt.Errorf("record run: %w", err)
	}
	s.log.Infow("run started", "run", rec.ID, "org", org, "kind", kind)
	return &run{id: rec.ID, org: org, kind: kind, release: release}, nil
}

func (s *Seeder) end(ctx context.Context, r *run, runErr error) {
	defer r.release()
	status := ledger.StatusSucceeded
	if runErr != nil {
		status = ledger.StatusFailed
		s.log.Errorw("run failed", "run", r.id, "org", r.org, "kind", r.kind, "err", runErr)
	} else {
		s.log.Infow("run finished", "run", r.id, "org", r.org, "kind", r.kind)
	}
	metrics.Runs.WithLabelValues(string(r.kind), string(status)).Inc()
	if err := s.runs.Finish(context.WithoutCancel(ctx), r.id, runErr); err != nil {
		s.log.Warnw("record run result", "run", r.id, "err", err)
	}
}

// step runs fn as one barrier of a flow, with a span, a duration sample and a ledger checkpoint.
func (s *Seeder) step(ctx context.Context, r *run, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, string(r.kind)+"."+name, trace.WithAttributes(
		attribute.String("headstart.run", r.id),
		attribute.String("headstart.org", r.org),
	))
	defer span.End()
	if err := s.runs.Step(ctx, r.id, name); err != nil {
		s.log.Warnw("record step", "run", r.id, "step", name, "err", err)
	}
	start := time.Now()
	err := fn(ctx)
	metrics.StepDuration.WithLabelValues(string(r.kind), name, metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.log.Infow("step done", "run", r.id, "org", r.org, "step", name, "elapsed", time.Since(start).String())
	return nil
}
