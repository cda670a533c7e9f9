package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libmgmt/internal/util"
	"libmgmt/pkg/events"
	"libmgmt/pkg/storage"
	"libmgmt/pkg/store"
)

const tracerName = "libmgmt/services/library"

// Config holds the collaborators of the application service.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	// Events receives circulation events. Optional.
	Events events.Publisher
	// Archive keeps a copy of every imported file. Optional.
	Archive storage.ObjectStore
	Tracer  trace.Tracer
	Now     func() time.Time
}

// App is the core application service: catalog, readers, circulation,
// search, imports and statistics on top of a Store.
type App struct {
	store    store.Store
	sessions store.SessionStore
	events   events.Publisher
	archive  storage.ObjectStore
	tracer   trace.Tracer
	clock    func() time.Time
}

// New constructs the application service.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		events:   cfg.Events,
		archive:  cfg.Archive,
		tracer:   cfg.Tracer,
		clock:    cfg.Now,
	}, nil
}

func (a *App) now() time.Time {
	return a.clock().UTC()
}

// Now is the application clock in UTC. Overdue status is derived against it.
func (a *App) Now() time.Time {
	return a.now()
}

func (a *App) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func logger(ctx context.Context) *slog.Logger {
	return util.LoggerFromContext(ctx)
}
