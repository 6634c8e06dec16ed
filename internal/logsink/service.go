package logsink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rs/dnscache"

	"github.com/eugener/golem/internal/config"
	"github.com/eugener/golem/internal/telemetry"
	"github.com/eugener/golem/thread"
)

const workerName = "logging"

// consumer is the concrete worker type behind the service.
type consumer = thread.Consumer[Request, error]

// Service owns the logging worker. Construct with New, then Start
// before the first call.
type Service struct {
	cfg      config.LogSinkConfig
	metrics  *telemetry.Metrics
	resolver *dnscache.Resolver
	cell     thread.Static[*thread.Joining[error, *consumer]]
}

// New creates a stopped log sink service. A non-nil resolver adds
// cached DNS lookups to HTTP endpoints.
func New(cfg config.LogSinkConfig, m *telemetry.Metrics, resolver *dnscache.Resolver) *Service {
	return &Service{cfg: cfg, metrics: m, resolver: resolver}
}

// Start builds the configured endpoints and spawns the worker. It fails
// when the service is already running.
func (s *Service) Start() error {
	endpoints, err := buildEndpoints(s.cfg.Endpoints, s.resolver)
	if err != nil {
		return err
	}

	c, err := thread.SpawnConsumer(workerName, s.cfg.Capacity, run(s.cfg.FlushEvery, s.metrics, endpoints))
	if err != nil {
		return fmt.Errorf("spawn logging worker: %w", err)
	}

	// Shutdown goes through the worker's own channel so buffered
	// entries are flushed before the join.
	j := thread.NewJoining[error](c).
		PreJoin(func(c *consumer) {
			if err := c.Send(context.Background(), Request{Op: OpClose}); err != nil {
				c.Close()
			}
		}).
		OnValue(func(err error) {
			if err != nil {
				slog.Warn("log sink closed with failures", "error", err)
			}
		}).
		OnPanic(func(pe *thread.PanicError) {
			s.metrics.WorkerPanics.WithLabelValues(workerName).Inc()
			slog.LogAttrs(context.Background(), slog.LevelError, "logging worker crashed",
				slog.String("error", pe.Error()),
			)
		})

	if err := s.cell.Initialize(j); err != nil {
		c.Close()
		c.Thread().Join()
		return fmt.Errorf("start logging: %w", err)
	}
	slog.Info("log sink started", "endpoints", len(endpoints), "flush_every", s.cfg.FlushEvery)
	return nil
}

// Close flushes and tears the worker down. It fails when the service
// was never started.
func (s *Service) Close() error {
	j, ok := s.cell.Uninitialize()
	if !ok {
		return thread.ErrUninitialized
	}
	j.Close()
	slog.Info("log sink stopped")
	return nil
}

// Status reports the worker's lifecycle state and queued request count.
func (s *Service) Status() (state string, pending int) {
	g, err := s.cell.TryGet()
	if err != nil {
		return "stopped", 0
	}
	defer g.Release()
	c := (*g.Value()).Get()
	return c.Thread().State().String(), c.Queued()
}

// send delivers one request to the worker.
func (s *Service) send(ctx context.Context, op string, req Request) error {
	g, err := s.cell.TryGet()
	if err != nil {
		return err
	}
	defer g.Release()

	s.metrics.CallsTotal.WithLabelValues(workerName, op).Inc()
	if err := (*g.Value()).Get().Send(ctx, req); err != nil {
		s.metrics.CallErrors.WithLabelValues(workerName, op).Inc()
		return err
	}
	return nil
}

// Log queues an entry for the next flush.
func (s *Service) Log(ctx context.Context, level Level, message string, attrs map[string]string) error {
	return s.send(ctx, "entry", Request{Op: OpEntry, Entry: NewEntry(level, message, attrs)})
}

// Flush asks the worker to write all buffered entries out now.
func (s *Service) Flush(ctx context.Context) error {
	return s.send(ctx, "flush", Request{Op: OpFlush})
}

// Setup asks the worker to reopen its endpoints, e.g. after external
// log rotation.
func (s *Service) Setup(ctx context.Context) error {
	return s.send(ctx, "setup", Request{Op: OpSetup})
}

// AddEndpoint adds a destination to the running worker's fan-out set.
func (s *Service) AddEndpoint(ctx context.Context, ep Endpoint) error {
	return s.send(ctx, "endpoint", Request{Op: OpEndpoint, Endpoint: ep})
}
