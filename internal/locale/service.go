package locale

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/eugener/golem/internal/config"
	"github.com/eugener/golem/internal/telemetry"
	"github.com/eugener/golem/thread"
)

const workerName = "localization"

// invoker is the concrete worker type behind the service.
type invoker = thread.StatefulInvoker[*table, Request, Response]

// Service owns the localization worker. The zero value is not usable;
// construct with New, then Start before the first call.
type Service struct {
	cfg     config.LocaleConfig
	metrics *telemetry.Metrics
	cell    thread.Static[*thread.Joining[struct{}, *invoker]]
	cache   *otter.Cache[string, string]
}

// New creates a stopped localization service.
func New(cfg config.LocaleConfig, m *telemetry.Metrics) *Service {
	return &Service{cfg: cfg, metrics: m}
}

// Start spawns the worker and loads the locale directory. It fails when
// the service is already running.
func (s *Service) Start() error {
	cache, err := otter.New[string, string](&otter.Options[string, string]{
		MaximumSize:      s.cfg.CacheSize,
		ExpiryCalculator: otter.ExpiryWriting[string, string](time.Hour),
	})
	if err != nil {
		return fmt.Errorf("create locale cache: %w", err)
	}

	inv, err := thread.SpawnStatefulInvoker(workerName, s.cfg.Capacity,
		newTable(s.cfg.Dir, s.cfg.DefaultLocale), handle)
	if err != nil {
		return fmt.Errorf("spawn localization worker: %w", err)
	}

	j := thread.NewJoining[struct{}](inv).
		PreJoin(func(inv *invoker) { inv.Close() }).
		OnPanic(func(pe *thread.PanicError) {
			s.metrics.WorkerPanics.WithLabelValues(workerName).Inc()
			slog.LogAttrs(context.Background(), slog.LevelError, "localization worker crashed",
				slog.String("error", pe.Error()),
			)
		})

	// The cache is published before the cell so that a caller passing
	// TryGet always sees it set.
	s.cache = cache
	if err := s.cell.Initialize(j); err != nil {
		inv.Close()
		inv.Thread().Join()
		return fmt.Errorf("start localization: %w", err)
	}

	n, err := s.Load(context.Background())
	if err != nil {
		slog.Warn("initial locale load failed", "dir", s.cfg.Dir, "error", err)
		return nil
	}
	slog.Info("localization started", "locales", n, "default", s.cfg.DefaultLocale)
	return nil
}

// Close tears the worker down and joins it. It fails when the service
// was never started.
func (s *Service) Close() error {
	j, ok := s.cell.Uninitialize()
	if !ok {
		return thread.ErrUninitialized
	}
	j.Close()
	s.cache.InvalidateAll()
	slog.Info("localization stopped")
	return nil
}

// Status reports the worker's lifecycle state and in-flight call count.
func (s *Service) Status() (state string, pending int) {
	g, err := s.cell.TryGet()
	if err != nil {
		return "stopped", 0
	}
	defer g.Release()
	inv := (*g.Value()).Get()
	return inv.Thread().State().String(), inv.Pending()
}

// call routes one request through the worker, recording call metrics.
func (s *Service) call(ctx context.Context, op string, req Request) (Response, error) {
	g, err := s.cell.TryGet()
	if err != nil {
		return Response{}, err
	}
	defer g.Release()
	return s.invoke(ctx, (*g.Value()).Get(), op, req)
}

// invoke is call with the guard already held.
func (s *Service) invoke(ctx context.Context, inv *invoker, op string, req Request) (Response, error) {
	start := time.Now()
	s.metrics.CallsTotal.WithLabelValues(workerName, op).Inc()
	s.metrics.PendingCalls.WithLabelValues(workerName).Inc()
	resp, err := inv.Call(ctx, req)
	s.metrics.PendingCalls.WithLabelValues(workerName).Dec()
	s.metrics.CallDuration.WithLabelValues(workerName, op).Observe(time.Since(start).Seconds())
	if err == nil {
		err = resp.Err
	}
	if err != nil {
		s.metrics.CallErrors.WithLabelValues(workerName, op).Inc()
	}
	return resp, err
}

// Load reloads the locale directory and reports how many locales were
// loaded. Cached lookups are invalidated.
func (s *Service) Load(ctx context.Context) (int, error) {
	resp, err := s.call(ctx, "load", Request{Op: OpLoad})
	if err != nil {
		return 0, err
	}
	s.cache.InvalidateAll()
	return resp.Loaded, nil
}

// Clear drops all loaded locales and invalidates cached lookups.
func (s *Service) Clear(ctx context.Context) error {
	if _, err := s.call(ctx, "clear", Request{Op: OpClear}); err != nil {
		return err
	}
	s.cache.InvalidateAll()
	return nil
}

// List returns the loaded locale names in sorted order.
func (s *Service) List(ctx context.Context) ([]string, error) {
	resp, err := s.call(ctx, "list", Request{Op: OpList})
	if err != nil {
		return nil, err
	}
	return resp.Locales, nil
}

// Localize resolves category.key in the given locale (empty for the
// default). Resolved lookups are cached; a miss returns the raw key
// text rather than an error. The cache is consulted only while the cell
// guard is held, so a stopped service fails like any other call instead
// of serving stale cached text.
func (s *Service) Localize(ctx context.Context, locale, category, key string) (string, error) {
	g, err := s.cell.TryGet()
	if err != nil {
		return "", err
	}
	defer g.Release()

	ck := locale + "\x00" + category + "\x00" + key
	if text, ok := s.cache.GetIfPresent(ck); ok {
		s.metrics.LocaleCacheHits.Inc()
		return text, nil
	}
	s.metrics.LocaleCacheMiss.Inc()

	resp, err := s.invoke(ctx, (*g.Value()).Get(), "localize", Request{
		Op:       OpLocalize,
		Locale:   locale,
		Category: category,
		Key:      key,
	})
	if err != nil {
		return "", err
	}
	if !resp.Missing {
		s.cache.Set(ck, resp.Text)
	}
	return resp.Text, nil
}
