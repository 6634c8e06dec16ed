package blobstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eugener/golem/internal/config"
	"github.com/eugener/golem/internal/telemetry"
	"github.com/eugener/golem/thread"
)

const workerName = "storage"

// invoker is the concrete worker type behind the service.
type invoker = thread.StatefulInvoker[*state, Request, Response]

// Service owns the storage worker. Construct with New, then Start
// before the first call.
type Service struct {
	cfg     config.BlobStoreConfig
	metrics *telemetry.Metrics
	cell    thread.Static[*thread.Joining[struct{}, *invoker]]
}

// New creates a stopped blob storage service.
func New(cfg config.BlobStoreConfig, m *telemetry.Metrics) *Service {
	return &Service{cfg: cfg, metrics: m}
}

// Start opens the database and key material and spawns the worker. It
// fails when the service is already running.
func (s *Service) Start() error {
	st, err := newState(s.cfg.DSN, s.cfg.KeyFile, s.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	inv, err := thread.SpawnStatefulInvokerContext(workerName, s.cfg.Capacity, st, handle)
	if err != nil {
		st.db.Close()
		return fmt.Errorf("spawn storage worker: %w", err)
	}

	j := thread.NewJoining[struct{}](inv).
		PreJoin(func(inv *invoker) { inv.Close() }).
		OnValue(func(struct{}) {
			if err := st.db.Close(); err != nil {
				slog.Warn("blob store close failed", "error", err)
			}
		}).
		OnPanic(func(pe *thread.PanicError) {
			s.metrics.WorkerPanics.WithLabelValues(workerName).Inc()
			st.db.Close()
			slog.LogAttrs(context.Background(), slog.LevelError, "storage worker crashed",
				slog.String("error", pe.Error()),
			)
		})

	if err := s.cell.Initialize(j); err != nil {
		inv.Close()
		inv.Thread().Join()
		st.db.Close()
		return fmt.Errorf("start storage: %w", err)
	}
	slog.Info("blob store started", "dsn", s.cfg.DSN, "encryption", s.cfg.Encryption)
	return nil
}

// Close tears the worker down, finishing queued requests first. It
// fails when the service was never started.
func (s *Service) Close() error {
	j, ok := s.cell.Uninitialize()
	if !ok {
		return thread.ErrUninitialized
	}
	j.Close()
	slog.Info("blob store stopped")
	return nil
}

// Ping verifies database connectivity through the worker's read pool.
func (s *Service) Ping(ctx context.Context) error {
	g, err := s.cell.TryGet()
	if err != nil {
		return err
	}
	defer g.Release()
	return (*g.Value()).Get().State().db.Ping(ctx)
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
func (s *Service) call(ctx context.Context, req Request) (Response, error) {
	g, err := s.cell.TryGet()
	if err != nil {
		return Response{}, err
	}
	defer g.Release()
	inv := (*g.Value()).Get()

	op := req.Op.String()
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

// Exists reports whether a named blob is stored.
func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	resp, err := s.call(ctx, Request{Op: OpExists, Name: name})
	return resp.Exists, err
}

// Size returns a blob's plaintext size without reading its value.
func (s *Service) Size(ctx context.Context, name string) (int64, error) {
	resp, err := s.call(ctx, Request{Op: OpSize, Name: name})
	return resp.Size, err
}

// Read returns a blob's plaintext value.
func (s *Service) Read(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.call(ctx, Request{Op: OpRead, Name: name})
	if err != nil {
		return nil, err
	}
	s.metrics.BlobBytes.WithLabelValues("read").Add(float64(len(resp.Data)))
	return resp.Data, nil
}

// Write stores a value under a name, replacing any previous value.
func (s *Service) Write(ctx context.Context, name string, data []byte) error {
	if _, err := s.call(ctx, Request{Op: OpWrite, Name: name, Data: data}); err != nil {
		return err
	}
	s.metrics.BlobBytes.WithLabelValues("write").Add(float64(len(data)))
	return nil
}

// Rename moves a value from one name to another.
func (s *Service) Rename(ctx context.Context, oldName, newName string) error {
	_, err := s.call(ctx, Request{Op: OpRename, Name: oldName, NewName: newName})
	return err
}

// Delete removes a named blob.
func (s *Service) Delete(ctx context.Context, name string) error {
	_, err := s.call(ctx, Request{Op: OpDelete, Name: name})
	return err
}
