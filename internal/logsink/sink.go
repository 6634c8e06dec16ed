package logsink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eugener/golem/internal/telemetry"
)

// batchSize is the buffered-entry count that forces a flush between
// ticks.
const batchSize = 100

// Op selects a sink operation.
type Op uint8

const (
	// OpSetup (re)opens all endpoints.
	OpSetup Op = iota + 1
	// OpClose flushes and terminates the worker.
	OpClose
	// OpFlush writes all buffered entries out.
	OpFlush
	// OpEntry queues an entry for the next flush.
	OpEntry
	// OpEndpoint adds an endpoint to the fan-out set.
	OpEndpoint
)

// Request is a message for the sink worker. Entries and flushes need no
// reply, so the worker is a plain consumer.
type Request struct {
	Op       Op
	Entry    Entry    // OpEntry
	Endpoint Endpoint // OpEndpoint
}

// run returns the sink worker's loop. Buffered entries are flushed on a
// ticker, when the buffer reaches batchSize, on an explicit flush, and
// at termination. Endpoint failures are logged and folded into the
// worker's output, never fatal: one broken endpoint must not stop the
// others from receiving entries.
func run(flushEvery time.Duration, m *telemetry.Metrics, endpoints []Endpoint) func(<-chan Request) error {
	return func(in <-chan Request) error {
		ticker := time.NewTicker(flushEvery)
		defer ticker.Stop()

		buf := make([]Entry, 0, batchSize)
		var failures []error

		flush := func() {
			if len(buf) == 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			// Endpoints are independent; emit to all of them in
			// parallel and keep going past failures.
			var g errgroup.Group
			errs := make([]error, len(endpoints))
			for i, ep := range endpoints {
				g.Go(func() error {
					errs[i] = ep.Emit(ctx, buf)
					return nil
				})
			}
			g.Wait()

			for i, ep := range endpoints {
				if err := errs[i]; err != nil {
					failures = append(failures, err)
					slog.LogAttrs(ctx, slog.LevelError, "log flush failed",
						slog.String("endpoint", ep.Name()),
						slog.Int("count", len(buf)),
						slog.String("error", err.Error()),
					)
					continue
				}
				m.EntriesFlushed.WithLabelValues(ep.Name()).Add(float64(len(buf)))
			}
			buf = buf[:0]
			m.EntriesBuffered.Set(0)
		}

		shutdown := func() error {
			flush()
			for _, ep := range endpoints {
				if err := ep.Close(); err != nil {
					failures = append(failures, err)
				}
			}
			return errors.Join(failures...)
		}

		setup := func() {
			for _, ep := range endpoints {
				if err := ep.Open(); err != nil {
					failures = append(failures, err)
					slog.Warn("endpoint setup failed", "endpoint", ep.Name(), "error", err)
				}
			}
		}

		setup()

		for {
			select {
			case req, ok := <-in:
				if !ok {
					return shutdown()
				}
				switch req.Op {
				case OpSetup:
					setup()
				case OpClose:
					return shutdown()
				case OpFlush:
					flush()
				case OpEntry:
					buf = append(buf, req.Entry)
					m.EntriesBuffered.Set(float64(len(buf)))
					if len(buf) >= batchSize {
						flush()
					}
				case OpEndpoint:
					if err := req.Endpoint.Open(); err != nil {
						failures = append(failures, err)
						slog.Warn("endpoint setup failed", "endpoint", req.Endpoint.Name(), "error", err)
						continue
					}
					endpoints = append(endpoints, req.Endpoint)
				}

			case <-ticker.C:
				flush()
			}
		}
	}
}
