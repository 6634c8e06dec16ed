// Package blobstore hosts the storage worker: a stateful invoker that
// owns an SQLite-backed, optionally encrypted blob store keyed by name.
package blobstore

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eugener/golem/internal/telemetry"
)

// Op selects a storage operation.
type Op uint8

const (
	// OpExists reports whether a named blob is stored.
	OpExists Op = iota + 1
	// OpSize returns a blob's plaintext size.
	OpSize
	// OpRead returns a blob's plaintext value.
	OpRead
	// OpWrite stores a value under a name, replacing any previous value.
	OpWrite
	// OpRename moves a value to a new name.
	OpRename
	// OpDelete removes a named blob.
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpExists:
		return "exists"
	case OpSize:
		return "size"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpRename:
		return "rename"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Request is a message for the storage worker.
type Request struct {
	Op      Op
	Name    string
	NewName string // OpRename
	Data    []byte // OpWrite
}

// Response is the storage worker's reply.
type Response struct {
	Exists bool   // OpExists
	Size   int64  // OpSize
	Data   []byte // OpRead
	Err    error
}

// state is the worker's state: the database, the optional cipher, and
// the tracer for per-operation spans.
type state struct {
	db     *db
	crypto *Crypto
	tracer trace.Tracer
}

// handle processes one request. It runs on the worker goroutine; the
// database pools are safe for it regardless.
func handle(ctx context.Context, st *state, req Request) Response {
	ctx, span := st.tracer.Start(ctx, "blobstore."+req.Op.String(),
		trace.WithAttributes(attribute.String("blob.name", req.Name)))
	defer span.End()

	resp := st.dispatch(ctx, req)
	if resp.Err != nil {
		span.RecordError(resp.Err)
		span.SetStatus(codes.Error, resp.Err.Error())
	}
	return resp
}

func (st *state) dispatch(ctx context.Context, req Request) Response {
	switch req.Op {
	case OpExists:
		ok, err := st.db.exists(ctx, req.Name)
		return Response{Exists: ok, Err: err}

	case OpSize:
		n, err := st.db.size(ctx, req.Name)
		return Response{Size: n, Err: err}

	case OpRead:
		sealed, err := st.db.get(ctx, req.Name)
		if err != nil {
			return Response{Err: err}
		}
		data, err := st.crypto.Open(sealed)
		return Response{Data: data, Err: err}

	case OpWrite:
		sealed, err := st.crypto.Seal(req.Data)
		if err != nil {
			return Response{Err: err}
		}
		return Response{Err: st.db.put(ctx, req.Name, sealed, int64(len(req.Data)))}

	case OpRename:
		return Response{Err: st.db.rename(ctx, req.Name, req.NewName)}

	case OpDelete:
		return Response{Err: st.db.delete(ctx, req.Name)}

	default:
		return Response{Err: fmt.Errorf("blobstore: unknown op %d", req.Op)}
	}
}

func newState(dsn, keyFile string, encrypt bool) (*state, error) {
	d, err := openDB(dsn)
	if err != nil {
		return nil, err
	}

	var crypto *Crypto
	if encrypt {
		crypto, err = NewCrypto(keyFile)
		if err != nil {
			d.Close()
			return nil, err
		}
	}

	return &state{
		db:     d,
		crypto: crypto,
		tracer: telemetry.Tracer("blobstore"),
	}, nil
}
