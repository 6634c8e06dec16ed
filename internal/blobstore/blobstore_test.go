package blobstore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eugener/golem/internal/config"
	"github.com/eugener/golem/internal/telemetry"
	"github.com/eugener/golem/thread"
)

func newService(t *testing.T, encrypt bool) *Service {
	t.Helper()
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	s := New(config.BlobStoreConfig{
		Capacity:   4,
		DSN:        filepath.Join(t.TempDir(), "blobs.db"),
		Encryption: encrypt,
		KeyFile:    filepath.Join(t.TempDir(), "keys.pem"),
	}, m)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if s.cell.IsInitialized() {
			s.Close()
		}
	})
	return s
}

func testRoundTrip(t *testing.T, s *Service) {
	t.Helper()
	ctx := context.Background()
	value := []byte("the rain in spain stays mainly in the plain")

	ok, err := s.Exists(ctx, "speech")
	if err != nil || ok {
		t.Fatalf("Exists before write = %v, %v", ok, err)
	}

	if err := s.Write(ctx, "speech", value); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ok, err = s.Exists(ctx, "speech")
	if err != nil || !ok {
		t.Fatalf("Exists after write = %v, %v", ok, err)
	}

	n, err := s.Size(ctx, "speech")
	if err != nil || n != int64(len(value)) {
		t.Fatalf("Size = %d, %v, want %d", n, err, len(value))
	}

	got, err := s.Read(ctx, "speech")
	if err != nil || !bytes.Equal(got, value) {
		t.Fatalf("Read = %q, %v", got, err)
	}

	if err := s.Rename(ctx, "speech", "quote"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := s.Read(ctx, "speech"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read old name = %v, want ErrNotFound", err)
	}
	got, err = s.Read(ctx, "quote")
	if err != nil || !bytes.Equal(got, value) {
		t.Fatalf("Read after rename = %q, %v", got, err)
	}

	if err := s.Delete(ctx, "quote"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "quote"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestRoundTripPlaintext(t *testing.T) {
	t.Parallel()
	testRoundTrip(t, newService(t, false))
}

func TestRoundTripEncrypted(t *testing.T) {
	t.Parallel()
	testRoundTrip(t, newService(t, true))
}

func TestWriteReplaces(t *testing.T) {
	t.Parallel()

	s := newService(t, false)
	ctx := context.Background()

	if err := s.Write(ctx, "key", []byte("one")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(ctx, "key", []byte("two")); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := s.Read(ctx, "key")
	if err != nil || string(got) != "two" {
		t.Fatalf("Read = %q, %v, want two", got, err)
	}
}

func TestEncryptedAtRest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	s := New(config.BlobStoreConfig{
		Capacity:   4,
		DSN:        filepath.Join(dir, "blobs.db"),
		Encryption: true,
		KeyFile:    filepath.Join(dir, "keys.pem"),
	}, m)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	secret := []byte("super secret plaintext value 0123456789")
	if err := s.Write(ctx, "s", secret); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// The stored row must not contain the plaintext.
	g, err := s.cell.TryGet()
	if err != nil {
		t.Fatal(err)
	}
	st := (*g.Value()).Get().State()
	sealed, err := st.db.get(ctx, "s")
	g.Release()
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if bytes.Contains(sealed, secret) {
		t.Error("stored value contains plaintext")
	}

	got, err := s.Read(ctx, "s")
	if err != nil || !bytes.Equal(got, secret) {
		t.Fatalf("Read = %q, %v", got, err)
	}
}

func TestKeyFilePersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "keys.pem")
	dsn := filepath.Join(dir, "blobs.db")
	m := telemetry.NewMetrics(prometheus.NewRegistry())

	// First run creates the key material and writes a value.
	s := New(config.BlobStoreConfig{Capacity: 4, DSN: dsn, Encryption: true, KeyFile: keyFile}, m)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx := context.Background()
	if err := s.Write(ctx, "durable", []byte("survives restarts")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Second run reloads the same key file and must decrypt the value.
	s2 := New(config.BlobStoreConfig{Capacity: 4, DSN: dsn, Encryption: true, KeyFile: keyFile}, m)
	if err := s2.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer s2.Close()

	got, err := s2.Read(ctx, "durable")
	if err != nil || string(got) != "survives restarts" {
		t.Fatalf("Read after restart = %q, %v", got, err)
	}
}

func TestServiceLifecycle(t *testing.T) {
	t.Parallel()

	s := newService(t, false)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("second Start succeeded")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); !errors.Is(err, thread.ErrUninitialized) {
		t.Errorf("second Close = %v, want ErrUninitialized", err)
	}
	if _, err := s.Exists(ctx, "x"); !errors.Is(err, thread.ErrUninitialized) {
		t.Errorf("Exists after Close = %v, want ErrUninitialized", err)
	}
}

func TestRenameMissing(t *testing.T) {
	t.Parallel()

	s := newService(t, false)
	if err := s.Rename(context.Background(), "ghost", "real"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename = %v, want ErrNotFound", err)
	}
}
