package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/dnscache"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/eugener/golem/internal/config"
)

// Endpoint is a log destination. Endpoints are owned by the sink worker
// and never called concurrently.
type Endpoint interface {
	// Name identifies the endpoint in metrics.
	Name() string
	// Open prepares the endpoint for writing. Called at setup and again
	// on an explicit setup request.
	Open() error
	// Emit writes a batch of entries.
	Emit(ctx context.Context, entries []Entry) error
	// Close releases the endpoint's resources after a final flush.
	Close() error
}

// buildEndpoints constructs endpoints from configuration.
func buildEndpoints(entries []config.LogEndpoint, resolver *dnscache.Resolver) ([]Endpoint, error) {
	eps := make([]Endpoint, 0, len(entries))
	for _, e := range entries {
		switch e.Type {
		case "terminal":
			eps = append(eps, NewTerminal(os.Stderr))
		case "file":
			eps = append(eps, NewFile(e.Path))
		case "http":
			eps = append(eps, NewHTTP(e, resolver))
		default:
			return nil, fmt.Errorf("logsink: unknown endpoint type %q", e.Type)
		}
	}
	return eps, nil
}

// Terminal writes formatted entries to a stream, one line each.
type Terminal struct {
	w io.Writer
}

// NewTerminal creates a terminal endpoint writing to w.
func NewTerminal(w io.Writer) *Terminal { return &Terminal{w: w} }

// Name implements Endpoint.
func (t *Terminal) Name() string { return "terminal" }

// Open implements Endpoint.
func (t *Terminal) Open() error { return nil }

// Emit implements Endpoint.
func (t *Terminal) Emit(_ context.Context, entries []Entry) error {
	var b bytes.Buffer
	for _, e := range entries {
		b.WriteString(e.Format())
		b.WriteByte('\n')
	}
	_, err := t.w.Write(b.Bytes())
	return err
}

// Close implements Endpoint.
func (t *Terminal) Close() error { return nil }

// File appends formatted entries to a log file.
type File struct {
	path string
	f    *os.File
}

// NewFile creates a file endpoint for path. The file is opened by Open.
func NewFile(path string) *File { return &File{path: path} }

// Name implements Endpoint.
func (f *File) Name() string { return "file" }

// Open opens or creates the log file in append mode. Reopening first
// closes the previous file, so a setup request doubles as log rotation
// support.
func (f *File) Open() error {
	if f.f != nil {
		if err := f.f.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	f.f = file
	return nil
}

// Emit implements Endpoint.
func (f *File) Emit(_ context.Context, entries []Entry) error {
	if f.f == nil {
		if err := f.Open(); err != nil {
			return err
		}
	}
	var b bytes.Buffer
	for _, e := range entries {
		b.WriteString(e.Format())
		b.WriteByte('\n')
	}
	_, err := f.f.Write(b.Bytes())
	return err
}

// Close implements Endpoint.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

// HTTP posts entry batches as JSON to a collector URL, optionally
// authenticated with OAuth2 client credentials.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates an HTTP endpoint from configuration. A non-nil
// resolver adds cached DNS lookups to the transport.
func NewHTTP(cfg config.LogEndpoint, resolver *dnscache.Resolver) *HTTP {
	base := &http.Client{Transport: newTransport(resolver)}

	client := base
	if cfg.Auth != nil {
		cc := clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
		}
		// Token fetches reuse the tuned transport.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(ctx)
	}

	return &HTTP{url: cfg.URL, client: client}
}

// Name implements Endpoint.
func (h *HTTP) Name() string { return "http" }

// Open implements Endpoint.
func (h *HTTP) Open() error { return nil }

// Emit implements Endpoint.
func (h *HTTP) Emit(ctx context.Context, entries []Entry) error {
	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post entries: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post entries: status %s", resp.Status)
	}
	return nil
}

// Close implements Endpoint.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
