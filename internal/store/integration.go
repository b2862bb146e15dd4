// integration.go -- Integration config loading.
//
// FileSource re-reads the JSON document when its mtime changes.
// IntegrationSource serves from the shared cache when present and falls back
// to the file, repopulating the cache on the way out.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MGallo-Code/styx/internal/rules"
)

// FileSource loads an integration document from disk.
type FileSource struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	raw     []byte
	ci      *rules.CustomerIntegration
}

// NewFileSource returns a source for path. Nothing is read until Load.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load returns the parsed document and its raw bytes.
// The file is re-read only when its mtime differs from the last successful read.
// A changed file that fails to parse keeps serving the previous document;
// the error is returned only when nothing has been loaded yet.
func (f *FileSource) Load() (*rules.CustomerIntegration, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		if f.ci != nil {
			slog.Warn("integration file unavailable, serving previous", "path", f.path, "error", err)
			return f.ci, f.raw, nil
		}
		return nil, nil, fmt.Errorf("stating integration file: %w", err)
	}
	if f.ci != nil && info.ModTime().Equal(f.modTime) {
		return f.ci, f.raw, nil
	}

	raw, err := os.ReadFile(f.path)
	if err == nil {
		var ci *rules.CustomerIntegration
		if ci, err = rules.Parse(raw); err == nil {
			f.ci, f.raw, f.modTime = ci, raw, info.ModTime()
			slog.Info("integration config loaded", "path", f.path, "version", ci.Version,
				"integrations", len(ci.Integrations))
			return ci, raw, nil
		}
	}

	if f.ci != nil {
		slog.Warn("integration file reload failed, serving previous", "path", f.path, "error", err)
		return f.ci, f.raw, nil
	}
	return nil, nil, fmt.Errorf("loading integration file: %w", err)
}

// IntegrationSource resolves the current integration document for one customer.
type IntegrationSource struct {
	customerID string
	file       *FileSource
	cache      IntegrationCache
	ttl        time.Duration

	mu      sync.Mutex
	lastRaw []byte
	last    *rules.CustomerIntegration
}

// NewIntegrationSource wires a file source behind cache. Pass NoopIntegrationCache
// to serve straight from the file.
func NewIntegrationSource(customerID string, file *FileSource, cache IntegrationCache, ttl time.Duration) *IntegrationSource {
	return &IntegrationSource{customerID: customerID, file: file, cache: cache, ttl: ttl}
}

// Integration returns the document to evaluate for the current request.
func (s *IntegrationSource) Integration(ctx context.Context) (*rules.CustomerIntegration, error) {
	raw, err := s.cache.GetIntegration(ctx, s.customerID)
	switch {
	case err == nil:
		ci, perr := s.parseCached(raw)
		if perr == nil {
			return ci, nil
		}
		slog.Warn("cached integration invalid, falling back to file", "customer_id", s.customerID, "error", perr)
	case errors.Is(err, ErrCacheMiss), errors.Is(err, ErrCacheDisabled):
	default:
		slog.Warn("integration cache unavailable, falling back to file", "customer_id", s.customerID, "error", err)
	}

	ci, raw, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetIntegration(ctx, s.customerID, raw, s.ttl); err != nil {
		slog.Warn("failed to cache integration", "customer_id", s.customerID, "error", err)
	}
	return ci, nil
}

// parseCached memoizes the last cached document so a hit does not re-decode.
func (s *IntegrationSource) parseCached(raw []byte) (*rules.CustomerIntegration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && bytes.Equal(raw, s.lastRaw) {
		return s.last, nil
	}
	ci, err := rules.Parse(raw)
	if err != nil {
		return nil, err
	}
	s.last, s.lastRaw = ci, raw
	return ci, nil
}
