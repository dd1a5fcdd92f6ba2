// Package backend wires the data store, renderer, mailer and optional
// infrastructure from configuration. Every binary builds its
// collaborators here.
package backend

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/delivery"
	"fintrack/internal/fetch"
	"fintrack/internal/report"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// DataSource is a table reader that also resolves identities. Every data
// backend provides both.
type DataSource interface {
	store.TableReader
	store.IdentityProvider
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Components are the wired collaborators of one process.
type Components struct {
	Data         DataSource
	Fetcher      *fetch.Fetcher
	Storage      *report.Storage
	Renderer     *report.Renderer
	Mailer       *delivery.Dispatcher
	Reports      *services.ReportService
	Orchestrator *services.Orchestrator
	// Checkpoint is nil unless the scheduler is enabled or when it falls
	// back to memory.
	Checkpoint services.RunCheckpoint

	redis    *redis.Client
	cleanups []CleanupFunc
}

func (c *Components) onClose(fn CleanupFunc) {
	c.cleanups = append(c.cleanups, fn)
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		if err := c.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.cleanups = nil
	return errors.Join(errs...)
}

// BackendType represents the type of data backend
type BackendType string

const (
	SupabaseBackend BackendType = "supabase"
	SQLiteBackend   BackendType = "sqlite"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SupabaseBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
