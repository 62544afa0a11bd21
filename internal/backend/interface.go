// Package backend selects where the journal worker mirrors ledger events.
package backend

import (
	"context"

	"caja/internal/sheets"
)

// Journal is the full journal surface a backend provides.
type Journal interface {
	sheets.JournalWriter
	sheets.JournalReader
}

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result contains the journal instance and optional cleanup function.
type Result struct {
	Journal Journal
	Cleanup CleanupFunc
}

// Close runs the cleanup function if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates journal backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleJournalSheet  string
}

// BackendType represents the type of backend
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
