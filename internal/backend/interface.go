package backend

import (
	"context"
	"time"

	"rewards/internal/sources"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the source and an optional cleanup function.
type BackendResult struct {
	Source  sources.Source
	Cleanup CleanupFunc
}

// Factory creates sources based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// API specific
	APIURL          string
	APITimeout      time.Duration
	RecordCacheSize int
	RecordCacheTTL  time.Duration

	// SQLite specific
	SQLiteDBPath string

	// Memory specific
	DataDirectory string
}

type BackendType string

const (
	APIBackend    BackendType = "api"
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case APIBackend, MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
