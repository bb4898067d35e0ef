// Package store persists recording content by id.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"castplayd/internal/config"
	"castplayd/internal/logger"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("recording not found")
	ErrReadOnly  = errors.New("store is read-only")
	ErrInvalidID = errors.New("invalid recording id")
)

// Store holds raw recording content keyed by recording id.
type Store interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidID reports whether id can name a recording in every backend.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NewID returns a fresh random recording id.
func NewID() string {
	return uuid.NewString()
}

func checkID(id string) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (Store, error) {
	log = logger.OrNop(log)
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile:
		return NewFileStore(cfg.File.Dir, log)
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLite.Path)
	case config.BackendS3:
		return NewS3Store(ctx, cfg.S3)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	case config.BackendHTTP:
		return NewHTTPStore(cfg.HTTP, log), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
