// Package cache mirrors booking selections to a small key/value store so a
// draft can be inspected or cleared outside the chat session.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gosimple/slug"
	"github.com/mark3labs/rirakoi/internal/config"
)

// ErrNotFound is returned by Get for a key that was never written or has
// been deleted.
var ErrNotFound = errors.New("cache: key not found")

// Store is a per-customer key/value store. Values are opaque JSON.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string // one of the config.Cache* constants
	DataDir    string
	RedisAddr  string
	CustomerID string
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Backend:    cfg.CacheBackend,
		DataDir:    cfg.DataDir,
		RedisAddr:  cfg.RedisAddr,
		CustomerID: cfg.CustomerID,
	}
}

// Open returns the configured backend, scoped to one customer.
func Open(ctx context.Context, opts Options) (Store, error) {
	ns := Namespace(opts.CustomerID)

	switch opts.Backend {
	case config.CacheMemory:
		return NewMemory(), nil
	case config.CacheFile:
		return NewFile(filepath.Join(opts.DataDir, "drafts", ns))
	case config.CacheRedis:
		return NewRedis(ctx, opts.RedisAddr, ns)
	case config.CacheNATS, "":
		return OpenNATS(ctx, filepath.Join(opts.DataDir, "nats"), ns)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// Namespace turns a customer id into a name safe for directories, Redis key
// prefixes and JetStream bucket names.
func Namespace(customerID string) string {
	s := slug.Make(customerID)
	if s == "" {
		s = "anonymous"
	}
	return "draft-" + s
}
