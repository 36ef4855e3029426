package cache

import (
	"context"
	"errors"
	"fmt"

	inats "github.com/mark3labs/rirakoi/internal/nats"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS stores values in a JetStream key/value bucket on an embedded server.
type NATS struct {
	server *inats.Embedded
	kv     jetstream.KeyValue
	owned  bool
}

// OpenNATS starts an embedded server under storeDir and opens bucket. Close
// stops the server.
func OpenNATS(ctx context.Context, storeDir, bucket string) (*NATS, error) {
	e, err := inats.Start(storeDir)
	if err != nil {
		return nil, err
	}
	kv, err := e.Bucket(ctx, bucket)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	return &NATS{server: e, kv: kv, owned: true}, nil
}

// NewNATS wraps an existing bucket. Close leaves the server running.
func NewNATS(kv jetstream.KeyValue) *NATS {
	return &NATS{kv: kv}
}

func (n *NATS) Put(ctx context.Context, key string, value []byte) error {
	if _, err := n.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

func (n *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (n *NATS) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

func (n *NATS) Close() error {
	if !n.owned {
		return nil
	}
	return n.server.Close()
}
