// Package nats runs the in-process NATS server that backs the durable
// selection cache.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/rirakoi/internal/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	readyTimeout    = 4 * time.Second
	drainTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

var log = logger.With("nats")

// Embedded is an in-process JetStream server plus its single connection.
type Embedded struct {
	server *server.Server
	conn   *nats.Conn
	js     jetstream.JetStream
}

// Start boots a JetStream server storing its data under dataDir. The server
// never opens a network port.
func Start(dataDir string) (*Embedded, error) {
	log.Debug("starting embedded server, store dir %s", dataDir)

	ns, err := server.NewServer(&server.Options{
		JetStream:  true,
		StoreDir:   dataDir,
		DontListen: true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}

	nc, err := nats.Connect("", nats.InProcessServer(ns))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connecting in-process: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	log.Debug("embedded server ready")
	return &Embedded{server: ns, conn: nc, js: js}, nil
}

// Bucket creates or opens a single-revision key/value bucket.
func (e *Embedded) Bucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	kv, err := e.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "rirakoi booking selections",
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", name, err)
	}
	return kv, nil
}

// Close drains the connection and stops the server. Neither step may hang
// the CLI on exit.
func (e *Embedded) Close() error {
	if e == nil {
		return nil
	}

	if e.conn != nil {
		done := make(chan error, 1)
		go func() { done <- e.conn.Drain() }()

		select {
		case err := <-done:
			if err != nil {
				log.Warn("drain failed, forcing close: %v", err)
				e.conn.Close()
			}
		case <-time.After(drainTimeout):
			log.Warn("drain timed out after %s, forcing close", drainTimeout)
			e.conn.Close()
		}
	}

	if e.server == nil {
		return nil
	}
	e.server.Shutdown()

	stopped := make(chan struct{})
	go func() {
		e.server.WaitForShutdown()
		close(stopped)
	}()
	select {
	case <-stopped:
		log.Debug("embedded server stopped")
		return nil
	case <-time.After(shutdownTimeout):
		log.Error("server shutdown timed out after %s", shutdownTimeout)
		return errors.New("nats server shutdown timed out")
	}
}
