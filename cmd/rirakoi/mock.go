package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/rirakoi/internal/logger"
	"github.com/mark3labs/rirakoi/internal/mockapi"
	"github.com/spf13/cobra"
)

var mockFlags struct {
	addr    string
	latency time.Duration
}

var mockCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Serve a local stand-in for the booking backend",
	Long: `Serve an in-memory implementation of the chat, payment, terms and
booking endpoints for local development.

Point the client at it with:

  rirakoi chat --api-url http://127.0.0.1:8000

Request counts and latencies are exposed on /metrics.`,
	RunE: runMock,
}

func init() {
	mockCmd.Flags().StringVar(&mockFlags.addr, "addr", "127.0.0.1:8000", "Listen address")
	mockCmd.Flags().DurationVar(&mockFlags.latency, "latency", 0, "Artificial delay added to every response")
}

func runMock(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := mockapi.NewServer(mockapi.WithLatency(mockFlags.latency))
	srv := &http.Server{
		Addr:              mockFlags.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Mock backend listening on %s", mockFlags.addr)
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "Mock backend listening on http://%s\n", mockFlags.addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mock server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mock server shutdown: %w", err)
	}
	return nil
}
