package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/rirakoi/internal/api"
	"github.com/mark3labs/rirakoi/internal/booking"
	"github.com/mark3labs/rirakoi/internal/cache"
	"github.com/mark3labs/rirakoi/internal/config"
	"github.com/mark3labs/rirakoi/internal/draft"
	"github.com/mark3labs/rirakoi/internal/headless"
	"github.com/mark3labs/rirakoi/internal/logger"
	"github.com/mark3labs/rirakoi/internal/tui"
	"github.com/spf13/cobra"
)

var chatFlags struct {
	apiURL     string
	customerID string
	userID     string
	cache      string
	dataDir    string
	headless   bool
	reset      bool
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a booking conversation",
	Long: `Start a booking conversation with the salon backend.

The chat command opens the booking wizard. Choose "予約" from the menu to
walk through therapist, service, date, time, address and payment method,
or type a question to chat freely. Selections are cached per customer so
the confirmation can be rebuilt after a restart with 'rirakoi draft show'.

Use --headless to drive the wizard over stdin/stdout instead of the TUI.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatFlags.apiURL, "api-url", "", "Backend base URL (default from config)")
	chatCmd.Flags().StringVarP(&chatFlags.customerID, "customer", "c", "", "Customer id to book for")
	chatCmd.Flags().StringVarP(&chatFlags.userID, "user", "u", "", "User id recorded on the booking")
	chatCmd.Flags().StringVar(&chatFlags.cache, "cache", "", "Selection cache backend: nats, file, redis or memory")
	chatCmd.Flags().StringVar(&chatFlags.dataDir, "data-dir", "", "Data directory for cached selections")
	chatCmd.Flags().BoolVar(&chatFlags.headless, "headless", false, "Run without TUI (plain text over stdin/stdout)")
	chatCmd.Flags().BoolVar(&chatFlags.reset, "reset", false, "Clear cached selections before starting")
}

// applyChatFlags lets explicitly set flags win over every config source.
func applyChatFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIBaseURL = chatFlags.apiURL
	}
	if flags.Changed("customer") {
		cfg.CustomerID = chatFlags.customerID
	}
	if flags.Changed("user") {
		cfg.UserID = chatFlags.userID
	}
	if flags.Changed("cache") {
		cfg.CacheBackend = chatFlags.cache
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = chatFlags.dataDir
	}
	if flags.Changed("headless") {
		cfg.Headless = chatFlags.headless
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyChatFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cache.Open(ctx, cache.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open selection cache: %w", err)
	}
	// Ensure cleanup always runs using defer
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}()

	if chatFlags.reset {
		if err := draft.Clear(ctx, store); err != nil {
			return fmt.Errorf("failed to clear cached selections: %w", err)
		}
	}

	m := newMachine(cfg, store)
	logger.Info("Starting chat: api=%s customer=%s cache=%s headless=%v",
		cfg.APIBaseURL, cfg.CustomerID, cfg.CacheBackend, cfg.Headless)

	if cfg.Headless {
		return headless.New(m, os.Stdin, os.Stdout).Run(ctx)
	}
	return tui.Run(ctx, m)
}

func newMachine(cfg *config.Config, store cache.Store) *booking.Machine {
	client := api.NewClient(api.Options{
		BaseURL:    cfg.APIBaseURL,
		CustomerID: cfg.CustomerID,
		Timeout:    cfg.Timeout,
	})
	drafts := draft.New(store, draft.Identity{CustomerID: cfg.CustomerID, UserID: cfg.UserID})
	return booking.NewMachine(client, drafts)
}

// contextOrBackground guards commands invoked without fang's context.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
