package main

import (
	"fmt"

	"github.com/mark3labs/rirakoi/internal/booking"
	"github.com/mark3labs/rirakoi/internal/cache"
	"github.com/mark3labs/rirakoi/internal/config"
	"github.com/mark3labs/rirakoi/internal/draft"
	"github.com/spf13/cobra"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect or clear cached booking selections",
}

var draftShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached selections for the configured customer",
	RunE:  runDraftShow,
}

var draftResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the cached selections for the configured customer",
	RunE:  runDraftReset,
}

func init() {
	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftResetCmd)
}

func openDraftCache(cmd *cobra.Command) (cache.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := cache.Open(contextOrBackground(cmd), cache.OptionsFromConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open selection cache: %w", err)
	}
	return store, cfg, nil
}

func runDraftShow(cmd *cobra.Command, args []string) error {
	store, cfg, err := openDraftCache(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	d, err := draft.Load(contextOrBackground(cmd), store)
	if err != nil {
		return fmt.Errorf("failed to read cached selections: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "customer %s (%s cache)\n", cfg.CustomerID, cfg.CacheBackend)
	if d.Empty() {
		fmt.Fprintln(out, "no cached selections")
		return nil
	}
	for _, row := range booking.Summary(d) {
		fmt.Fprintf(out, "  %s: %s\n", row.Label, row.Value)
	}
	if missing := d.Missing(); len(missing) > 0 {
		fmt.Fprintf(out, "missing: %v\n", missing)
	}
	return nil
}

func runDraftReset(cmd *cobra.Command, args []string) error {
	store, cfg, err := openDraftCache(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := draft.Clear(contextOrBackground(cmd), store); err != nil {
		return fmt.Errorf("failed to clear cached selections: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared cached selections for customer %s\n", cfg.CustomerID)
	return nil
}
