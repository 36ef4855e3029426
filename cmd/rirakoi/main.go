package main

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/mark3labs/rirakoi/internal/logger"
	"github.com/mark3labs/rirakoi/internal/tui/theme"
	"github.com/spf13/cobra"
)

const (
	logoText1 = "█▀█ █ █▀█ ▄▀█ █▄▀ █▀█ █"
	logoText2 = "█▀▄ █ █▀▄ █▀█ █ █ █▄█ █"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	// A .env in the working directory may carry RIRAKOI_* settings.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Reading .env failed: %v", err)
	}

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rirakoi",
	Short: "Conversational booking client for the relaxation salon",
}

// renderLogo creates the logo with gradient colors
func renderLogo() string {
	t := theme.NewCatppuccinMocha()
	line1 := theme.ApplyGradient(logoText1, t.Primary, t.Secondary)
	line2 := theme.ApplyGradient(logoText2, t.Primary, t.Secondary)
	return strings.Join([]string{line1, line2}, "\n")
}

func init() {
	rootCmd.Long = renderLogo() + `

rirakoi books a massage session by chatting with the salon backend.
A guided wizard walks through therapist, service, date, time, address
and payment method, then shows a confirmation with the cancellation
policy before the booking is submitted.

Selections are cached per customer (embedded NATS JetStream, Redis or
plain files) and the wizard runs as a full-screen TUI or, with
--headless, over plain lines of text.`

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(mockCmd)
}
