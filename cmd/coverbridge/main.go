// Package main provides the CLI entry point for CoverBridge, the
// AI assistant gateway for insurance agencies.
//
// CoverBridge pairs a browser extension with an agent runtime: the
// extension connects over a local WebSocket, chat turns run through
// an LLM with agency tools (carrier registry, CRM, agency management,
// knowledge base, documents), and browser actions round-trip through
// a correlation-token rendezvous.
//
// # Basic Usage
//
// Start the server:
//
//	coverbridge serve --config coverbridge.yaml
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key (referenced from the
//     config file via ${ANTHROPIC_API_KEY})
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coverbridge",
		Short: "CoverBridge - AI assistant gateway for insurance agencies",
		Long: `CoverBridge connects a browser extension to an LLM agent with
insurance-agency tools: FMCSA carrier lookups, Close CRM, NowCerts
policy data, a markdown knowledge base, PDF extraction, and
user-approved browser automation.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}
