// Command triage is an AI-assisted issue triage tool.
//
// Every state change is captured as an immutable event in a JSONL log;
// on startup the current state is rebuilt by replaying that log, so the
// log file is the only thing that needs to survive between runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/triagehq/triage/internal/analysis"
	"github.com/triagehq/triage/internal/config"
	"github.com/triagehq/triage/internal/engine"
	"github.com/triagehq/triage/internal/eventlog"
	"github.com/triagehq/triage/internal/pipeline"
	"github.com/triagehq/triage/internal/storage/memory"
	"github.com/triagehq/triage/internal/telemetry"
)

var (
	// Version is the current version of triage (overridden by ldflags at build time)
	Version = "0.4.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var (
	cfgPath    string
	logPath    string
	jsonOutput bool
	actorFlag  string

	cfg   *config.Config
	store *memory.Store
	evlog *eventlog.File
	pl    *pipeline.Pipeline

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "triage - AI-assisted issue triage",
	Long: `An event-sourced issue triage tool. Issues are created, analyzed and
planned through commands; every result is recorded as an immutable event,
and the full state is rebuilt from the event log on each run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if actorFlag != "" {
			cfg.Actor = actorFlag
		}

		if err := telemetry.Init(rootCtx, "triage", Version); err != nil {
			// Telemetry must never block the CLI.
			log.Printf("triage: telemetry init: %v", err)
		}

		if isNoStateCommand(cmd) {
			return nil
		}
		return openState(rootCtx)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if evlog != nil {
			if err := evlog.Close(); err != nil {
				log.Printf("triage: close event log: %v", err)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
		if rootCancel != nil {
			rootCancel()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// isNoStateCommand reports whether a command runs without the event log
// and store (version, config scaffolding, shell completion).
func isNoStateCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "config", "completion", "help":
			return true
		}
	}
	return false
}

// openState loads the event log and rebuilds the live store from it.
func openState(ctx context.Context) error {
	var err error
	evlog, err = eventlog.OpenFile(logPath)
	if err != nil {
		return err
	}

	store = memory.New()
	if _, err := engine.Replay(ctx, evlog, store); err != nil {
		return fmt.Errorf("triage: rebuild state from %s: %w", logPath, err)
	}

	client := newAnalysisClient()
	pl, err = pipeline.New(store, evlog, client, cfg.RetryPolicy())
	return err
}

// newAnalysisClient builds the Anthropic client when an API key is
// available. Without one the pipeline runs in no-AI mode: analyze and plan
// commands fail with a pointer to ANTHROPIC_API_KEY, everything else works.
func newAnalysisClient() analysis.Client {
	client, err := analysis.NewAnthropicClient(analysis.AnthropicOptions{
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
	})
	if err != nil {
		return nil
	}
	return client
}

// requireIssueArg is a cobra Args validator for commands taking one issue ID.
func requireIssueArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("expected exactly one issue ID")
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "events.jsonl", "path to the event log")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "author recorded on commands (overrides config)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
