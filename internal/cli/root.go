// Package cli implements the guardia CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rcliao/guardia-ai/internal/app"
	"github.com/rcliao/guardia-ai/internal/config"
	"github.com/rcliao/guardia-ai/internal/llm"
	"github.com/rcliao/guardia-ai/internal/session"
	"github.com/rcliao/guardia-ai/internal/store"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "guardia",
	Short: "Emergency department intake with LLM-assisted triage",
	Long:  "Collects structured patient data, keeps it in a local store and asks an LLM for syndromic analysis, clinical notes and follow-up answers.",
}

func init() {
	f := RootCmd.PersistentFlags()
	f.StringP("db", "d", "", "Database path (default: $GUARDIA_DB or ~/.guardia-ai/guardia.db)")
	f.String("backend", "", "Storage backend: sqlite, postgres, file or memory")
	f.String("database-url", "", "Postgres connection string for the postgres backend")
	f.String("base-url", "", "OpenAI-compatible API base URL")
	f.String("model", "", "Model name")
	f.String("facility", "", "Facility name printed on exported notes")
	f.Bool("require-name-on-seen", false, "Require a patient name when closing a case")
}

// env is everything a command needs, opened from configuration.
type env struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *store.Store
	app   *app.App
}

func openApp(cmd *cobra.Command) *env {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		exitErr("load config", err)
	}
	logger := cfg.Logger(os.Stderr)

	backend, err := openBackend(cmd.Context(), cfg)
	if err != nil {
		exitErr("open store", err)
	}
	st := store.Open(cmd.Context(), backend,
		store.WithLogger(logger),
		store.WithWriteRetries(cfg.WriteRetries),
	)

	client := llm.NewOpenAIClient(llm.Options{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	sess := session.New(st, client,
		session.WithLogger(logger),
		session.WithRequireNameOnSeen(cfg.RequireNameOnSeen),
	)
	a := app.New(st, sess,
		app.WithFacility(cfg.Facility),
		app.WithLogger(logger),
	)
	return &env{cfg: cfg, log: logger, store: st, app: a}
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn().Err(err).Msg("close store")
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return store.NewPostgresBackend(ctx, cfg.DatabaseURL)
	case config.BackendFile:
		return store.NewFileBackend(cfg.DB), nil
	case config.BackendMemory:
		return store.NewMemoryBackend(nil), nil
	default:
		return store.NewSQLiteBackend(cfg.DB)
	}
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
