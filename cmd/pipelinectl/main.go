// Command pipelinectl runs maintenance tasks against the pipeline database.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"backoffice_backend/internal/events"
	"backoffice_backend/internal/pipeline/repository"
	"backoffice_backend/internal/pipeline/service"
	"backoffice_backend/internal/regnumber"
	"backoffice_backend/platform/config"
	"backoffice_backend/platform/db"
	"backoffice_backend/platform/logger"
	"backoffice_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	log  *logger.Logger
	pool *pgxpool.Pool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "pipelinectl",
	Short:             "Maintenance commands for the sales pipeline store",
	SilenceUsage:      true,
	PersistentPreRunE: connect,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pool != nil {
			pool.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
}

// connect loads config from the environment and opens the pool.
func connect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log = logger.New(cfg.Env)

	p, err := db.NewPool(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	pool = p
	return nil
}

// readOnlyService builds a service for queries. Writes from the CLI are not
// supported, so no registration numbers or events are wired.
func readOnlyService() *service.Service {
	return service.New(repository.New(pool), regnumber.Noop{}, events.NewInMemoryBus(log), validator.New(), log)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
