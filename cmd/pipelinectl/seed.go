package main

import (
	"fmt"
	"os"

	"backoffice_backend/internal/stagetypes"

	"github.com/spf13/cobra"
)

var catalogFile string

var seedCmd = &cobra.Command{
	Use:   "seed-stage-types",
	Short: "Upsert the stage type catalog",
	Long: `Upsert stage types into the stage_types table.

Without --file the built-in catalog is used:
  pipeline: lead (1), opportunity (2), quote (3), contract (4)`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&catalogFile, "file", "f", "", "catalog YAML to seed instead of the built-in one")
}

func runSeed(cmd *cobra.Command, args []string) error {
	var (
		entries []stagetypes.Entry
		err     error
	)
	if catalogFile == "" {
		entries, err = stagetypes.Default()
	} else {
		data, readErr := os.ReadFile(catalogFile)
		if readErr != nil {
			return fmt.Errorf("read catalog: %w", readErr)
		}
		entries, err = stagetypes.Parse(data)
	}
	if err != nil {
		return err
	}

	written, err := stagetypes.NewSeeder(pool).Seed(cmd.Context(), entries)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d stage types (%d rows written)\n", len(entries), written)
	return nil
}
