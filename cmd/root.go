package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cinedata/filmset-cli/internal/checkpoint"
	"github.com/cinedata/filmset-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "filmset",
	Short: "Indian film dataset collection pipeline",
	Long:  "Walks Wikipedia category trees, resolves films to Wikidata entities, and assembles cleaned per-category CSV datasets with quality reports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens the checkpoint database and applies migrations.
func initStore(cmd *cobra.Command) (checkpoint.Store, error) {
	if dir := filepath.Dir(cfg.Paths.CheckpointDB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "create checkpoint dir")
		}
	}
	st, err := checkpoint.NewSQLite(cfg.Paths.CheckpointDB)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
