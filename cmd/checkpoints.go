package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cinedata/filmset-cli/internal/model"
)

var (
	clearGroup string
	clearStep  string
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Manage pipeline checkpoints",
}

// Deleting a checkpoint is the explicit way to force recomputation: presence
// is the only freshness signal the pipeline tracks.
var checkpointsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete checkpoints, optionally filtered by group and step",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var stepFilter model.Step
		if clearStep != "" {
			steps, err := model.ParseSteps([]string{clearStep})
			if err != nil {
				return err
			}
			stepFilter = steps[0]
		}

		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		keys, err := st.List(ctx)
		if err != nil {
			return err
		}

		deleted := 0
		for _, k := range keys {
			if clearGroup != "" && k.Group != clearGroup {
				continue
			}
			if stepFilter != "" && k.Step != stepFilter {
				continue
			}
			if err := st.Delete(ctx, k.Group, k.Step); err != nil {
				return err
			}
			deleted++
		}

		zap.L().Info("checkpoints cleared", zap.Int("deleted", deleted))
		return nil
	},
}

func init() {
	checkpointsClearCmd.Flags().StringVar(&clearGroup, "group", "", "only this category group")
	checkpointsClearCmd.Flags().StringVar(&clearStep, "step", "", "only this step")
	checkpointsCmd.AddCommand(checkpointsClearCmd)
	rootCmd.AddCommand(checkpointsCmd)
}
