package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cinedata/filmset-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint presence per group and step",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		keys, err := st.List(cmd.Context())
		if err != nil {
			return err
		}

		present := make(map[string]map[model.Step]bool)
		for _, k := range keys {
			if present[k.Group] == nil {
				present[k.Group] = make(map[model.Step]bool)
			}
			present[k.Group][k.Step] = true
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)

		header := table.Row{"Group"}
		for _, s := range model.AllSteps() {
			header = append(header, string(s))
		}
		t.AppendHeader(header)

		for _, group := range cfg.Groups {
			row := table.Row{group}
			for _, s := range model.AllSteps() {
				if present[group][s] {
					row = append(row, "✓")
				} else {
					row = append(row, "-")
				}
			}
			t.AppendRow(row)
		}

		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
