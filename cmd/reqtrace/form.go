package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/reqtrace/internal/tui"
	"github.com/spf13/cobra"
)

func newFormCmd(root *rootOptions) *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "form",
		Short: "Fill in and submit a request interactively",
		Long: `Open the interactive request form. Local logs are discarded while the form
is on screen unless --log-output is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root, "discard")
			if err != nil {
				return err
			}
			defer a.Close()

			sub := a.newSubmitter(endpoint)
			model := tui.NewModel(ctx, sub, a.rum, sub.Endpoint())
			_, err = tea.NewProgram(model,
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			).Run()
			return err
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "override the configured client endpoint")
	return cmd
}
