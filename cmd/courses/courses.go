// Package courses implements commands for inspecting stored course records.
package courses

import "github.com/spf13/cobra"

// Command returns the courses parent command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "Inspect stored course records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(listCommand())

	return cmd
}
