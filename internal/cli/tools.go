package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/openbridge/internal/bridge"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Compile the catalog and print the resulting tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lg, err := setup()
		if err != nil {
			return err
		}
		defer lg.Close()

		b, err := bridge.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to build catalog: %w", err)
		}

		for _, entry := range b.Registry.List() {
			tool := entry.Tool()
			fmt.Fprintf(cmd.OutOrStdout(), "%-40s %-7s %s%s\n", tool.Name, tool.Method, tool.BaseURL, tool.Path)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d tools from %d APIs\n", b.Registry.Len(), len(b.Registry.APIs()))
		return nil
	},
}

func init() {
	toolsCmd.Flags().StringVar(&specPath, "spec", "", "description file or directory (overrides config)")
	toolsCmd.Flags().StringVar(&envFile, "env-file", "", "credential file (overrides config)")
	rootCmd.AddCommand(toolsCmd)
}
