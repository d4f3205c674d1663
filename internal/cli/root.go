package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/openbridge/internal/bridge"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "openbridge",
	Short: "openbridge - OpenAPI to MCP tool bridge",
	Long: `openbridge compiles OpenAPI 3.x and Swagger 2.0 descriptions into a
catalog of schema-validated tools and serves them over the Model Context
Protocol, executing invocations against the real HTTP endpoints with
credentials resolved from the environment.`,
	Version: bridge.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.openbridge/openbridge.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}
