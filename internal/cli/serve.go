package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/openbridge/internal/bridge"
	"github.com/harun/openbridge/internal/config"
	"github.com/harun/openbridge/internal/logger"
	"github.com/harun/openbridge/internal/mcpserver"
)

var (
	specPath string
	envFile  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Compile the catalog and serve it over MCP stdio",
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

		watcher, err := b.Watch()
		if err != nil {
			return fmt.Errorf("failed to start credential watcher: %w", err)
		}
		defer watcher.Stop()

		srv := mcpserver.New("openbridge", bridge.Version, b.Registry, b.Executor, b.Dispatcher, cfg.ToolPrefix)

		log.Info().Msg("Serving MCP over stdio")
		return srv.ServeStdio()
	},
}

// setup loads config and installs the global logger, honoring CLI overrides.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if specPath != "" {
		cfg.SpecPath = specPath
	}
	if envFile != "" {
		cfg.EnvFile = envFile
	}

	lg, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return cfg, lg, nil
}

func init() {
	serveCmd.Flags().StringVar(&specPath, "spec", "", "description file or directory (overrides config)")
	serveCmd.Flags().StringVar(&envFile, "env-file", "", "credential file (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
