// Package bridge assembles the pipeline: credential loading, catalog
// compilation, and the collaborators the protocol adapter executes through.
package bridge

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/harun/openbridge/internal/config"
	"github.com/harun/openbridge/internal/envfile"
	"github.com/harun/openbridge/pkg/auth"
	"github.com/harun/openbridge/pkg/batch"
	"github.com/harun/openbridge/pkg/openapi"
	"github.com/harun/openbridge/pkg/registry"
	"github.com/harun/openbridge/pkg/request"
)

// Version is the bridge version reported over MCP and in the User-Agent.
const Version = "0.1.0"

// Bridge owns the compiled catalog and its collaborators.
type Bridge struct {
	Config     *config.Config
	Registry   *registry.Registry
	Resolver   *auth.Resolver
	EnvFile    *envfile.Manager
	Executor   *request.Executor
	Dispatcher *batch.Dispatcher
}

// New loads credentials, compiles every description under the configured
// spec path into the registry, and appends credential placeholders for the
// loaded APIs.
func New(cfg *config.Config) (*Bridge, error) {
	reg := registry.New()
	resolver := auth.NewResolver(os.Environ())
	manager := envfile.NewManager(cfg.EnvFile, resolver, reg)
	if err := manager.Load(); err != nil {
		return nil, err
	}

	executor := request.NewExecutor(resolver, "openbridge/"+Version)
	b := &Bridge{
		Config:     cfg,
		Registry:   reg,
		Resolver:   resolver,
		EnvFile:    manager,
		Executor:   executor,
		Dispatcher: batch.NewDispatcher(reg, executor, cfg.ToolPrefix),
	}

	if err := b.compileAll(); err != nil {
		return nil, err
	}

	if err := manager.EnsurePlaceholders(reg.APIs()); err != nil {
		log.Warn().Err(err).Msg("Failed to append credential placeholders")
	}
	return b, nil
}

// compileAll loads every description file and registers its tools. A file
// that fails to load yields zero tools and does not affect the others.
func (b *Bridge) compileAll() error {
	paths, err := b.specFiles()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no description files found at %s", b.Config.SpecPath)
	}

	for _, path := range paths {
		doc, err := openapi.LoadDocument(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Description rejected, skipping file")
			continue
		}

		tools := openapi.Compile(doc, openapi.CompileOptions{
			ServerOverride: b.serverOverride(doc.API),
		})
		for _, tool := range tools {
			b.Registry.Register(registry.NewEntry(doc, tool))
		}
	}

	log.Info().
		Int("files", len(paths)).
		Int("tools", b.Registry.Len()).
		Msg("Catalog compiled")
	return nil
}

// serverOverride resolves a base-URL override for one API: explicit config
// entry first, then the {NAME}_SERVER_URL convention.
func (b *Bridge) serverOverride(api string) string {
	if override := b.Config.Servers[api]; override != "" {
		return override
	}
	return b.EnvFile.ServerOverride(api)
}

func (b *Bridge) specFiles() ([]string, error) {
	info, err := os.Stat(b.Config.SpecPath)
	if err != nil {
		return nil, fmt.Errorf("spec path unavailable: %w", err)
	}
	if !info.IsDir() {
		return []string{b.Config.SpecPath}, nil
	}
	return openapi.ScanDir(b.Config.SpecPath)
}

// Watch starts the credential hot-reload watcher.
func (b *Bridge) Watch() (*envfile.Watcher, error) {
	watcher, err := envfile.NewWatcher(b.EnvFile, 0)
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(); err != nil {
		return nil, err
	}
	return watcher, nil
}
