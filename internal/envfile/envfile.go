// Package envfile owns the line-oriented KEY=value credential file and the
// hot-reload contract on top of it: when the file changes, auth records are
// recomputed and compiled base URLs are refreshed in place, without
// recompiling the catalog.
package envfile

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/harun/openbridge/pkg/auth"
	"github.com/harun/openbridge/pkg/registry"
)

// placeholderMarker precedes keys this process appends so operators can tell
// generated placeholders from their own entries.
const placeholderMarker = "# --- added by openbridge, fill in as needed ---"

// Manager ties the credential file to the auth resolver and tool registry.
type Manager struct {
	path     string
	resolver *auth.Resolver
	reg      *registry.Registry

	mu      sync.RWMutex
	fileEnv map[string]string
}

// NewManager creates a manager for the credential file at path. The path may
// point at a file that does not exist yet.
func NewManager(path string, resolver *auth.Resolver, reg *registry.Registry) *Manager {
	return &Manager{
		path:     path,
		resolver: resolver,
		reg:      reg,
		fileEnv:  map[string]string{},
	}
}

// Load reads the credential file and refreshes the auth records. A missing
// file is not an error; the process environment still applies.
func (m *Manager) Load() error {
	fileEnv := map[string]string{}
	if m.path != "" {
		parsed, err := godotenv.Read(m.path)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to read credential file: %w", err)
			}
		} else {
			fileEnv = parsed
		}
	}

	m.mu.Lock()
	m.fileEnv = fileEnv
	m.mu.Unlock()

	m.resolver.Refresh(m.Environ())
	log.Info().Str("file", m.path).Int("keys", len(fileEnv)).Msg("Credential file loaded")
	return nil
}

// Environ returns the process environment merged with the credential file,
// file entries winning on key collisions.
func (m *Manager) Environ() []string {
	m.mu.RLock()
	fileEnv := m.fileEnv
	m.mu.RUnlock()

	merged := map[string]string{}
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			merged[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range fileEnv {
		merged[k] = v
	}

	environ := make([]string, 0, len(merged))
	for k, v := range merged {
		environ = append(environ, k+"="+v)
	}
	sort.Strings(environ)
	return environ
}

// ServerOverride returns the {NAME}_SERVER_URL value for an API, if set.
func (m *Manager) ServerOverride(api string) string {
	return auth.ServerOverrides(m.Environ())[api]
}

// Refresh recomputes auth records and pushes per-API base-URL overrides onto
// every already-compiled tool. This is the hot-reload step: it runs to
// completion before any reader can observe it mid-way, and it never
// recompiles the catalog.
func (m *Manager) Refresh() error {
	if err := m.Load(); err != nil {
		return err
	}

	overrides := auth.ServerOverrides(m.Environ())
	for _, api := range m.reg.APIs() {
		if base, ok := overrides[api]; ok && base != "" {
			m.reg.SetBaseURL(api, base)
		}
	}
	return nil
}

// EnsurePlaceholders appends an empty {NAME}_SERVER_URL and {NAME}_BEARER_TOKEN
// entry for each loaded API that lacks one, under a marker comment, so
// operators can see exactly which keys the bridge will pick up.
func (m *Manager) EnsurePlaceholders(apis []string) error {
	if m.path == "" {
		return nil
	}

	existing := map[string]bool{}
	data, err := os.ReadFile(m.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read credential file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.IndexByte(line, '='); idx > 0 {
			existing[strings.TrimSpace(line[:idx])] = true
		}
	}

	var missing []string
	for _, api := range apis {
		prefix := strings.ToUpper(api)
		for _, suffix := range []string{"_SERVER_URL", "_BEARER_TOKEN"} {
			key := prefix + suffix
			if !existing[key] {
				missing = append(missing, key)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	var b strings.Builder
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		b.WriteString("\n")
	}
	if !strings.Contains(string(data), placeholderMarker) {
		b.WriteString(placeholderMarker + "\n")
	}
	for _, key := range missing {
		b.WriteString(key + "=\n")
	}

	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open credential file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to append placeholders: %w", err)
	}

	log.Info().
		Str("file", m.path).
		Strs("keys", missing).
		Msg("Appended credential placeholders")
	return nil
}
