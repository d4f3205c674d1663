package envfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/openbridge/pkg/auth"
	"github.com/harun/openbridge/pkg/openapi"
	"github.com/harun/openbridge/pkg/registry"
)

func newTestManager(t *testing.T, content string) (*Manager, string, *registry.Registry) {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".env")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	reg := registry.New()
	resolver := auth.NewResolver(nil)
	return NewManager(path, resolver, reg), path, reg
}

func registerTool(reg *registry.Registry, api, name, baseURL string) {
	tool := &openapi.Tool{
		Name:    name,
		Method:  "GET",
		Path:    "/",
		BaseURL: baseURL,
		API:     api,
	}
	reg.Register(registry.NewEntry(&openapi.Document{API: api, Root: map[string]interface{}{}}, tool))
}

func TestLoad_RefreshesAuthRecords(t *testing.T) {
	m, _, _ := newTestManager(t, "CARS_API_KEY=secret\n")
	resolver := m.resolver

	require.NoError(t, m.Load())

	rec, ok := resolver.Lookup("cars")
	require.True(t, ok)
	assert.Equal(t, auth.TypeAPIKey, rec.Type)
	assert.Equal(t, "secret", rec.Token)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	m, path, _ := newTestManager(t, "")
	require.NoError(t, m.Load())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEnviron_FileWinsOverProcess(t *testing.T) {
	t.Setenv("OPENBRIDGE_MERGE_CHECK", "from-process")
	m, _, _ := newTestManager(t, "OPENBRIDGE_MERGE_CHECK=from-file\n")
	require.NoError(t, m.Load())

	var got string
	for _, kv := range m.Environ() {
		if strings.HasPrefix(kv, "OPENBRIDGE_MERGE_CHECK=") {
			got = strings.TrimPrefix(kv, "OPENBRIDGE_MERGE_CHECK=")
		}
	}
	assert.Equal(t, "from-file", got)
}

func TestServerOverride(t *testing.T) {
	m, _, _ := newTestManager(t, "CARS_SERVER_URL=http://localhost:9000\n")
	require.NoError(t, m.Load())

	assert.Equal(t, "http://localhost:9000", m.ServerOverride("cars"))
	assert.Equal(t, "", m.ServerOverride("pets"))
}

func TestRefresh_PushesBaseURLs(t *testing.T) {
	m, path, reg := newTestManager(t, "")
	registerTool(reg, "cars", "cars_get", "http://cars.example")
	registerTool(reg, "pets", "pets_get", "http://pets.example")

	carsEntry, _ := reg.Get("cars_get")
	petsEntry, _ := reg.Get("pets_get")

	require.NoError(t, os.WriteFile(path, []byte("CARS_SERVER_URL=http://localhost:9999\nCARS_TOKEN=t1\n"), 0o600))
	require.NoError(t, m.Refresh())

	assert.Equal(t, "http://localhost:9999", carsEntry.Tool().BaseURL)
	assert.Equal(t, "http://pets.example", petsEntry.Tool().BaseURL)

	rec, ok := m.resolver.Lookup("cars")
	require.True(t, ok)
	assert.Equal(t, auth.TypeBearer, rec.Type)
}

func TestEnsurePlaceholders_AppendsMissingKeys(t *testing.T) {
	m, path, _ := newTestManager(t, "CARS_BEARER_TOKEN=already\n")

	require.NoError(t, m.EnsurePlaceholders([]string{"cars", "pets"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, placeholderMarker)
	assert.Contains(t, content, "CARS_SERVER_URL=\n")
	assert.Contains(t, content, "PETS_SERVER_URL=\n")
	assert.Contains(t, content, "PETS_BEARER_TOKEN=\n")

	// Existing entries are kept, not duplicated.
	assert.Equal(t, 1, strings.Count(content, "CARS_BEARER_TOKEN"))
	assert.Contains(t, content, "CARS_BEARER_TOKEN=already")
}

func TestEnsurePlaceholders_IdempotentAndCreatesFile(t *testing.T) {
	m, path, _ := newTestManager(t, "")

	require.NoError(t, m.EnsurePlaceholders([]string{"cars"}))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, m.EnsurePlaceholders([]string{"cars"}))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 1, strings.Count(string(second), placeholderMarker))
}
