package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/openbridge/internal/config"
	"github.com/harun/openbridge/pkg/auth"
)

const carsSpec = `
openapi: 3.0.0
info:
  title: Cars
  version: "1.0"
servers:
  - url: https://cars.example/v1
paths:
  /cars:
    get:
      operationId: listCars
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
      responses:
        "200":
          description: ok
    post:
      operationId: addCar
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                name:
                  type: string
      responses:
        "201":
          description: created
  /cars/{carId}:
    get:
      operationId: getCar
      parameters:
        - name: carId
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: ok
`

func newTestBridge(t *testing.T, mutate func(cfg *config.Config)) *Bridge {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cars.yaml"), []byte(carsSpec), 0o644))

	cfg := config.DefaultConfig()
	cfg.SpecPath = dir
	cfg.EnvFile = filepath.Join(dir, ".env")
	if mutate != nil {
		mutate(cfg)
	}

	b, err := New(cfg)
	require.NoError(t, err)
	return b
}

func TestNew_CompilesCatalog(t *testing.T) {
	b := newTestBridge(t, nil)

	assert.Equal(t, 3, b.Registry.Len())
	assert.Equal(t, []string{"cars"}, b.Registry.APIs())

	entry, ok := b.Registry.Get("cars_getCar")
	require.True(t, ok)
	assert.Equal(t, "https://cars.example/v1", entry.Tool().BaseURL)
}

func TestNew_AppendsPlaceholders(t *testing.T) {
	b := newTestBridge(t, nil)

	data, err := os.ReadFile(b.Config.EnvFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CARS_SERVER_URL=")
	assert.Contains(t, string(data), "CARS_BEARER_TOKEN=")
}

func TestNew_ConfigServerOverrideWins(t *testing.T) {
	b := newTestBridge(t, func(cfg *config.Config) {
		cfg.Servers = map[string]string{"cars": "http://localhost:9000"}
	})

	entry, ok := b.Registry.Get("cars_listCars")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9000", entry.Tool().BaseURL)
}

func TestNew_EnvFileServerOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cars.yaml"), []byte(carsSpec), 0o644))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CARS_SERVER_URL=http://localhost:9001\n"), 0o600))

	cfg := config.DefaultConfig()
	cfg.SpecPath = dir
	cfg.EnvFile = envPath

	b, err := New(cfg)
	require.NoError(t, err)

	entry, ok := b.Registry.Get("cars_listCars")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9001", entry.Tool().BaseURL)
}

func TestNew_RejectedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cars.yaml"), []byte(carsSpec), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("openapi: 3.0.0\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.SpecPath = dir
	cfg.EnvFile = filepath.Join(dir, ".env")

	b, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Registry.Len())
}

func TestNew_NoDescriptionsIsAnError(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SpecPath = dir
	cfg.EnvFile = filepath.Join(dir, ".env")

	_, err := New(cfg)
	assert.Error(t, err)
}

// Leftover arguments on a body-declaring operation must pass validation and
// travel as the request body, with the env-derived bearer token attached.
func TestBridge_EndToEndInvocation(t *testing.T) {
	type seen struct {
		path   string
		auth   string
		body   map[string]interface{}
		method string
	}
	var got seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		got.method = r.Method
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cars.yaml"), []byte(carsSpec), 0o644))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath,
		[]byte("CARS_SERVER_URL="+srv.URL+"\nCARS_BEARER_TOKEN=tok-1\n"), 0o600))

	cfg := config.DefaultConfig()
	cfg.SpecPath = dir
	cfg.EnvFile = envPath

	b, err := New(cfg)
	require.NoError(t, err)

	entry, ok := b.Registry.Get("cars_addCar")
	require.True(t, ok)

	args := map[string]interface{}{"name": "Civic"}
	require.NoError(t, entry.Validate(args))

	call := b.Executor.Execute(context.Background(), entry.Tool(), args)

	assert.Equal(t, http.StatusCreated, call.Response.Status)
	assert.Equal(t, "POST", got.method)
	assert.Equal(t, "/cars", got.path)
	assert.Equal(t, "Bearer tok-1", got.auth)
	assert.Equal(t, map[string]interface{}{"name": "Civic"}, got.body)
}

// Base-URL refresh runs on the watcher goroutine while invocations execute on
// protocol-handler goroutines; every call must go out against a complete
// snapshot, old URL or new.
func TestBridge_ConcurrentRefreshAndExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	b := newTestBridge(t, nil)
	entry, ok := b.Registry.Get("cars_listCars")
	require.True(t, ok)

	urls := []string{srv.URL, srv.URL + "/alt"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Registry.SetBaseURL("cars", urls[i%2])
		}
	}()

	for i := 0; i < 200; i++ {
		call := b.Executor.Execute(context.Background(), entry.Tool(), nil)
		if call.Response.Status != 0 {
			assert.Equal(t, http.StatusOK, call.Response.Status)
		}
		found := false
		for _, u := range append([]string{"https://cars.example/v1"}, urls...) {
			if strings.HasPrefix(call.RequestURL, u) {
				found = true
			}
		}
		assert.True(t, found, call.RequestURL)
	}
	wg.Wait()
}

// Editing the credential file and refreshing retargets compiled tools and
// swaps the auth record without recompiling.
func TestBridge_HotReload(t *testing.T) {
	b := newTestBridge(t, nil)

	entry, ok := b.Registry.Get("cars_listCars")
	require.True(t, ok)
	require.Equal(t, "https://cars.example/v1", entry.Tool().BaseURL)

	require.NoError(t, os.WriteFile(b.Config.EnvFile,
		[]byte("CARS_SERVER_URL=http://localhost:9002\nCARS_API_KEY=k-2\n"), 0o600))
	require.NoError(t, b.EnvFile.Refresh())

	assert.Equal(t, "http://localhost:9002", entry.Tool().BaseURL)

	rec, found := b.Resolver.Lookup("cars")
	require.True(t, found)
	assert.Equal(t, auth.TypeAPIKey, rec.Type)
	assert.Equal(t, "k-2", rec.Token)
}
