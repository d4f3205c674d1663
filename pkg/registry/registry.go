// Package registry is the single source of truth mapping tool names to their
// source document, compiled definition, and runtime validator. All mutation
// funnels through the compile and hot-reload entry points; everything else
// only reads.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/openbridge/pkg/openapi"
)

// Entry binds one tool to its document and input validator. The tool is held
// behind an atomic pointer: hot reload swaps in a fresh snapshot, so readers
// on other goroutines see the pre- or post-refresh tool, never a torn one.
type Entry struct {
	Doc    *openapi.Document
	Schema *gojsonschema.Schema

	tool atomic.Pointer[openapi.Tool]
}

// Tool returns the current tool snapshot. Snapshots are immutable; callers
// must not retain one across a refresh if they want the updated base URL.
func (e *Entry) Tool() *openapi.Tool {
	return e.tool.Load()
}

// Validate checks candidate arguments against the tool's input schema.
// A nil schema accepts anything.
func (e *Entry) Validate(args map[string]interface{}) error {
	if e.Schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := e.Schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			details = append(details, verr.String())
		}
		return fmt.Errorf("validation errors: %v", details)
	}
	return nil
}

// Registry is the process-wide tool catalog.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// NewEntry compiles the tool's input validator and wraps the tool for
// registration. Validator compilation failure degrades to accept-anything
// rather than dropping the tool.
func NewEntry(doc *openapi.Document, tool *openapi.Tool) *Entry {
	schemaMap := openapi.ToolSchema(doc.Root, tool)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		log.Warn().
			Err(err).
			Str("tool", tool.Name).
			Msg("Failed to compile input schema, accepting any arguments")
		schema = nil
	}
	entry := &Entry{Doc: doc, Schema: schema}
	entry.tool.Store(tool)
	return entry
}

// Register adds an entry. Name collisions resolve last-write-wins with a
// warning, matching catalog recompiles over the same documents.
func (r *Registry) Register(entry *Entry) {
	tool := entry.Tool()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; exists {
		log.Warn().
			Str("tool", tool.Name).
			Str("api", tool.API).
			Msg("Tool name collision, replacing previous definition")
	}
	r.entries[tool.Name] = entry

	log.Debug().
		Str("tool", tool.Name).
		Str("method", tool.Method).
		Str("path", tool.Path).
		Msg("Tool registered")
}

// Get returns the entry for a tool name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	return entry, ok
}

// List returns all entries sorted by tool name.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Tool().Name < entries[j].Tool().Name
	})
	return entries
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// APIs returns the distinct namespaces present in the catalog, sorted.
func (r *Registry) APIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]bool{}
	var apis []string
	for _, entry := range r.entries {
		api := entry.Tool().API
		if !seen[api] {
			seen[api] = true
			apis = append(apis, api)
		}
	}
	sort.Strings(apis)
	return apis
}

// SetBaseURL pushes a new base URL onto every compiled tool of one API by
// swapping in a cloned snapshot per entry, so entries held by in-flight
// executions observe the update without a catalog reload. Runs to completion
// under the write lock; concurrent readers see each entry's pre- or
// post-refresh snapshot, never a half-written tool. Returns the number of
// tools updated.
func (r *Registry) SetBaseURL(api, baseURL string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, entry := range r.entries {
		tool := entry.Tool()
		if tool.API != api {
			continue
		}
		clone := *tool
		clone.BaseURL = baseURL
		entry.tool.Store(&clone)
		entry.Doc.BaseURL = baseURL
		updated++
	}
	if updated > 0 {
		log.Info().
			Str("api", api).
			Str("base_url", baseURL).
			Int("tools", updated).
			Msg("Base URL refreshed")
	}
	return updated
}
