// Package auth derives per-API credentials from environment-variable naming
// conventions. Each refresh fully recomputes the record set; there is no
// incremental merge.
package auth

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Type classifies how a credential is applied to an outbound request.
type Type string

const (
	TypeBearer Type = "bearer"
	TypeAPIKey Type = "apiKey"
	TypeBasic  Type = "basic"
)

// DefaultAPIKeyHeader is the header an apiKey credential is sent in unless
// the description says otherwise.
const DefaultAPIKeyHeader = "X-API-Key"

// Record holds the resolved credential for one API namespace.
type Record struct {
	Type       Type   `json:"type"`
	Token      string `json:"token,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	HeaderName string `json:"headerName,omitempty"`
}

// Resolve classifies environment entries into per-API auth records.
//
// Suffix conventions: _API_KEY (apiKey), _BEARER_TOKEN (bearer), _TOKEN
// without BEARER (bearer), _USERNAME/_PASSWORD (basic); the API name is the
// matched prefix lower-cased. Classification runs in two fixed passes,
// non-bearer signals first, so a bearer signal always promotes an
// already-classified non-bearer API and never the reverse, independent of
// environment iteration order.
func Resolve(environ []string) map[string]Record {
	records := make(map[string]Record)

	for _, kv := range environ {
		key, value, ok := splitEnv(kv)
		if !ok || value == "" {
			continue
		}
		switch {
		case strings.HasSuffix(key, "_API_KEY"):
			api := apiName(key, "_API_KEY")
			if api == "" {
				continue
			}
			records[api] = Record{
				Type:       TypeAPIKey,
				Token:      value,
				HeaderName: DefaultAPIKeyHeader,
			}
		case strings.HasSuffix(key, "_USERNAME"):
			api := apiName(key, "_USERNAME")
			if api == "" {
				continue
			}
			rec := records[api]
			if rec.Type == "" || rec.Type == TypeBasic {
				rec.Type = TypeBasic
				rec.Username = value
				records[api] = rec
			}
		case strings.HasSuffix(key, "_PASSWORD"):
			api := apiName(key, "_PASSWORD")
			if api == "" {
				continue
			}
			rec := records[api]
			if rec.Type == "" || rec.Type == TypeBasic {
				rec.Type = TypeBasic
				rec.Password = value
				records[api] = rec
			}
		}
	}

	for _, kv := range environ {
		key, value, ok := splitEnv(kv)
		if !ok || value == "" {
			continue
		}
		switch {
		case strings.HasSuffix(key, "_BEARER_TOKEN"):
			if api := apiName(key, "_BEARER_TOKEN"); api != "" {
				records[api] = Record{Type: TypeBearer, Token: value}
			}
		case strings.HasSuffix(key, "_TOKEN") && !strings.Contains(key, "BEARER"):
			if api := apiName(key, "_TOKEN"); api != "" {
				records[api] = Record{Type: TypeBearer, Token: value}
			}
		}
	}

	return records
}

// ServerOverrides collects {NAME}_SERVER_URL entries keyed by lower-cased
// API name.
func ServerOverrides(environ []string) map[string]string {
	overrides := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := splitEnv(kv)
		if !ok || value == "" {
			continue
		}
		if strings.HasSuffix(key, "_SERVER_URL") {
			if api := apiName(key, "_SERVER_URL"); api != "" {
				overrides[api] = value
			}
		}
	}
	return overrides
}

func apiName(key, suffix string) string {
	return strings.ToLower(strings.TrimSuffix(key, suffix))
}

func splitEnv(kv string) (key, value string, ok bool) {
	idx := strings.IndexByte(kv, '=')
	if idx <= 0 {
		return "", "", false
	}
	return kv[:idx], kv[idx+1:], true
}

// Resolver holds the current auth record set. Refresh replaces the whole map
// in one step, so readers observe a pre- or post-refresh state, never a
// partial one.
type Resolver struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewResolver creates a resolver with the records derived from environ.
func NewResolver(environ []string) *Resolver {
	r := &Resolver{}
	r.Refresh(environ)
	return r
}

// Refresh recomputes the full record set from environ.
func (r *Resolver) Refresh(environ []string) {
	records := Resolve(environ)

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()

	log.Info().Int("apis", len(records)).Msg("Auth records refreshed")
}

// Lookup returns the credential record for an API namespace.
func (r *Resolver) Lookup(api string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[api]
	return rec, ok
}

// APIs returns the namespaces with a resolved credential.
func (r *Resolver) APIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	apis := make([]string, 0, len(r.records))
	for api := range r.records {
		apis = append(apis, api)
	}
	return apis
}
