package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Document is one loaded, validated API description.
// Root is the dereferenceable document tree; downstream code treats it as
// read-only. BaseURL is the only field mutated after load (hot reload).
type Document struct {
	API     string
	Source  string
	Root    map[string]interface{}
	BaseURL string
}

// specExtensions are the only file extensions recognized as descriptions.
var specExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// excludedFilenames are well-known files that match the extension filter but
// are never API descriptions.
var excludedFilenames = map[string]bool{
	"package.json":        true,
	"package-lock.json":   true,
	"tsconfig.json":       true,
	"composer.json":       true,
	"docker-compose.yml":  true,
	"docker-compose.yaml": true,
	"openbridge.json":     true,
	"openbridge.yaml":     true,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Namespace derives the API namespace slug from a description file path:
// lower-cased stem, non-alphanumeric runs collapsed to underscores, and a
// trailing "swagger" or "openapi" token stripped.
func Namespace(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	slug := nonAlnum.ReplaceAllString(strings.ToLower(stem), "_")
	slug = strings.Trim(slug, "_")

	for _, suffix := range []string{"_swagger", "_openapi"} {
		if trimmed := strings.TrimSuffix(slug, suffix); trimmed != slug && trimmed != "" {
			slug = trimmed
			break
		}
	}
	if slug == "" {
		slug = "api"
	}
	return slug
}

// ScanDir returns the description file paths in dir, sorted by name.
// Only .json/.yaml/.yml files are considered, minus the exclusion set.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !specExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		if excludedFilenames[strings.ToLower(name)] {
			log.Debug().Str("file", name).Msg("Skipping known non-description file")
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDocument parses, validates, and normalizes one description file.
// Swagger 2.0 documents are upgraded to OpenAPI 3 before validation, so the
// rest of the pipeline only ever sees a v3 tree.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read description: %w", err)
	}

	jsonData, err := toJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse description: %w", err)
	}

	var versionHint struct {
		Swagger string `json:"swagger"`
	}
	_ = json.Unmarshal(jsonData, &versionHint)

	var doc *openapi3.T
	if strings.HasPrefix(versionHint.Swagger, "2") {
		var v2 openapi2.T
		if err := json.Unmarshal(jsonData, &v2); err != nil {
			return nil, fmt.Errorf("failed to parse swagger 2.0 document: %w", err)
		}
		doc, err = openapi2conv.ToV3(&v2)
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade swagger 2.0 document: %w", err)
		}
	} else {
		loader := openapi3.NewLoader()
		loader.IsExternalRefsAllowed = false
		doc, err = loader.LoadFromData(jsonData)
		if err != nil {
			return nil, fmt.Errorf("failed to load description: %w", err)
		}
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("description failed validation: %w", err)
	}

	normalized, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to normalize description: %w", err)
	}

	var root map[string]interface{}
	if err := json.Unmarshal(normalized, &root); err != nil {
		return nil, fmt.Errorf("failed to decode description tree: %w", err)
	}

	ns := Namespace(path)
	log.Info().
		Str("file", path).
		Str("api", ns).
		Msg("Description loaded")

	return &Document{
		API:    ns,
		Source: path,
		Root:   root,
	}, nil
}

// toJSON converts description bytes to JSON, accepting both JSON and YAML.
func toJSON(data []byte) ([]byte, error) {
	if json.Valid(data) {
		return data, nil
	}
	var node interface{}
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(node))
}

// normalizeYAML rewrites yaml-decoded values into JSON-encodable ones.
func normalizeYAML(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, val := range typed {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, val := range typed {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		for i, item := range typed {
			typed[i] = normalizeYAML(item)
		}
		return typed
	default:
		return v
	}
}
