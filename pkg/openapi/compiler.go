package openapi

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// PlaceholderBaseURL is used when a document declares no reachable server.
const PlaceholderBaseURL = "http://localhost"

// supportedMethods is the fixed verb order the compiler walks per path item.
var supportedMethods = []string{"get", "post", "put", "patch", "delete", "head", "options"}

// Parameter describes one tool input. Immutable after compilation.
type Parameter struct {
	Name        string                 `json:"name"`
	In          string                 `json:"in"` // path, query, header, cookie, body
	Description string                 `json:"description,omitempty"`
	Required    bool                   `json:"required"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
}

// Tool is one callable unit mapped to a single HTTP operation. Only BaseURL
// mutates after compilation (hot reload); everything else is read-only.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Method      string                 `json:"method"`
	Path        string                 `json:"path"`
	Parameters  []Parameter            `json:"parameters,omitempty"`
	RequestBody map[string]interface{} `json:"requestBody,omitempty"`
	BaseURL     string                 `json:"baseUrl"`
	API         string                 `json:"api"`
	Security    []string               `json:"security,omitempty"`
	Responses   []string               `json:"responses,omitempty"`
}

// CompileOptions adjusts compilation for one document.
type CompileOptions struct {
	// ServerOverride replaces the document's declared servers as the base URL.
	ServerOverride string
}

// Compile walks every (path, verb) operation in the document and emits one
// tool per valid operation. A malformed operation is skipped with a warning;
// it never aborts the rest of the catalog.
func Compile(doc *Document, opts CompileOptions) []*Tool {
	baseURL := computeBaseURL(doc.Root, opts.ServerOverride)
	doc.BaseURL = baseURL

	paths, _ := doc.Root["paths"].(map[string]interface{})
	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	var tools []*Tool
	for _, path := range pathKeys {
		item, ok := paths[path].(map[string]interface{})
		if !ok {
			log.Warn().Str("api", doc.API).Str("path", path).Msg("Skipping malformed path item")
			continue
		}
		pathParams := compileParameters(doc.Root, item["parameters"])

		for _, method := range supportedMethods {
			raw, present := item[method]
			if !present {
				continue
			}
			op, ok := raw.(map[string]interface{})
			if !ok {
				log.Warn().
					Str("api", doc.API).
					Str("method", method).
					Str("path", path).
					Msg("Skipping malformed operation")
				continue
			}
			tool, err := compileOperation(doc, method, path, op, pathParams, baseURL)
			if err != nil {
				log.Warn().
					Err(err).
					Str("api", doc.API).
					Str("method", method).
					Str("path", path).
					Msg("Skipping malformed operation")
				continue
			}
			tools = append(tools, tool)
		}
	}

	log.Info().Str("api", doc.API).Int("tools", len(tools)).Msg("Document compiled")
	return tools
}

func compileOperation(doc *Document, method, path string, op map[string]interface{}, pathParams []Parameter, baseURL string) (tool *Tool, err error) {
	// One bad operation must never take down the rest of the catalog.
	defer func() {
		if r := recover(); r != nil {
			tool = nil
			err = fmt.Errorf("operation panicked during compilation: %v", r)
		}
	}()

	name := toolName(doc.API, method, path, op)

	// Path-item parameters come first so operation-level entries of the same
	// name mask them downstream.
	params := append(append([]Parameter{}, pathParams...), compileParameters(doc.Root, op["parameters"])...)

	description, _ := op["summary"].(string)
	if description == "" {
		description, _ = op["description"].(string)
	}
	if description == "" {
		description = fmt.Sprintf("%s %s", strings.ToUpper(method), path)
	}

	return &Tool{
		Name:        name,
		Description: description,
		Method:      strings.ToUpper(method),
		Path:        path,
		Parameters:  params,
		RequestBody: compileRequestBody(doc.Root, op["requestBody"]),
		BaseURL:     baseURL,
		API:         doc.API,
		Security:    securityNames(op["security"], doc.Root["security"]),
		Responses:   responseCodes(op["responses"]),
	}, nil
}

// compileParameters resolves a raw parameter list. Unresolvable entries are
// dropped, and path-location parameters are always required regardless of
// what the document declares.
func compileParameters(root map[string]interface{}, raw interface{}) []Parameter {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	var params []Parameter
	for _, entry := range list {
		resolved := derefFragment(root, entry)
		m, ok := resolved.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		in, _ := m["in"].(string)
		if name == "" || in == "" {
			continue
		}
		required, _ := m["required"].(bool)
		if in == "path" {
			required = true
		}
		desc, _ := m["description"].(string)
		schema, _ := derefFragment(root, m["schema"]).(map[string]interface{})

		params = append(params, Parameter{
			Name:        name,
			In:          in,
			Description: desc,
			Required:    required,
			Schema:      schema,
		})
	}
	return params
}

// compileRequestBody extracts the JSON schema fragment of a request body,
// preferring the application/json media type. Returns nil when the operation
// declares no body.
func compileRequestBody(root map[string]interface{}, raw interface{}) map[string]interface{} {
	resolved, ok := derefFragment(root, raw).(map[string]interface{})
	if !ok {
		return nil
	}
	content, ok := resolved["content"].(map[string]interface{})
	if !ok || len(content) == 0 {
		return nil
	}

	mediaTypes := make([]string, 0, len(content))
	for mt := range content {
		mediaTypes = append(mediaTypes, mt)
	}
	sort.Strings(mediaTypes)

	pick := mediaTypes[0]
	for _, mt := range mediaTypes {
		if strings.HasPrefix(mt, "application/json") {
			pick = mt
			break
		}
	}

	media, ok := content[pick].(map[string]interface{})
	if !ok {
		return nil
	}
	schema, ok := derefFragment(root, media["schema"]).(map[string]interface{})
	if !ok {
		// A declared body with no interpretable schema still counts as a body.
		return map[string]interface{}{}
	}
	return schema
}

var pathToken = regexp.MustCompile(`\{[^}]*\}`)
var stripNonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// toolName is a pure function of (namespace, operationId) or
// (namespace, verb, path): identical inputs always yield identical names.
func toolName(namespace, method, path string, op map[string]interface{}) string {
	if id, ok := op["operationId"].(string); ok && id != "" {
		return fmt.Sprintf("%s_%s", namespace, id)
	}

	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || pathToken.MatchString(segment) {
			continue
		}
		cleaned := stripNonAlnum.ReplaceAllString(segment, "")
		if cleaned != "" {
			segments = append(segments, cleaned)
		}
	}
	joined := strings.Join(segments, "_")
	if joined == "" {
		joined = "root"
	}
	return fmt.Sprintf("%s_%s_%s", namespace, method, joined)
}

var serverVar = regexp.MustCompile(`\{([^}]+)\}`)

// computeBaseURL resolves the base URL by precedence: explicit override,
// first declared server (with variable defaults substituted), Swagger 2.0
// scheme+host+basePath, then a fixed placeholder. A base URL without an
// explicit path gets the document's base path appended.
func computeBaseURL(root map[string]interface{}, override string) string {
	base := ""
	switch {
	case override != "":
		base = override
	default:
		base = firstServerURL(root)
	}
	if base == "" {
		base = swaggerHostURL(root)
	}
	if base == "" {
		base = PlaceholderBaseURL
	}

	base = strings.TrimRight(base, "/")
	if u, err := url.Parse(base); err == nil && (u.Path == "" || u.Path == "/") {
		if basePath, ok := root["basePath"].(string); ok && basePath != "" && basePath != "/" {
			base = base + "/" + strings.Trim(basePath, "/")
		}
	}
	return base
}

// firstServerURL returns the first declared server URL with every {var}
// replaced by its declared default.
func firstServerURL(root map[string]interface{}) string {
	servers, ok := root["servers"].([]interface{})
	if !ok || len(servers) == 0 {
		return ""
	}
	server, ok := servers[0].(map[string]interface{})
	if !ok {
		return ""
	}
	raw, _ := server["url"].(string)
	if raw == "" {
		return ""
	}

	variables, _ := server["variables"].(map[string]interface{})
	return serverVar.ReplaceAllStringFunc(raw, func(token string) string {
		name := token[1 : len(token)-1]
		if v, ok := variables[name].(map[string]interface{}); ok {
			if def, ok := v["default"].(string); ok {
				return def
			}
		}
		return token
	})
}

// swaggerHostURL assembles scheme://host/basePath from Swagger 2.0 fields.
// Documents upgraded during load carry these as servers instead, so this is
// a fallback for trees built outside the loader.
func swaggerHostURL(root map[string]interface{}) string {
	host, _ := root["host"].(string)
	if host == "" {
		return ""
	}
	scheme := "https"
	if schemes, ok := root["schemes"].([]interface{}); ok && len(schemes) > 0 {
		if s, ok := schemes[0].(string); ok && s != "" {
			scheme = s
		}
	}
	base := scheme + "://" + host
	if basePath, ok := root["basePath"].(string); ok && basePath != "" && basePath != "/" {
		base += "/" + strings.Trim(basePath, "/")
	}
	return base
}

func securityNames(opSecurity, docSecurity interface{}) []string {
	raw := opSecurity
	if raw == nil {
		raw = docSecurity
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var names []string
	seen := map[string]bool{}
	for _, entry := range list {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		for name := range m {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func responseCodes(raw interface{}) []string {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
