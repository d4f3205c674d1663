// Package request builds and issues one outbound HTTP call per tool
// invocation and always returns a normalized result envelope. Transport
// failures are results, not errors: nothing escapes to the caller.
package request

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/harun/openbridge/pkg/auth"
	"github.com/harun/openbridge/pkg/openapi"
)

// StatusNoResponse is the sentinel status reported when the transport
// produced no response at all (DNS failure, refused connection, timeout).
const StatusNoResponse = 0

// requestTimeout is the fixed per-request transport timeout. There is no
// caller-triggered cancellation beyond the context.
const requestTimeout = 30 * time.Second

// Response is the remote side of a call result.
type Response struct {
	Status int         `json:"status"`
	Body   interface{} `json:"body"`
}

// CallResult is the envelope produced by every execution, success or failure.
type CallResult struct {
	RequestID   string      `json:"requestId"`
	RequestURL  string      `json:"requestUrl"`
	RequestBody interface{} `json:"requestBody,omitempty"`
	Response    Response    `json:"response"`
}

// Executor issues tool invocations over HTTP with credentials applied.
type Executor struct {
	client    *http.Client
	auth      *auth.Resolver
	userAgent string
}

// NewExecutor creates an executor backed by a fixed-timeout HTTP client.
func NewExecutor(resolver *auth.Resolver, userAgent string) *Executor {
	if userAgent == "" {
		userAgent = "openbridge"
	}
	return &Executor{
		client:    &http.Client{Timeout: requestTimeout},
		auth:      resolver,
		userAgent: userAgent,
	}
}

// Execute maps one tool invocation plus caller arguments onto an outbound
// HTTP call. It has exactly two terminal outcomes, remote response or local
// failure, and both yield a CallResult.
func (e *Executor) Execute(ctx context.Context, tool *openapi.Tool, args map[string]interface{}) CallResult {
	if args == nil {
		args = map[string]interface{}{}
	}
	requestID := uuid.NewString()

	fullURL := joinURL(tool.BaseURL, substitutePath(tool.Path, args))
	body := resolveBody(tool, args)

	query := url.Values{}
	headers := http.Header{}
	headers.Set("User-Agent", e.userAgent)
	headers.Set("Accept", "application/json")
	headers.Set("X-Request-ID", requestID)
	e.applyAuth(headers, tool.API)

	var cookies []string
	for _, param := range tool.Parameters {
		value, present := args[param.Name]
		if !present {
			continue
		}
		switch param.In {
		case "header":
			// May overwrite an auth header of the same name on purpose.
			headers.Set(param.Name, stringify(value))
		case "query":
			addQueryValue(query, param.Name, value)
		case "cookie":
			cookies = append(cookies, param.Name+"="+stringify(value))
		}
	}
	if len(cookies) > 0 {
		headers.Set("Cookie", strings.Join(cookies, "; "))
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return localFailure(requestID, fullURL, body, fmt.Errorf("failed to encode request body: %w", err))
		}
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "application/json")
		}
	}

	requestURL := serializeURL(fullURL, query)

	req, err := http.NewRequestWithContext(ctx, tool.Method, requestURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return localFailure(requestID, requestURL, body, err)
	}
	req.Header = headers

	log.Debug().
		Str("request_id", requestID).
		Str("tool", tool.Name).
		Str("method", tool.Method).
		Str("url", requestURL).
		Msg("Issuing request")

	start := time.Now()
	resp, err := e.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Str("tool", tool.Name).
			Dur("duration", duration).
			Msg("Request failed without a response")
		return localFailure(requestID, requestURL, body, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return localFailure(requestID, requestURL, body, fmt.Errorf("failed to read response: %w", err))
	}

	log.Debug().
		Str("request_id", requestID).
		Str("tool", tool.Name).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("Request completed")

	return CallResult{
		RequestID:   requestID,
		RequestURL:  requestURL,
		RequestBody: body,
		Response: Response{
			Status: resp.StatusCode,
			Body:   decodeBody(raw),
		},
	}
}

func (e *Executor) applyAuth(headers http.Header, api string) {
	if e.auth == nil {
		return
	}
	rec, ok := e.auth.Lookup(api)
	if !ok {
		return
	}
	switch rec.Type {
	case auth.TypeBearer:
		headers.Set("Authorization", "Bearer "+rec.Token)
	case auth.TypeAPIKey:
		name := rec.HeaderName
		if name == "" {
			name = auth.DefaultAPIKeyHeader
		}
		headers.Set(name, rec.Token)
	case auth.TypeBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(rec.Username + ":" + rec.Password))
		headers.Set("Authorization", "Basic "+creds)
	default:
		// Unrecognized auth types are a no-op.
	}
}

var pathToken = regexp.MustCompile(`\{([^}]+)\}`)

// substitutePath replaces {name} tokens with percent-encoded argument values.
// Tokens with no matching argument are left in place.
func substitutePath(path string, args map[string]interface{}) string {
	return pathToken.ReplaceAllStringFunc(path, func(token string) string {
		name := token[1 : len(token)-1]
		value, ok := args[name]
		if !ok {
			return token
		}
		return url.PathEscape(stringify(value))
	})
}

// resolveBody applies the body precedence chain: explicit "body" argument,
// explicit "requestBody" argument, a body-location parameter's own argument
// when the tool has no formal body schema, then every argument not matching
// a declared parameter collected into an object.
func resolveBody(tool *openapi.Tool, args map[string]interface{}) interface{} {
	if v, ok := args["body"]; ok {
		return v
	}
	if v, ok := args["requestBody"]; ok {
		return v
	}

	if tool.RequestBody == nil {
		for _, param := range tool.Parameters {
			if param.In != "body" {
				continue
			}
			if v, ok := args[param.Name]; ok {
				return v
			}
			break
		}
	}

	declared := map[string]bool{"body": true, "requestBody": true}
	for _, param := range tool.Parameters {
		declared[param.Name] = true
	}
	leftovers := map[string]interface{}{}
	for name, value := range args {
		if !declared[name] {
			leftovers[name] = value
		}
	}
	if len(leftovers) > 0 {
		return leftovers
	}
	return nil
}

// addQueryValue encodes one query argument: arrays become repeated keys,
// objects become JSON text, scalars are stringified.
func addQueryValue(query url.Values, name string, value interface{}) {
	switch typed := value.(type) {
	case []interface{}:
		for _, item := range typed {
			query.Add(name, stringify(item))
		}
	case map[string]interface{}:
		if encoded, err := json.Marshal(typed); err == nil {
			query.Add(name, string(encoded))
		} else {
			query.Add(name, fmt.Sprintf("%v", typed))
		}
	default:
		query.Add(name, stringify(value))
	}
}

// serializeURL attaches the encoded query to the URL, falling back to the
// unmodified URL if it cannot be parsed.
func serializeURL(rawURL string, query url.Values) string {
	if len(query) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func stringify(value interface{}) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		// JSON numbers decode as float64; keep integers undecorated.
		if typed == float64(int64(typed)) {
			return fmt.Sprintf("%d", int64(typed))
		}
		return fmt.Sprintf("%v", typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// decodeBody parses a response body as JSON when possible, raw text otherwise.
func decodeBody(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err == nil {
		return decoded
	}
	return string(raw)
}

func localFailure(requestID, requestURL string, body interface{}, err error) CallResult {
	return CallResult{
		RequestID:   requestID,
		RequestURL:  requestURL,
		RequestBody: body,
		Response: Response{
			Status: StatusNoResponse,
			Body:   map[string]interface{}{"error": err.Error()},
		},
	}
}
