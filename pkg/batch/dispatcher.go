// Package batch fans one tool out over an ordered list of argument sets,
// gated by a single-use confirmation token when the batch is large.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/harun/openbridge/pkg/registry"
	"github.com/harun/openbridge/pkg/request"
)

// ConfirmationThreshold is the item count above which a batch requires a
// confirmation token. A batch of exactly this size never gates.
const ConfirmationThreshold = 200

// ErrUnknownTool is returned when the requested tool is not in the catalog.
// No items are processed and no state changes.
var ErrUnknownTool = errors.New("unknown tool")

// Request describes one batch run.
type Request struct {
	Tool      string                   `json:"tool"`
	Items     []map[string]interface{} `json:"items"`
	FailFast  bool                     `json:"failFast,omitempty"`
	Confirmed bool                     `json:"confirmed,omitempty"`
	Token     string                   `json:"confirmationToken,omitempty"`
}

// Outcome is the result of one batch item, in original order.
type Outcome struct {
	Index  int                 `json:"index"`
	Error  string              `json:"error,omitempty"`
	Result *request.CallResult `json:"result,omitempty"`
}

// Result is the consolidated bundle for one batch run.
type Result struct {
	Tool      string    `json:"tool"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Halted    bool      `json:"halted,omitempty"`
	Outcomes  []Outcome `json:"outcomes"`

	// ConfirmationRequired marks the non-executed outcome for large batches:
	// an error to the caller, but one carrying an actionable token.
	ConfirmationRequired bool   `json:"confirmationRequired,omitempty"`
	ConfirmationToken    string `json:"confirmationToken,omitempty"`
	Message              string `json:"message,omitempty"`
}

// Dispatcher runs one tool over many argument sets sequentially.
type Dispatcher struct {
	reg        *registry.Registry
	exec       *request.Executor
	tokens     *TokenStore
	namePrefix string
}

// NewDispatcher creates a dispatcher. namePrefix is the protocol adapter's
// tool-name prefix, stripped from incoming tool names before lookup.
func NewDispatcher(reg *registry.Registry, exec *request.Executor, namePrefix string) *Dispatcher {
	return &Dispatcher{
		reg:        reg,
		exec:       exec,
		tokens:     NewTokenStore(),
		namePrefix: namePrefix,
	}
}

// Run processes the batch strictly in order: each item is validated against
// the tool's input schema and then executed. Failures become per-index
// outcomes, never panics; fail-fast only stops issuing further items.
//
// An item counts as failed only when validation rejects it or the transport
// produced no response at all. A remote 4xx/5xx is a completed call: the
// status and body land in the item's result, Failed stays untouched, and
// fail-fast does not halt on it.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*Result, error) {
	name := strings.TrimPrefix(req.Tool, d.namePrefix)

	entry, ok := d.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if gated := d.checkGate(name, req); gated != nil {
		return gated, nil
	}

	result := &Result{
		Tool:     name,
		Total:    len(req.Items),
		Outcomes: make([]Outcome, 0, len(req.Items)),
	}

	for i, args := range req.Items {
		if err := entry.Validate(args); err != nil {
			result.Outcomes = append(result.Outcomes, Outcome{
				Index: i,
				Error: fmt.Sprintf("validation failed: %v", err),
			})
			result.Processed++
			result.Failed++
			if req.FailFast {
				result.Halted = true
				break
			}
			continue
		}

		call := d.executeItem(ctx, entry, args)
		outcome := Outcome{Index: i, Result: &call}
		if call.Response.Status == request.StatusNoResponse {
			if msg := failureMessage(call); msg != "" {
				outcome.Error = msg
			} else {
				outcome.Error = "request failed without a response"
			}
			result.Failed++
		}
		result.Outcomes = append(result.Outcomes, outcome)
		result.Processed++

		if outcome.Error != "" && req.FailFast {
			result.Halted = true
			break
		}
	}

	log.Info().
		Str("tool", name).
		Int("total", result.Total).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Bool("halted", result.Halted).
		Msg("Batch completed")
	return result, nil
}

// checkGate enforces the large-batch confirmation protocol. Returns a
// confirmation-required result when the batch must not run yet.
func (d *Dispatcher) checkGate(name string, req Request) *Result {
	count := len(req.Items)
	if count <= ConfirmationThreshold {
		return nil
	}

	if req.Confirmed && req.Token != "" && d.tokens.Consume(req.Token, name, count) {
		return nil
	}

	token := d.tokens.Issue(name, count)
	log.Warn().
		Str("tool", name).
		Int("items", count).
		Msg("Large batch requires confirmation")

	return &Result{
		Tool:                 name,
		Total:                count,
		ConfirmationRequired: true,
		ConfirmationToken:    token,
		Message: fmt.Sprintf(
			"Batch of %d items exceeds %d. Resubmit with confirmed=true and this confirmationToken within %s to proceed.",
			count, ConfirmationThreshold, TokenTTL),
	}
}

// executeItem shields the batch from anything the executor's collaborators
// might panic on; a panicking item becomes a local-failure result.
func (d *Dispatcher) executeItem(ctx context.Context, entry *registry.Entry, args map[string]interface{}) (call request.CallResult) {
	defer func() {
		if r := recover(); r != nil {
			call = request.CallResult{
				Response: request.Response{
					Status: request.StatusNoResponse,
					Body:   map[string]interface{}{"error": fmt.Sprintf("execution panicked: %v", r)},
				},
			}
		}
	}()
	return d.exec.Execute(ctx, entry.Tool(), args)
}

func failureMessage(call request.CallResult) string {
	body, ok := call.Response.Body.(map[string]interface{})
	if !ok {
		return ""
	}
	msg, _ := body["error"].(string)
	return msg
}
