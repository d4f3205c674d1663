package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/harun/openbridge/pkg/batch"
	"github.com/harun/openbridge/pkg/registry"
	"github.com/harun/openbridge/pkg/request"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
		IsError: true,
	}
}

func jsonText(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// handleInvoke validates the caller's arguments and executes one call. The
// executor always produces a result envelope; a local transport failure is
// reported as an error-flagged result carrying that envelope.
func (s *Server) handleInvoke(entry *registry.Entry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		// One snapshot per invocation so the URL in the result matches the
		// one the call was issued against, even mid-refresh.
		tool := entry.Tool()

		if err := entry.Validate(args); err != nil {
			return errorResult(fmt.Sprintf("Invalid arguments for %s: %v", tool.Name, err)), nil
		}

		call := s.exec.Execute(ctx, tool, args)
		if call.Response.Status == request.StatusNoResponse {
			return errorResult(jsonText(call)), nil
		}
		return textResult(jsonText(call)), nil
	}
}

// handleBatch routes to the batch dispatcher. A confirmation-required
// response is error-flagged for the caller but carries the actionable token.
func (s *Server) handleBatch() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		toolName, _ := args["tool"].(string)
		if toolName == "" {
			return errorResult("tool is required"), nil
		}

		rawItems, _ := args["items"].([]interface{})
		items := make([]map[string]interface{}, 0, len(rawItems))
		for i, raw := range rawItems {
			item, ok := raw.(map[string]interface{})
			if !ok {
				return errorResult(fmt.Sprintf("items[%d] is not an object", i)), nil
			}
			items = append(items, item)
		}

		failFast, _ := args["failFast"].(bool)
		confirmed, _ := args["confirmed"].(bool)
		token, _ := args["confirmationToken"].(string)

		result, err := s.dispatcher.Run(ctx, batch.Request{
			Tool:      toolName,
			Items:     items,
			FailFast:  failFast,
			Confirmed: confirmed,
			Token:     token,
		})
		if err != nil {
			if errors.Is(err, batch.ErrUnknownTool) {
				return errorResult(err.Error()), nil
			}
			log.Error().Err(err).Str("tool", toolName).Msg("Batch run failed")
			return errorResult(fmt.Sprintf("batch failed: %v", err)), nil
		}

		if result.ConfirmationRequired {
			return errorResult(jsonText(result)), nil
		}
		return textResult(jsonText(result)), nil
	}
}

func (s *Server) handleListAPIs() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		counts := map[string]int{}
		for _, entry := range s.reg.List() {
			counts[entry.Tool().API]++
		}
		return textResult(jsonText(counts)), nil
	}
}
