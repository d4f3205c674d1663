package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harun/openbridge/pkg/registry"
)

// registerTools wires every catalog entry plus the bridge's own tools.
func (s *Server) registerTools() {
	for _, entry := range s.reg.List() {
		s.mcp.AddTool(s.buildTool(entry), s.handleInvoke(entry))
	}
	s.mcp.AddTool(buildBatchTool(s.toolPrefix), s.handleBatch())
	s.mcp.AddTool(buildListAPIsTool(s.toolPrefix), s.handleListAPIs())
}

// buildTool converts a catalog entry into an mcp.Tool. The MCP-side property
// types are advisory for discovery; authoritative validation stays with the
// compiled gojsonschema validator.
func (s *Server) buildTool(entry *registry.Entry) mcp.Tool {
	tool := entry.Tool()
	opts := []mcp.ToolOption{mcp.WithDescription(tool.Description)}

	for _, param := range tool.Parameters {
		opts = append(opts, paramOption(param.Name, param.Description, param.Required, paramType(param.Schema)))
	}
	if tool.RequestBody != nil {
		opts = append(opts, mcp.WithObject("body",
			mcp.Description("Request body; fields may also be passed flattened alongside the parameters"),
		))
	}

	return mcp.NewTool(s.toolPrefix+tool.Name, opts...)
}

func paramType(schema map[string]interface{}) string {
	if schema == nil {
		return ""
	}
	typ, _ := schema["type"].(string)
	return typ
}

func paramOption(name, description string, required bool, typ string) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if description != "" {
		opts = append(opts, mcp.Description(description))
	}
	if required {
		opts = append(opts, mcp.Required())
	}

	switch typ {
	case "integer", "number":
		return mcp.WithNumber(name, opts...)
	case "boolean":
		return mcp.WithBoolean(name, opts...)
	case "array":
		return mcp.WithArray(name, opts...)
	case "object":
		return mcp.WithObject(name, opts...)
	default:
		return mcp.WithString(name, opts...)
	}
}

func buildBatchTool(prefix string) mcp.Tool {
	return mcp.NewTool(prefix+"execute_batch",
		mcp.WithDescription("Run one catalog tool over an ordered list of argument sets. Batches larger than 200 items require a confirmation token."),
		mcp.WithString("tool", mcp.Required(), mcp.Description("Name of the catalog tool to run")),
		mcp.WithArray("items", mcp.Required(), mcp.Description("Ordered list of argument objects, one per call")),
		mcp.WithBoolean("failFast", mcp.Description("Stop processing after the first failed item")),
		mcp.WithBoolean("confirmed", mcp.Description("Set together with confirmationToken to run a large batch")),
		mcp.WithString("confirmationToken", mcp.Description("Token returned by a previous confirmation-required response")),
	)
}

func buildListAPIsTool(prefix string) mcp.Tool {
	return mcp.NewTool(prefix+"list_apis",
		mcp.WithDescription("List the loaded API namespaces and their tool counts"),
	)
}
