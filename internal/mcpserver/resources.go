package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

const catalogURI = "openbridge://catalog"

// registerResources publishes the tool catalog as retrievable JSON: the full
// catalog plus one resource per loaded API namespace.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		mcp.NewResource(catalogURI, "Tool catalog",
			mcp.WithResourceDescription("Every compiled tool with its method, path, parameters, and base URL"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleCatalog(""),
	)

	for _, api := range s.reg.APIs() {
		uri := fmt.Sprintf("%s/%s", catalogURI, api)
		s.mcp.AddResource(
			mcp.NewResource(uri, fmt.Sprintf("Tool catalog: %s", api),
				mcp.WithResourceDescription(fmt.Sprintf("Compiled tools for the %s API", api)),
				mcp.WithMIMEType("application/json"),
			),
			s.handleCatalog(api),
		)
	}
}

func (s *Server) handleCatalog(api string) func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var tools []interface{}
		for _, entry := range s.reg.List() {
			tool := entry.Tool()
			if api != "" && tool.API != api {
				continue
			}
			tools = append(tools, tool)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     jsonText(tools),
			},
		}, nil
	}
}
