// Package mcpserver exposes the compiled tool catalog over the Model Context
// Protocol: one MCP tool per compiled operation, a batch entry point, and the
// catalog itself as retrievable resources.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/harun/openbridge/pkg/batch"
	"github.com/harun/openbridge/pkg/registry"
	"github.com/harun/openbridge/pkg/request"
)

// Server wraps the MCP server with the bridge's collaborators.
type Server struct {
	mcp        *server.MCPServer
	reg        *registry.Registry
	exec       *request.Executor
	dispatcher *batch.Dispatcher
	toolPrefix string
}

// New creates the MCP server and registers every catalog tool, the batch
// entry point, and the catalog resources.
func New(name, version string, reg *registry.Registry, exec *request.Executor, dispatcher *batch.Dispatcher, toolPrefix string) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			name,
			version,
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(true, true),
		),
		reg:        reg,
		exec:       exec,
		dispatcher: dispatcher,
		toolPrefix: toolPrefix,
	}

	s.registerTools()
	s.registerResources()

	log.Info().
		Int("tools", reg.Len()).
		Str("prefix", toolPrefix).
		Msg("MCP server ready")
	return s
}

// ServeStdio serves the MCP protocol over stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
