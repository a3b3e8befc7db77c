// Package mcp exposes query resolution as Model Context Protocol tools over
// stdio, so assistant clients can turn questions into threat API calls.
package mcp

import (
	"context"
	"errors"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"tdr-agent/internal/config"
	"tdr-agent/internal/executor"
	"tdr-agent/internal/explain"
	"tdr-agent/internal/pipeline"
)

// Version is reported to connecting clients
const Version = "1.0.0"

// Deps contains everything the tool handlers need
type Deps struct {
	Pipeline  *pipeline.Pipeline
	Store     *config.Store
	Forwarder *executor.Forwarder
	Explainer *explain.Explainer
}

// runtimeContext pins one configuration snapshot for the duration of a call
func (d *Deps) runtimeContext(ctx context.Context) (context.Context, config.Runtime) {
	if rt, ok := config.RuntimeFrom(ctx); ok {
		return ctx, rt
	}
	rt := d.Store.Snapshot()
	return config.WithRuntime(ctx, rt), rt
}

// Server wraps the MCP server
type Server struct {
	mcpServer *sdkmcp.Server
}

// NewServer creates an MCP server with every tool registered
func NewServer(deps *Deps) (*Server, error) {
	if deps == nil || deps.Pipeline == nil || deps.Store == nil {
		return nil, errors.New("pipeline and store are required")
	}

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "tdr-agent",
		Version: Version,
	}, nil)
	srv.AddReceivingMiddleware(loggingMiddleware())

	registerTools(srv, deps)

	return &Server{mcpServer: srv}, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &sdkmcp.StdioTransport{})
}

// MCPServer returns the underlying server
func (s *Server) MCPServer() *sdkmcp.Server {
	return s.mcpServer
}
