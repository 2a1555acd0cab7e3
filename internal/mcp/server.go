// Package mcp exposes the device registry, command queue and links as MCP tools.
package mcp

import (
	"homelink/internal/engine"
	"homelink/internal/models"
	"homelink/internal/queue"
	"homelink/internal/registry"

	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server; every tool acts as a single caller
type Server struct {
	mcpServer *server.MCPServer
	registry  *registry.Registry
	queue     *queue.Queue
	links     *engine.LinkService
	caller    models.Caller
}

// NewServer creates an MCP server for caller
func NewServer(reg *registry.Registry, q *queue.Queue, links *engine.LinkService, caller models.Caller) *Server {
	s := &Server{
		registry: reg,
		queue:    q,
		links:    links,
		caller:   caller,
	}

	s.mcpServer = server.NewMCPServer(
		"homelink",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	return s
}

// ServeStdio serves MCP over stdin and stdout
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
