// Package mcp exposes search, autocomplete and find-similar as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	"github.com/kailas-cloud/promptdex/internal/domain/suggest"
	logpkg "github.com/kailas-cloud/promptdex/internal/logger"
	"github.com/kailas-cloud/promptdex/internal/version"
)

// ServerName is the MCP server name.
const ServerName = "promptdex"

// Searcher runs search and find-similar queries.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Page, error)
	FindSimilar(ctx context.Context, req request.Similar) (result.Page, error)
	SimilarThreshold() float64
}

// Suggester ranks autocomplete candidates.
type Suggester interface {
	Suggest(ctx context.Context, req request.Suggest) []suggest.Candidate
}

// Server wraps the MCP server. Every tool call runs as one fixed principal.
type Server struct {
	mcp       *server.MCPServer
	search    Searcher
	suggest   Suggester
	principal access.Principal
	logger    *zap.Logger
}

// NewServer creates an MCP server and registers its tools.
func NewServer(searcher Searcher, suggester Suggester, principal access.Principal, logger *zap.Logger) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			version.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		search:    searcher,
		suggest:   suggester,
		principal: principal,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Serve runs the server on the given streams until ctx is cancelled or input ends.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	if err := stdio.Listen(ctx, in, out); err != nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchPromptsTool(), s.logged("search_prompts", s.handleSearch))
	s.mcp.AddTool(suggestPromptsTool(), s.logged("suggest_prompts", s.handleSuggest))
	s.mcp.AddTool(findSimilarPromptsTool(), s.logged("find_similar_prompts", s.handleFindSimilar))
}

// logged gives the services a logger naming the tool and the fixed principal.
func (s *Server) logged(tool string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	l := s.logger.With(zap.String("tool", tool)).With(logpkg.Principal(s.principal.UserID, s.principal.WorkspaceID)...)
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return h(logpkg.WithContext(ctx, l), req)
	}
}
