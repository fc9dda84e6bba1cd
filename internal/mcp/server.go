// Package mcp exposes the affirmation gate to agents as MCP tools. An agent
// that wants to fetch or place a file first asks through a tool; the user
// answers the dialog and the tool reports the outcome.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/affirmgate/internal/approval"
	"github.com/ppiankov/affirmgate/internal/gate"
	"github.com/ppiankov/affirmgate/internal/intercept"
	"github.com/ppiankov/affirmgate/internal/model"
)

// Server wraps the MCP SDK server with the affirmation tools.
type Server struct {
	mcpServer *mcpsdk.Server
	gate      *gate.Gate
	pending   *approval.Store

	download intercept.Func[string, string]
	upload   intercept.Func[string, string]
}

// New creates an MCP server gated by g. pending may be nil, in which case
// the pending tool reports an empty list.
func New(g *gate.Gate, pending *approval.Store, version string) *Server {
	s := &Server{gate: g, pending: pending}

	s.download = intercept.Guard(g, model.KindDownload, func(ctx context.Context, u string) (string, error) {
		return intercept.AffirmURLParam(u, g.Config().AffirmParam), nil
	})
	s.upload = intercept.GuardUpload(g, func(_ context.Context, path string) (string, error) {
		return path, nil
	}, g.Config().Upload.Refusal)

	s.mcpServer = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "affirmgate",
		Version: version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves on stdio. Blocks until ctx is cancelled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "affirm_download",
		Description: "Ask the user to affirm the data use policy before downloading a file. Returns the URL to fetch when affirmed.",
	}, s.handleDownload)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "affirm_upload",
		Description: "Ask the user to affirm the data use policy before uploading a file into the workspace.",
	}, s.handleUpload)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "affirm_pending",
		Description: "List affirmation prompts waiting for the user.",
	}, s.handlePending)
}
