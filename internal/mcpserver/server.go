// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes commit tracking and spotlight tools via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notecommits/internal/render"
	"github.com/starford/notecommits/internal/spotlight"
	"github.com/starford/notecommits/internal/tracker"
)

const blockSyntaxURI = "notecommits://block-syntax"

// Server wraps the MCP server with the notecommits tools.
type Server struct {
	mcp       *server.MCPServer
	tracker   *tracker.Tracker
	spotlight *spotlight.Service
}

// New creates a new MCP server with all tools registered.
func New(tr *tracker.Tracker, spot *spotlight.Service) *Server {
	s := &Server{tracker: tr, spotlight: spot}

	s.mcp = server.NewMCPServer(
		"notecommits",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List the tracked project folders. \"/\" is the whole vault and is always tracked."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("track_project",
		mcp.WithDescription("Start tracking commits of a folder. The folder must contain at least one note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative folder (e.g. Projects/Thesis)")),
	), s.trackProject)

	s.mcp.AddTool(mcp.NewTool("untrack_project",
		mcp.WithDescription("Stop tracking a folder and drop its recorded activity."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Tracked folder")),
	), s.untrackProject)

	s.mcp.AddTool(mcp.NewTool("project_activity",
		mcp.WithDescription("Return the commit counters, daily and weekly histograms and recent history of a project as JSON."),
		mcp.WithString("project", mcp.Description("Tracked folder, empty for the whole vault")),
	), s.projectActivity)

	s.mcp.AddTool(mcp.NewTool("render_block",
		mcp.WithDescription("Render a commit or spotlight block. Read "+blockSyntaxURI+" for the argument syntax."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Block kind"),
			mcp.Enum(append(render.Kinds(), spotlight.KindNote, spotlight.KindBlock)...)),
		mcp.WithString("source", mcp.Description("Block body: key=value lines")),
		mcp.WithString("current_path", mcp.Description("Note holding the block")),
	), s.renderBlock)

	s.mcp.AddTool(mcp.NewTool("spotlight",
		mcp.WithDescription("Pick a random note, or a random block of a random note, matching the filters."),
		mcp.WithString("tags", mcp.Description("Semicolon-separated tags; any of them matches")),
		mcp.WithString("match", mcp.Description("Regular expression on the note path")),
		mcp.WithBoolean("block", mcp.Description("Pick a ^block-id paragraph instead of a whole note")),
	), s.spotlightNote)

	s.mcp.AddResource(
		mcp.NewResource(blockSyntaxURI, "Block Syntax",
			mcp.WithResourceDescription("Arguments of the commit and spotlight blocks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBlockSyntax,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := s.tracker.Projects()
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = string(k)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) trackProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := s.tracker.Track(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot track %q: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("tracking: %s", key)), nil
}

func (s *Server) untrackProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := s.tracker.Untrack(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot untrack %q: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("untracked: %s", key)), nil
}

func (s *Server) projectActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	agg, err := s.tracker.Activity(project)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(agg, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) renderBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source := req.GetString("source", "")

	if kind == spotlight.KindNote || kind == spotlight.KindBlock {
		return s.spotlightResult(ctx, spotlight.Request{
			Source:      source,
			CurrentPath: req.GetString("current_path", ""),
			Block:       kind == spotlight.KindBlock,
		})
	}

	view, err := s.tracker.Render(kind, source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var buf bytes.Buffer
	if err := render.WriteTable(&buf, view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) spotlightNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var src []string
	if tags := req.GetString("tags", ""); tags != "" {
		src = append(src, "tags="+tags)
	}
	if match := req.GetString("match", ""); match != "" {
		src = append(src, "match="+match)
	}
	return s.spotlightResult(ctx, spotlight.Request{
		Source: strings.Join(src, "\n"),
		Block:  req.GetBool("block", false),
	})
}

func (s *Server) spotlightResult(ctx context.Context, req spotlight.Request) (*mcp.CallToolResult, error) {
	res, err := s.spotlight.Spotlight(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res.Message != "" {
		return mcp.NewToolResultText(res.Message), nil
	}
	header := res.Path
	if res.BlockID != "" {
		header += "#^" + res.BlockID
	}
	return mcp.NewToolResultText(header + "\n\n" + res.Text), nil
}

func (s *Server) readBlockSyntax(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      blockSyntaxURI,
			MIMEType: "text/markdown",
			Text:     BlockSyntax,
		},
	}, nil
}
