// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Cogninote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cogninote/internal/mastery"
	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/noteservice"
)

// Server wraps the MCP server with Cogninote tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service

	// allowLoopback disables the host checks in capture_source; tests only.
	allowLoopback bool
}

// New creates a new MCP server with all Cogninote tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Cogninote",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	categories := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		categories[i] = string(c)
	}

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Find notes whose title, tags or summary contain the query (case-insensitive)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to look for")),
		mcp.WithString("category", mcp.Description("Optional category filter"), mcp.Enum(categories...)),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes newest first, optionally in one category."),
		mcp.WithString("category", mcp.Description("Optional category filter"), mcp.Enum(categories...)),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note as Markdown with frontmatter."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("capture_note",
		mcp.WithDescription("Structure raw text into a new Cornell note. "+
			"Read the schema first via get_note_schema or the "+NoteSchemaURI+" resource."),
		mcp.WithString("input", mcp.Required(), mcp.Description("Raw text to capture")),
		mcp.WithBoolean("seed", mcp.Description("Mark the capture as a research seed (mastery starts at 0)")),
	), s.captureNote)

	s.mcp.AddTool(mcp.NewTool("capture_source",
		mcp.WithDescription("Fetch a plain-text or Markdown document (http, https or base64 data URI) and capture it."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Document URL")),
	), s.captureSource)

	s.mcp.AddTool(mcp.NewTool("resolve_link",
		mcp.WithDescription("Follow a connection title to a note. Unresolved titles need create_seed to be researched."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Connection title")),
		mcp.WithBoolean("create_seed", mcp.Description("Create a seed note when nothing matches")),
	), s.resolveLink)

	s.mcp.AddTool(mcp.NewTool("review_note",
		mcp.WithDescription("Record a review: outcome struggled (-5) or mastered (+10), or an explicit delta."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("outcome", mcp.Description("Review outcome"), mcp.Enum(string(mastery.Struggled), string(mastery.Mastered))),
		mcp.WithNumber("delta", mcp.Description("Explicit mastery delta, used when outcome is absent")),
	), s.reviewNote)

	s.mcp.AddTool(mcp.NewTool("graph_summary",
		mcp.WithDescription("Knowledge map: nodes with connection counts, total connections and vitality."),
	), s.graphSummary)

	s.mcp.AddTool(mcp.NewTool("get_note_schema",
		mcp.WithDescription("Returns the Cogninote note schema and capture file format."),
	), s.getNoteSchema)

	s.mcp.AddResource(
		mcp.NewResource(NoteSchemaURI, "Note Schema",
			mcp.WithResourceDescription("Note record layout, review rules and capture file format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteSchemaResource,
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

type noteBrief struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Category     models.Category `json:"category"`
	Tags         []string        `json:"tags"`
	Summary      string          `json:"summary"`
	MasteryScore int             `json:"masteryScore"`
	IsSeed       bool            `json:"isSeed,omitempty"`
}

func brief(n models.Note) noteBrief {
	return noteBrief{
		ID:           n.ID,
		Title:        n.Title,
		Category:     n.Category,
		Tags:         n.Tags,
		Summary:      n.Cornell.Summary,
		MasteryScore: n.MasteryScore,
		IsSeed:       n.IsSeed,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	var ce *noteservice.CaptureError
	if errors.As(err, &ce) {
		return mcp.NewToolResultError(fmt.Sprintf("%v (draft preserved: %q)", err, ce.Input)), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func categoryArg(req mcp.CallToolRequest) (*models.Category, error) {
	raw := req.GetString("category", "")
	if raw == "" {
		return nil, nil
	}
	c, err := models.ParseCategory(raw)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Server) listFiltered(req mcp.CallToolRequest, query string) (*mcp.CallToolResult, error) {
	category, err := categoryArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes := s.svc.List(query, category)
	out := make([]noteBrief, len(notes))
	for i, n := range notes {
		out[i] = brief(n)
	}
	return jsonResult(out)
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.listFiltered(req, query)
}

func (s *Server) listNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.listFiltered(req, "")
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	md, err := s.svc.Export(id)
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(string(md)), nil
}

func (s *Server) captureNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := req.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Capture(ctx, noteservice.CaptureRequest{
		Input: input,
		Seed:  req.GetBool("seed", false),
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(brief(n))
}

func (s *Server) resolveLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.ResolveLink(ctx, title, req.GetBool("create_seed", false))
	if err != nil {
		return errorResult(err)
	}
	if res.NeedsConfirmation {
		return mcp.NewToolResultText(res.Prompt), nil
	}
	return jsonResult(brief(*res.Note))
}

func (s *Server) reviewNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var n models.Note
	if outcome := req.GetString("outcome", ""); outcome != "" {
		n, err = s.svc.ReviewOutcome(ctx, id, mastery.Outcome(outcome))
	} else {
		raw, derr := req.RequireFloat("delta")
		if derr != nil {
			return mcp.NewToolResultError("outcome or delta is required"), nil
		}
		delta, derr := reviewDelta(raw)
		if derr != nil {
			return mcp.NewToolResultError(derr.Error()), nil
		}
		n, err = s.svc.Review(ctx, id, delta)
	}
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(brief(n))
}

// maxReviewDelta bounds explicit deltas; anything beyond it saturates the
// score either way.
const maxReviewDelta = 1e6

// reviewDelta converts a JSON number to a mastery delta. Non-integers are
// rejected and magnitudes are bounded before the int conversion.
func reviewDelta(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("delta must be an integer, got %v", v)
	}
	return int(math.Max(math.Min(v, maxReviewDelta), -maxReviewDelta)), nil
}

func (s *Server) graphSummary(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := s.svc.Graph()
	return jsonResult(map[string]any{
		"nodes":            p.Nodes,
		"totalConnections": p.TotalConnections,
		"vitality":         s.svc.Stats().Vitality,
	})
}

func (s *Server) getNoteSchema(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteSchema), nil
}

func (s *Server) readNoteSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteSchemaURI,
			MIMEType: "text/markdown",
			Text:     NoteSchema,
		},
	}, nil
}
