// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Inkwell note tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/arvidh/inkwell/internal/noteservice"
	"github.com/arvidh/inkwell/internal/storagemap"
)

// Server wraps the MCP server with Inkwell tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *noteservice.Service
	session *storagemap.Session
}

// New creates a new MCP server with all Inkwell tools registered.
func New(svc *noteservice.Service, session *storagemap.Session) *Server {
	s := &Server{svc: svc, session: session}

	s.mcp = server.NewMCPServer(
		"Inkwell",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_repositories",
		mcp.WithDescription("List every note repository known to this Inkwell instance."),
	), s.listRepositories)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note document, including its metadata, tags, and folder."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note document id (note:<hex>)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. The title is derived from the first heading "+
			"when omitted, and inline #hashtags become tags."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown note content")),
		mcp.WithString("title", mcp.Description("Optional explicit title")),
		mcp.WithString("folder", mcp.Description("Optional folder path (defaults to /Notes)")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace a note's content. Other fields are preserved; the preview "+
			"is re-derived from the new content."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note document id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note document id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search note titles and content in a repository."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository name")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

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

func (s *Server) listRepositories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.svc.ListRepositories(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	type repoInfo struct {
		Name  string `json:"name"`
		Notes int    `json:"notes"`
	}
	infos := make([]repoInfo, 0, len(names))
	for _, name := range names {
		count := 0
		if idx, ok := s.session.Repo(name); ok {
			count = len(idx.NoteMap)
		}
		infos = append(infos, repoInfo{Name: name, Notes: count})
	}
	out, _ := json.MarshalIndent(infos, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := req.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, repo, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(note, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := req.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := noteservice.CreateNoteParams{Content: content}
	if title, err := req.RequireString("title"); err == nil {
		params.Title = title
	}
	if folder, err := req.RequireString("folder"); err == nil {
		params.Folder = folder
	}

	note, err := s.svc.CreateNote(ctx, repo, params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := req.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	note, err := s.svc.UpdateNote(ctx, repo, id, noteservice.NotePatch{Content: &content})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (rev %s)", note.ID, note.Rev)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := req.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNote(ctx, repo, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := req.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchNotes(ctx, repo, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
