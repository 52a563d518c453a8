// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Tavle tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mjelva/tavle/internal/docservice"
	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
	"github.com/mjelva/tavle/internal/storage"
)

// Server wraps the MCP server with Tavle tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *docservice.Service
	store storage.Provider
}

// New creates a new MCP server with all Tavle tools registered.
func New(svc *docservice.Service, store storage.Provider) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"Tavle",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all documents with their ids and titles."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a document. Format 'markdown' (default) renders the "+
			"canonical tree as Markdown; 'json' returns the raw document tree."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("format", mcp.Description("Output format: markdown (default) or json")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new empty document with the given title. "+
			"Add content afterwards via apply_operation. Read the contract first via "+
			"the get_document_contract tool or the tavle://document-format resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable document title")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("apply_operation",
		mcp.WithDescription("Apply a semantic operation to a document. The operation "+
			"argument is a JSON object with fields op (create|delete|move|setText|setProperty), "+
			"itemId, and params. See the tavle://document-format resource for the full vocabulary."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("operation", mcp.Required(), mcp.Description("Operation as a JSON object")),
	), s.applyOperation)

	s.mcp.AddTool(mcp.NewTool("undo_last",
		mcp.WithDescription("Undo the most recent operation on a document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.undoLast)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Full-text search through item text across all documents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the canonical Tavle document and operation contract. "+
			"Call this before creating documents or applying operations."),
	), s.getDocumentContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Download an asset from a URL (or decode a base64 data URI) "+
			"and store it in the shared attachments directory. Images, PDFs, and audio "+
			"recordings are accepted; returns a markdown snippet ready to paste into "+
			"item text."),
		mcp.WithString("url", mcp.Required(), mcp.Description("HTTP(S) URL or data: URI of the asset")),
		mcp.WithString("filename", mcp.Description("Optional filename override")),
	), s.uploadAsset)

	// Resource: document format and operation contract.
	s.mcp.AddResource(
		mcp.NewResource("tavle://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical document tree and operation vocabulary."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, _, err := s.svc.ListDocuments(ctx, 0, 0, "title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(metas, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := "markdown"
	if f, fErr := req.RequireString("format"); fErr == nil && f != "" {
		format = f
	}

	switch format {
	case "markdown":
		md, mdErr := s.svc.Markdown(ctx, id)
		if mdErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultText(md), nil
	case "json":
		detail, getErr := s.svc.GetDocument(ctx, id)
		if getErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		out, _ := json.MarshalIndent(detail.Document, "", "  ")
		return mcp.NewToolResultText(string(out)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format: %s", format)), nil
	}
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.CreateDocument(ctx, &models.Document{Title: title})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", detail.Document.ID)), nil
}

func (s *Server) applyOperation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("operation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var decoded struct {
		Op     string     `json:"op"`
		ItemID string     `json:"itemId"`
		Params ops.Params `json:"params"`
	}
	if jsonErr := json.Unmarshal([]byte(raw), &decoded); jsonErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid operation JSON: %v", jsonErr)), nil
	}
	op, err := ops.New(ops.Kind(decoded.Op), decoded.ItemID, decoded.Params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid operation: %s", decoded.Op)), nil
	}
	op.PageID = id

	res, err := s.svc.ApplyOperation(ctx, op)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res.Op, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) undoLast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	op, err := s.svc.Undo(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if op == nil {
		return mcp.NewToolResultText("nothing to undo"), nil
	}
	out, _ := json.MarshalIndent(op, "", "  ")
	return mcp.NewToolResultText("undone: " + string(out)), nil
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches found"), nil
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", r.DocID, r.DocTitle, r.ItemID, r.Snippet)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "tavle://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
