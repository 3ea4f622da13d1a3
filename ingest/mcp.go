package ingest

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/folioworks/folio/idgen"
	"github.com/folioworks/folio/store"
)

// mcpVersion is reported in the MCP handshake.
const mcpVersion = "0.1.0"

// NewMCPServer builds an MCP server exposing the corpus to agent clients:
// queue an ingestion, check a book's status, and search chapters.
func (svc *Service) NewMCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "folio", Version: mcpVersion}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "folio_ingest",
		Description: "Queue a PDF already on disk for ingestion into the chapter corpus",
	}, svc.mcpIngest)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "folio_status",
		Description: "Report a book's processing status and its chapters",
	}, svc.mcpStatus)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "folio_search",
		Description: "Full-text search over non-duplicate chapters",
	}, svc.mcpSearch)

	return srv
}

// IngestInput is the folio_ingest tool input.
type IngestInput struct {
	Path  string `json:"path" jsonschema:"absolute path of the PDF to ingest"`
	Title string `json:"title,omitempty" jsonschema:"optional title override"`
}

// IngestOutput is the folio_ingest tool output.
type IngestOutput struct {
	BookID string `json:"book_id"`
	Status string `json:"status"`
}

func (svc *Service) mcpIngest(ctx context.Context, _ *mcp.CallToolRequest, in IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	if in.Path == "" {
		return nil, IngestOutput{}, fmt.Errorf("path is required")
	}

	bookID := idgen.Prefixed("bk_", svc.newID)()
	book := &store.Book{
		ID:         bookID,
		Title:      in.Title,
		SourcePath: in.Path,
	}
	if err := svc.store.InsertBook(ctx, book); err != nil {
		return nil, IngestOutput{}, err
	}
	if err := svc.queue.Publish(ctx, idgen.Prefixed("job_", svc.newID)(), bookID); err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, IngestOutput{BookID: bookID, Status: store.StatusPending}, nil
}

// StatusInput is the folio_status tool input.
type StatusInput struct {
	BookID string `json:"book_id" jsonschema:"the book to inspect"`
}

// StatusOutput is the folio_status tool output.
type StatusOutput struct {
	Book     *store.Book      `json:"book"`
	Chapters []*store.Chapter `json:"chapters,omitempty"`
}

func (svc *Service) mcpStatus(ctx context.Context, _ *mcp.CallToolRequest, in StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	book, err := svc.store.GetBook(ctx, in.BookID)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	chapters, err := svc.store.ListChaptersByBook(ctx, in.BookID)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{Book: book, Chapters: chapters}, nil
}

// SearchInput is the folio_search tool input.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the full-text query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum hits to return (default 20)"`
}

// SearchOutput is the folio_search tool output.
type SearchOutput struct {
	Hits  []*store.SearchHit `json:"hits"`
	Count int                `json:"count"`
}

func (svc *Service) mcpSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	hits, err := svc.store.Search(ctx, in.Query, in.Limit, false)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	if hits == nil {
		hits = []*store.SearchHit{}
	}
	return nil, SearchOutput{Hits: hits, Count: len(hits)}, nil
}
