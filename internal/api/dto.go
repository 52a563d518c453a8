package api

import (
	"github.com/mjelva/tavle/internal/docservice"
	"github.com/mjelva/tavle/internal/index"
	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
)

// DocumentDetail is the full document response type (aliased from the
// domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.DocumentMetadata `json:"documents"`
	Total     int                       `json:"total"`
}

// OperationRequest is the request body for applying a semantic operation.
type OperationRequest struct {
	Op     string     `json:"op" example:"setText"`
	ItemID string     `json:"itemId,omitempty" example:"550e8400-..."`
	Params ops.Params `json:"params"`
}

// OperationResponse wraps an applied (or replayed) operation together with
// the document's refreshed state.
type OperationResponse struct {
	Op       *ops.Operation  `json:"op,omitempty"`
	Document *DocumentDetail `json:"document"`
}

// ViewResponse carries one view projection's current data.
type ViewResponse struct {
	View string `json:"view" example:"board"`
	Data any    `json:"data"`
}

// MarkdownPutRequest is the request body for a markdown write-back.
type MarkdownPutRequest struct {
	ViewID   string `json:"viewId" example:"markdown-pane"`
	Markdown string `json:"markdown"`
}

// MarkdownPutResponse reports how the markdown edit was absorbed.
type MarkdownPutResponse struct {
	Applied  int              `json:"applied"`
	Ops      []*ops.Operation `json:"ops,omitempty"`
	Fallback bool             `json:"fallback"`
}

// AuthorityPutRequest is the request body for changing a view's authority.
type AuthorityPutRequest struct {
	ViewID string `json:"viewId" example:"markdown-pane"`
	Mode   string `json:"mode" example:"MARKDOWN_SOURCE"`
}

// SearchResponse wraps item-level search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"photo.png"`
	Size     int64  `json:"size" example:"12345"`
	URL      string `json:"url" example:"/attachments/photo.png"`
}
