package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/complaintops/copilot/internal/models"
	"github.com/complaintops/copilot/internal/redact"
	"github.com/complaintops/copilot/internal/retrieve"
	"github.com/complaintops/copilot/internal/review"
	"github.com/complaintops/copilot/internal/store"
	"github.com/complaintops/copilot/internal/triage"
)

// ReplyDrafter generates grounded reply drafts. *draft.Drafter
// implements it.
type ReplyDrafter interface {
	Generate(ctx context.Context, text, category, urgency string, snippets []models.Snippet) (*models.Draft, error)
}

// Server wraps the triage pipeline and exposes it as MCP tools.
type Server struct {
	store      store.Store
	masker     *redact.Masker
	classifier *triage.Classifier
	gate       *review.Gate
	retriever  *retrieve.Retriever
	drafter    ReplyDrafter
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, masker *redact.Masker, classifier *triage.Classifier, gate *review.Gate, retriever *retrieve.Retriever, drafter ReplyDrafter) *Server {
	return &Server{
		store:      s,
		masker:     masker,
		classifier: classifier,
		gate:       gate,
		retriever:  retriever,
		drafter:    drafter,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("copilot", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.maskTextTool())
	srv.AddTool(s.triageComplaintTool())
	srv.AddTool(s.searchSOPsTool())
	srv.AddTool(s.draftReplyTool())
	srv.AddTool(s.listReviewsTool())
	srv.AddTool(s.getReviewTool())
	srv.AddTool(s.resolveReviewTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func toolResultJSON(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// copilot_mask_text
func (s *Server) maskTextTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("copilot_mask_text",
		mcp.WithDescription("Redact PII (national id numbers, IBANs, phone numbers, emails, card numbers) from free text. Returns the masked text and the list of masked entity types."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw text to redact")),
	)
	return tool, s.handleMaskText
}

func (s *Server) handleMaskText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	res := s.masker.Mask(text)
	// Never return the original text over MCP.
	res.OriginalText = ""
	return toolResultJSON(res), nil
}

// copilot_triage_complaint
func (s *Server) triageComplaintTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("copilot_triage_complaint",
		mcp.WithDescription("Mask and classify a customer complaint. Returns category and urgency with confidences, plus the routing decision; low-confidence results open a pending review case and return its id."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw complaint text")),
	)
	return tool, s.handleTriageComplaint
}

func (s *Server) handleTriageComplaint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	masked := s.masker.Mask(text)
	triaged := s.classifier.Classify(masked.MaskedText)
	decision, err := s.gate.Route(ctx, masked.MaskedText, triaged)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to route complaint: %v", err)), nil
	}

	result := map[string]any{
		"masked_text":         masked.MaskedText,
		"masked_entities":     masked.MaskedEntities,
		"category":            triaged.Category,
		"category_confidence": triaged.CategoryConfidence,
		"urgency":             triaged.Urgency,
		"urgency_confidence":  triaged.UrgencyConfidence,
		"routing":             decision,
	}
	return toolResultJSON(result), nil
}

// copilot_search_sops
func (s *Server) searchSOPsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("copilot_search_sops",
		mcp.WithDescription("Search ingested SOP documents for passages relevant to a query. Returns up to the configured number of snippets with doc name, source, and chunk id."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query; PII is redacted before matching")),
		mcp.WithString("category", mcp.Description("Restrict matches to one complaint category")),
	)
	return tool, s.handleSearchSOPs
}

func (s *Server) handleSearchSOPs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	category := request.GetString("category", "")

	masked := s.masker.Mask(query)
	snippets, err := s.retriever.Retrieve(ctx, masked.MaskedText, category)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search sops: %v", err)), nil
	}
	return toolResultJSON(snippets), nil
}

// copilot_draft_reply
func (s *Server) draftReplyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("copilot_draft_reply",
		mcp.WithDescription("Run the full pipeline on a raw complaint: mask PII, classify, retrieve relevant SOP snippets, and generate an action plan with a customer reply draft. Low-confidence results also open a pending review case."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw complaint text")),
	)
	return tool, s.handleDraftReply
}

func (s *Server) handleDraftReply(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	masked := s.masker.Mask(text)
	triaged := s.classifier.Classify(masked.MaskedText)

	// Route before drafting: a low-confidence complaint gets its review
	// case even when retrieval or drafting fails afterwards.
	decision, err := s.gate.Route(ctx, masked.MaskedText, triaged)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to route complaint: %v", err)), nil
	}

	snippets, err := s.retriever.Retrieve(ctx, masked.MaskedText, string(triaged.Category))
	if err != nil {
		snippets = []models.Snippet{}
	}

	d, err := s.drafter.Generate(ctx, masked.MaskedText, string(triaged.Category), string(triaged.Urgency), snippets)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate draft: %v", err)), nil
	}

	result := map[string]any{
		"masked_text":         masked.MaskedText,
		"masked_entities":     masked.MaskedEntities,
		"category":            triaged.Category,
		"category_confidence": triaged.CategoryConfidence,
		"urgency":             triaged.Urgency,
		"urgency_confidence":  triaged.UrgencyConfidence,
		"snippets":            snippets,
		"draft":               d,
		"routing":             decision,
	}
	return toolResultJSON(result), nil
}

// copilot_list_reviews
func (s *Server) listReviewsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("copilot_list_reviews",
		mcp.WithDescription("List review cases, newest first. Returns a JSON array with id, status, category, urgency, confidences, and timestamps."),
		mcp.WithString("status", mcp.Description("Filter by status: PENDING_REVIEW, APPROVED, or REJECTED")),
	)
	return tool, s.handleListReviews
}

func (s *Server) handleListReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := strings.ToUpper(request.GetString("status", ""))
	if status != "" && !models.ReviewStatus(status).Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", status)), nil
	}

	reviews, err := s.store.ListReviews(ctx, store.ReviewListFilter{Status: models.ReviewStatus(status)})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reviews: %v", err)), nil
	}
	if reviews == nil {
		reviews = []*models.ReviewRecord{}
	}
	return toolResultJSON(reviews), nil
}

// copilot_get_review
func (s *Server) getReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("copilot_get_review",
		mcp.WithDescription("Get one review case by id, including its full audit trail."),
		mcp.WithString("review_id", mcp.Required(), mcp.Description("Review case id")),
	)
	return tool, s.handleGetReview
}

func (s *Server) handleGetReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("review_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: review_id"), nil
	}

	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review not found: %s", id)), nil
	}
	audit, err := s.store.ListAuditEntries(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load audit trail: %v", err)), nil
	}

	result := map[string]any{
		"review": r,
		"audit":  audit,
	}
	return toolResultJSON(result), nil
}

// copilot_resolve_review
func (s *Server) resolveReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("copilot_resolve_review",
		mcp.WithDescription("Resolve a pending review case. Decision is approve or reject; already-resolved cases are rejected with an error."),
		mcp.WithString("review_id", mcp.Required(), mcp.Description("Review case id")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("One of: approve, reject")),
		mcp.WithString("notes", mcp.Description("Reviewer notes recorded in the audit trail")),
	)
	return tool, s.handleResolveReview
}

func (s *Server) handleResolveReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("review_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: review_id"), nil
	}
	decision, err := request.RequireString("decision")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: decision"), nil
	}
	notes := request.GetString("notes", "")

	var status models.ReviewStatus
	switch strings.ToLower(decision) {
	case "approve":
		status = models.ReviewStatusApproved
	case "reject":
		status = models.ReviewStatusRejected
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid decision: %s (want approve or reject)", decision)), nil
	}

	r, err := s.gate.Resolve(ctx, id, status, notes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resolve review: %v", err)), nil
	}
	return toolResultJSON(r), nil
}
