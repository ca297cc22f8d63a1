package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/ops"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	sync   *ops.Synchronizer
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sync *ops.Synchronizer, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{sync: sync, logger: logger}
}

// Request types for each tool

// ListRequest represents the arguments for routine_list.
type ListRequest struct {
	NamesOnly bool `json:"names_only,omitempty"`
}

// GetRequest represents the arguments for routine_get.
type GetRequest struct {
	Name   string `json:"name"`
	Format string `json:"format,omitempty"`
}

// SaveRequest represents the arguments for routine_save and routine_validate.
type SaveRequest struct {
	Nickname     string `json:"nickname"`
	Intents      string `json:"intents"`
	PreviousName string `json:"previous_name,omitempty"`
}

// DeleteRequest represents the arguments for routine_delete.
type DeleteRequest struct {
	Name string `json:"name"`
}

// ParseRequest represents the arguments for routine_parse.
type ParseRequest struct {
	Utterance     string `json:"utterance"`
	AllowFallback bool   `json:"allow_fallback,omitempty"`
}

// ListOutput is the result of routine_list.
type ListOutput struct {
	Names    []string                      `json:"names"`
	Routines map[string]routine.Definition `json:"routines,omitempty"`
}

// ParseOutput is the result of routine_parse.
type ParseOutput struct {
	Parsed  bool                   `json:"parsed"`
	Context *routine.IntentContext `json:"context,omitempty"`
}

// HandleList handles the routine_list tool.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out := ListOutput{Names: h.sync.Cache().Names()}
	if !input.NamesOnly {
		out.Routines = h.sync.Snapshot()
	}
	return successResult(out)
}

// HandleGet handles the routine_get tool.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return errorResult(errors.NewInvalidRequest("name is required")), nil
	}

	def, ok := h.sync.Cache().Get(name)
	if !ok {
		return errorResult(errors.NewNotFound(name)), nil
	}

	switch input.Format {
	case "", "json":
		return successResult(def)
	case "draft":
		return successResult(routine.DraftFromDefinition(def))
	case "markdown":
		return mcp.NewToolResultText(routine.Markdown(def)), nil
	default:
		return errorResult(errors.NewInvalidRequest("format must be json, draft or markdown")), nil
	}
}

// HandleSave handles the routine_save tool.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := h.sync.UpdateNickname(ctx, &routine.Draft{Nickname: input.Nickname, Intents: input.Intents}, input.PreviousName)
	if err != nil {
		return errorResult(err), nil
	}
	if !out.Allowed {
		return rejectionResult(out), nil
	}
	return successResult(out)
}

// HandleDelete handles the routine_delete tool.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Name) == "" {
		return errorResult(errors.NewInvalidRequest("name is required")), nil
	}

	out, err := h.sync.UpdateNickname(ctx, nil, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleValidate handles the routine_validate tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := h.sync.Validate(ctx, routine.Draft{Nickname: input.Nickname, Intents: input.Intents}, input.PreviousName)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleParse handles the routine_parse tool.
func (h *Handlers) HandleParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ParseRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	utterance := strings.TrimSpace(input.Utterance)
	if utterance == "" {
		return errorResult(errors.NewInvalidRequest("utterance is required")), nil
	}

	ic, err := h.sync.Parser().Parse(ctx, protocol.ParseUtterance{
		Utterance:       utterance,
		DisableFallback: !input.AllowFallback,
	})
	if err != nil {
		h.logger.Error("parse failed", zap.String("utterance", utterance), zap.Error(err))
		return errorResult(errors.NewInterpreterUnavailable(err)), nil
	}
	return successResult(ParseOutput{Parsed: ic != nil, Context: ic})
}

// errorResult creates an error result with structured error info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if rErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    rErr.Code,
			"message": rErr.Message,
			"status":  rErr.Status,
		}
		// Internal details may carry SQL errors or file paths
		if rErr.Code != errors.ErrInternal && rErr.Details != nil {
			errorObj["details"] = rErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// rejectionResult reports a draft that failed validation.
func rejectionResult(out *ops.UpdateOutput) *mcp.CallToolResult {
	content, _ := json.Marshal(out)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates a success result with JSON data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
