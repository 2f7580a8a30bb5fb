// Package mcptools exposes the hint engine as MCP tools.
package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"hint-agent/internal/usecase"
)

// HintService is the part of usecase.HintService the tools call.
type HintService interface {
	SubmitTurn(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
	ClearSession(ctx context.Context, sessionID string) (bool, error)
}

// NewServer registers ask_hint and clear_session on a new MCP server.
func NewServer(svc HintService, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"hint-agent",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Ask adventure-game questions with ask_hint. Reuse the returned session_id "+
			"to get progressively more detailed hints for the same question."),
	)

	askTool := NewAskTool(svc)
	s.AddTool(askTool.Definition(), askTool.Handle)

	clearTool := NewClearTool(svc)
	s.AddTool(clearTool.Definition(), clearTool.Handle)

	return s
}

// AskTool handles the ask_hint MCP tool.
type AskTool struct {
	svc HintService
}

func NewAskTool(svc HintService) *AskTool {
	return &AskTool{svc: svc}
}

func (t *AskTool) Definition() mcp.Tool {
	return mcp.NewTool("ask_hint",
		mcp.WithDescription("Ask the in-game assistant for a hint. Asking the same question again in the "+
			"same session escalates to a more detailed hint."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The player's question"),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation to continue; omit to start a new one"),
		),
	)
}

func (t *AskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := req.GetString("message", "")
	if message == "" {
		return mcp.NewToolResultError("'message' is required"), nil
	}

	out, err := t.svc.SubmitTurn(ctx, usecase.TurnInput{
		SessionID: req.GetString("session_id", ""),
		Text:      message,
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\nsession_id: %s", out.Text, out.SessionID)), nil
}

// ClearTool handles the clear_session MCP tool.
type ClearTool struct {
	svc HintService
}

func NewClearTool(svc HintService) *ClearTool {
	return &ClearTool{svc: svc}
}

func (t *ClearTool) Definition() mcp.Tool {
	return mcp.NewTool("clear_session",
		mcp.WithDescription("Forget a conversation so its hint levels start over."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Conversation to clear"),
		),
	)
}

func (t *ClearTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	removed, err := t.svc.ClearSession(ctx, sessionID)
	if err != nil {
		return toolError(err), nil
	}
	if !removed {
		return mcp.NewToolResultText(fmt.Sprintf("No session %s to clear.", sessionID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s cleared.", sessionID)), nil
}

// toolError exposes the reason of input errors only.
func toolError(err error) *mcp.CallToolResult {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		switch ucErr.Code {
		case usecase.ErrorInvalidInput:
			return mcp.NewToolResultError("invalid input: " + ucErr.Reason)
		case usecase.ErrorSessionLimit:
			return mcp.NewToolResultError("too many active sessions, try again later")
		}
	}
	return mcp.NewToolResultError("internal error")
}
