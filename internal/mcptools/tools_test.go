package mcptools

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"hint-agent/internal/usecase"
)

type stubService struct {
	out      usecase.TurnOutput
	err      error
	in       usecase.TurnInput
	removed  bool
	clearErr error
	cleared  string
}

func (s *stubService) SubmitTurn(_ context.Context, in usecase.TurnInput) (usecase.TurnOutput, error) {
	s.in = in
	return s.out, s.err
}

func (s *stubService) ClearSession(_ context.Context, id string) (bool, error) {
	s.cleared = id
	return s.removed, s.clearErr
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestAskTool_Definition(t *testing.T) {
	def := NewAskTool(&stubService{}).Definition()
	require.Equal(t, "ask_hint", def.Name)
	require.Contains(t, def.InputSchema.Properties, "message")
	require.Contains(t, def.InputSchema.Properties, "session_id")
	require.Equal(t, []string{"message"}, def.InputSchema.Required)
}

func TestAskTool_Handle(t *testing.T) {
	svc := &stubService{out: usecase.TurnOutput{Text: "Hint (Level 1): Check the bar.", SessionID: "s-1"}}
	res, err := NewAskTool(svc).Handle(context.Background(), makeReq(map[string]interface{}{
		"message":    "Where is the bus token?",
		"session_id": "s-1",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, usecase.TurnInput{SessionID: "s-1", Text: "Where is the bus token?"}, svc.in)
	require.Contains(t, resultText(res), "Hint (Level 1): Check the bar.")
	require.Contains(t, resultText(res), "session_id: s-1")
}

func TestAskTool_Errors(t *testing.T) {
	res, err := NewAskTool(&stubService{}).Handle(context.Background(), makeReq(map[string]interface{}{}))
	require.NoError(t, err)
	require.True(t, res.IsError)

	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "invalid", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "message_too_long"}, want: "message_too_long"},
		{name: "limit", err: &usecase.Error{Code: usecase.ErrorSessionLimit, Reason: "max_sessions_reached"}, want: "too many active sessions"},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "session_store_error", Err: errors.New("table missing")}, want: "internal error"},
		{name: "plain", err: errors.New("boom"), want: "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{err: tc.err}
			res, err := NewAskTool(svc).Handle(context.Background(), makeReq(map[string]interface{}{"message": "hi"}))
			require.NoError(t, err)
			require.True(t, res.IsError)
			require.Contains(t, resultText(res), tc.want)
			require.NotContains(t, resultText(res), "table missing")
		})
	}
}

func TestClearTool_Handle(t *testing.T) {
	svc := &stubService{removed: true}
	tool := NewClearTool(svc)
	require.Equal(t, "clear_session", tool.Definition().Name)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": "s-1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "s-1", svc.cleared)
	require.Contains(t, resultText(res), "cleared")

	svc.removed = false
	res, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": "s-2"}))
	require.NoError(t, err)
	require.Contains(t, resultText(res), "No session s-2")

	res, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	require.NoError(t, err)
	require.True(t, res.IsError)

	svc.clearErr = &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_session_id"}
	res, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": "bad id"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, resultText(res), "invalid_session_id")
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := NewServer(&stubService{}, "test")
	tools := s.ListTools()
	require.Contains(t, tools, "ask_hint")
	require.Contains(t, tools, "clear_session")
}
