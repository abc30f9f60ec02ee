package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("req-1", MethodListTools, nil)
	require.NoError(t, err)
	assert.Equal(t, JSONRPCVersion, req.JSONRPC)
	assert.Equal(t, "req-1", req.ID)
	assert.Empty(t, req.Params)

	req, err = NewRequest("req-2", MethodCallTool, CallToolParams{
		Name:      "create-user",
		Arguments: map[string]interface{}{"name": "Ada"},
	})
	require.NoError(t, err)

	var params CallToolParams
	require.NoError(t, json.Unmarshal(req.Params, &params))
	assert.Equal(t, "create-user", params.Name)
	assert.Equal(t, "Ada", params.Arguments["name"])
}

func TestNewResponse_AlwaysCarriesResult(t *testing.T) {
	resp, err := NewResponse("r", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(resp.Result))

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, KindResponse, msg.Kind())
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(3, MethodNotFound, "no such method", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Error(), "no such method")
	assert.Nil(t, resp.Result)
}

func TestMessageKind(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want MessageKind
	}{
		{"request", `{"jsonrpc":"2.0","id":"a","method":"ping"}`, KindRequest},
		{"numeric id request", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"log"}`, KindNotification},
		{"success", `{"jsonrpc":"2.0","id":"a","result":{}}`, KindResponse},
		{"failure", `{"jsonrpc":"2.0","id":"a","error":{"code":-32601,"message":"x"}}`, KindResponse},
		{"wrong version", `{"jsonrpc":"1.0","id":"a","method":"ping"}`, KindInvalid},
		{"empty", `{"jsonrpc":"2.0"}`, KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Kind())
		})
	}
}

func TestParseMessage_Malformed(t *testing.T) {
	_, err := ParseMessage([]byte(`{"jsonrpc":`))
	assert.Error(t, err)
}

func TestIDKey(t *testing.T) {
	assert.Equal(t, "abc", IDKey("abc"))
	assert.Equal(t, "7", IDKey(7))
	assert.Equal(t, "7", IDKey(float64(7)))
	assert.Equal(t, "7.5", IDKey(7.5))

	// A numeric id that went over the wire matches the one we sent.
	msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","id":42,"result":{}}`))
	require.NoError(t, err)
	assert.Equal(t, IDKey(42), IDKey(msg.ID))
}

func TestInputSchema_PreservesDeclarationOrder(t *testing.T) {
	schema := NewInputSchema()
	schema.Add("zeta", Property{Type: "string"}, true).
		Add("alpha", Property{Type: "number", Description: "first letter"}, false).
		Add("mid", Property{Type: "boolean"}, true)

	data, err := json.Marshal(schema)
	require.NoError(t, err)

	var decoded InputSchema
	require.NoError(t, json.Unmarshal(data, &decoded))

	params := decoded.Params()
	require.Len(t, params, 3)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, []string{params[0].Name, params[1].Name, params[2].Name})
	assert.Equal(t, "number", params[1].Type)
	assert.Equal(t, "first letter", params[1].Description)
	assert.True(t, params[0].Required)
	assert.False(t, params[1].Required)
}

func TestInputSchema_MissingRequired(t *testing.T) {
	schema := NewInputSchema()
	schema.Add("name", Property{Type: "string"}, true).
		Add("email", Property{Type: "string"}, true).
		Add("nickname", Property{Type: "string"}, false)

	assert.Equal(t, []string{"email"}, schema.MissingRequired(map[string]interface{}{"name": "Ada"}))
	assert.Empty(t, schema.MissingRequired(map[string]interface{}{"name": "Ada", "email": "a@b.c"}))
}

func TestInputSchema_EmptyHasNoParams(t *testing.T) {
	var schema InputSchema
	assert.Empty(t, schema.Params())
	assert.Empty(t, schema.MissingRequired(nil))
}

func TestTool_DisplayName(t *testing.T) {
	assert.Equal(t, "Create User", Tool{Name: "create-user", Title: "Create User"}.DisplayName())
	assert.Equal(t, "Hinted", Tool{Name: "x", Annotations: &ToolAnnotations{Title: "Hinted"}}.DisplayName())
	assert.Equal(t, "x", Tool{Name: "x"}.DisplayName())
}

func TestCallToolResult_Text(t *testing.T) {
	res := &CallToolResult{Content: []Content{
		TextContent("one"),
		{Type: ContentTypeImage, Data: "..."},
		TextContent("two"),
	}}
	assert.Equal(t, "one\ntwo", res.Text())

	errRes := NewToolErrorResult("failed: %s", "boom")
	assert.True(t, errRes.IsError)
	assert.Equal(t, "failed: boom", errRes.Text())

	var nilRes *CallToolResult
	assert.Empty(t, nilRes.Text())
}

func TestPrompt_Params(t *testing.T) {
	p := Prompt{Name: "p", Arguments: []PromptArgument{
		{Name: "name", Required: true},
		{Name: "tone"},
	}}
	params := p.Params()
	require.Len(t, params, 2)
	assert.Equal(t, "name", params[0].Name)
	assert.Equal(t, "string", params[0].Type)
	assert.True(t, params[0].Required)
	assert.False(t, params[1].Required)
}
