package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      MCPError
		wantCode int
		wantCat  Category
	}{
		{"capability not found", CapabilityNotFound("tool", "nope"), CodeCapabilityNotFound, CategoryNotFound},
		{"resource not found", ResourceNotFound("users://9/x"), CodeResourceNotFound, CategoryNotFound},
		{"template malformed", TemplateMalformed("a{b", 1, "unbalanced"), CodeTemplateMalformed, CategoryTemplate},
		{"template unresolved", TemplateUnresolved("a{b}", []string{"b"}), CodeTemplateUnresolved, CategoryTemplate},
		{"upstream", UpstreamModelError("sampling", fmt.Errorf("quota")), CodeUpstreamModel, CategoryUpstream},
		{"timeout", RequestTimeout("ping", "1", time.Second), CodeOperationTimeout, CategoryTimeout},
		{"closed", ConnectionClosed("ping", nil), CodeConnectionClosed, CategoryTransport},
		{"transport", TransportError("stdio", "read", fmt.Errorf("eof")), CodeTransportError, CategoryTransport},
		{"handler", HandlerFailed("tool", "x", fmt.Errorf("boom")), CodeHandlerFailed, CategoryHandler},
		{"storage", StorageError("append", fmt.Errorf("disk full")), CodeStorageError, CategoryStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code())
			assert.Equal(t, tt.wantCat, tt.err.Category())
			assert.NotEmpty(t, tt.err.Error())
			assert.NotNil(t, tt.err.Context())
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("issuing call-tool: %w", ConnectionClosed("call-tool", nil))
	assert.True(t, stderrors.Is(err, ErrConnectionClosed))
	assert.False(t, stderrors.Is(err, ErrTimeout))

	assert.True(t, stderrors.Is(RequestTimeout("x", "1", time.Millisecond), ErrTimeout))
	assert.True(t, stderrors.Is(CapabilityNotFound("prompt", "p"), ErrCapabilityNotFound))
}

func TestAsMCPError_WalksChain(t *testing.T) {
	inner := RecordNotFound(4)
	wrapped := fmt.Errorf("lookup: %w", inner)

	got, ok := AsMCPError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeRecordNotFound, got.Code())

	_, ok = AsMCPError(fmt.Errorf("plain"))
	assert.False(t, ok)
	_, ok = AsMCPError(nil)
	assert.False(t, ok)
}

func TestWrapError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := StorageError("write", cause)
	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "root cause")
}

func TestWithDetailAndContext(t *testing.T) {
	base := ProtocolError("bad frame")
	withDetail := base.WithDetail("line 3").WithDetail("column 9")
	assert.Equal(t, "bad frame: line 3; column 9", withDetail.Error())
	assert.Empty(t, base.Details(), "original must be unchanged")

	withCtx := base.WithContext(&Context{Method: "call-tool"})
	assert.Equal(t, "call-tool", withCtx.Context().Method)
	assert.False(t, withCtx.Context().Timestamp.IsZero())
}

func TestJSONRPCConversion(t *testing.T) {
	original := CapabilityNotFound("tool", "missing")
	jerr := ToJSONRPCError(original)
	require.NotNil(t, jerr)
	assert.Equal(t, CodeCapabilityNotFound, jerr.Code)

	back := FromJSONRPCError(jerr)
	assert.Equal(t, CodeCapabilityNotFound, back.Code())
	assert.Equal(t, CategoryNotFound, back.Category())
	assert.True(t, stderrors.Is(back, ErrCapabilityNotFound))

	plain := ToJSONRPCError(fmt.Errorf("oops"))
	assert.Equal(t, CodeInternalError, plain.Code)
	assert.Equal(t, "Internal error: oops", plain.Message)

	deadline := ToJSONRPCError(fmt.Errorf("slow handler: %w", context.DeadlineExceeded))
	assert.Equal(t, CodeOperationTimeout, deadline.Code)
	cancelled := ToJSONRPCError(context.Canceled)
	assert.Equal(t, CodeOperationCancelled, cancelled.Code)

	assert.Nil(t, ToJSONRPCError(nil))
	assert.Nil(t, FromJSONRPCError(nil))

	resp := ToJSONRPCResponse(MethodNotFound("nope"), "id-1")
	assert.Equal(t, "id-1", resp.ID)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestConvertStandardError(t *testing.T) {
	assert.Equal(t, CodeOperationCancelled, ConvertStandardError(context.Canceled).Code())
	assert.Equal(t, CodeOperationTimeout, ConvertStandardError(fmt.Errorf("w: %w", context.DeadlineExceeded)).Code())

	var v struct{ N int }
	syntaxErr := json.Unmarshal([]byte("{"), &v)
	assert.Equal(t, CodeParseError, ConvertStandardError(syntaxErr).Code())

	typeErr := json.Unmarshal([]byte(`{"N":"x"}`), &v)
	assert.Equal(t, CodeInvalidParams, ConvertStandardError(typeErr).Code())

	assert.Equal(t, CodeInternalError, ConvertStandardError(fmt.Errorf("x")).Code())
	assert.Nil(t, ConvertStandardError(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(TransportError("stdio", "read", fmt.Errorf("broken pipe"))))
	assert.False(t, IsFatal(HandlerFailed("tool", "x", nil)))
	assert.False(t, IsFatal(fmt.Errorf("plain")))
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(MissingParameters("create-user", []string{"email"}))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(CodeMissingParameter), decoded["code"])
	assert.Equal(t, "validation", decoded["category"])
}

func TestCodeRegistry(t *testing.T) {
	info, ok := GetErrorCodeInfo(CodeTemplateMalformed)
	require.True(t, ok)
	assert.Equal(t, "TemplateMalformed", info.Name)
	assert.Equal(t, "UnknownError", GetErrorCodeName(12345))
	assert.Equal(t, CategoryInternal, GetErrorCodeCategory(12345))
}
