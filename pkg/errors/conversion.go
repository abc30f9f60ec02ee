package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
)

// ToJSONRPCResponse converts any error to a JSON-RPC response
func ToJSONRPCResponse(err error, requestID interface{}) *protocol.Response {
	jerr := ToJSONRPCError(err)
	return protocol.NewErrorResponse(requestID, jerr.Code, jerr.Message, jerr.Data)
}

// ToJSONRPCError converts any error to a JSON-RPC error object. Plain Go
// errors are classified by ConvertStandardError first, so a handler that
// returns ctx.Err() still reports a timeout or cancellation code.
func ToJSONRPCError(err error) *protocol.Error {
	if err == nil {
		return nil
	}

	mcpErr := ConvertStandardError(err)
	return &protocol.Error{
		Code:    mcpErr.Code(),
		Message: mcpErr.Error(),
		Data:    mcpErr.Data(),
	}
}

// FromJSONRPCError converts a JSON-RPC error to an MCPError
func FromJSONRPCError(jsonrpcErr *protocol.Error) MCPError {
	if jsonrpcErr == nil {
		return nil
	}

	category := GetErrorCodeCategory(jsonrpcErr.Code)
	severity := GetErrorCodeSeverity(jsonrpcErr.Code)

	err := NewError(jsonrpcErr.Code, jsonrpcErr.Message, category, severity)
	if jsonrpcErr.Data != nil {
		err = err.WithData(jsonrpcErr.Data)
	}

	return err
}

// ConvertStandardError maps common Go errors to the taxonomy.
func ConvertStandardError(err error) MCPError {
	if err == nil {
		return nil
	}

	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return OperationCancelled("request", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return WrapError(err, CodeOperationTimeout, "request deadline exceeded", CategoryTimeout, SeverityError)
	}

	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return WrapError(err, CodeParseError, "Invalid JSON", CategoryProtocol, SeverityError).WithDetail(err.Error())
	}
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return WrapError(err, CodeInvalidParams, fmt.Sprintf("Invalid parameter type for %s", typeErr.Field), CategoryValidation, SeverityError)
	}

	return WrapError(err, CodeInternalError, "Internal error", CategoryInternal, SeverityError).WithDetail(err.Error())
}

// IsFatal reports whether err should end the session.
func IsFatal(err error) bool {
	return IsCode(err, CodeTransportError)
}
