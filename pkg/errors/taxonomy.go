package errors

import (
	"fmt"
	"strings"
	"time"
)

// Sentinels for errors.Is. They match any error carrying the same code.
var (
	ErrConnectionClosed   = NewError(CodeConnectionClosed, "connection closed", CategoryTransport, SeverityError)
	ErrTimeout            = NewError(CodeOperationTimeout, "request timed out", CategoryTimeout, SeverityError)
	ErrCapabilityNotFound = NewError(CodeCapabilityNotFound, "capability not found", CategoryNotFound, SeverityError)
	ErrRecordNotFound     = NewError(CodeRecordNotFound, "record not found", CategoryNotFound, SeverityWarning)
	ErrMaxIterations      = NewError(CodeMaxIterations, "iteration limit reached", CategoryInternal, SeverityWarning)
)

// CapabilityErrorData identifies the capability a caller asked for.
type CapabilityErrorData struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// TemplateErrorData contains structured data for template failures
type TemplateErrorData struct {
	Template     string   `json:"template"`
	Placeholders []string `json:"placeholders,omitempty"`
	Position     int      `json:"position,omitempty"`
}

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport string `json:"transport"`
	Operation string `json:"operation,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// TransportError reports a broken channel. It is fatal to the session.
func TransportError(transport, operation string, cause error) MCPError {
	message := fmt.Sprintf("%s transport error", transport)
	if operation != "" {
		message = fmt.Sprintf("%s transport error during %s", transport, operation)
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
		message = fmt.Sprintf("%s: %s", message, reason)
	}

	return WrapError(cause, CodeTransportError, message, CategoryTransport, SeverityCritical).
		WithData(&TransportErrorData{
			Transport: transport,
			Operation: operation,
			Reason:    reason,
		})
}

// ConnectionClosed resolves requests still pending when a connection ends.
func ConnectionClosed(method string, cause error) MCPError {
	msg := fmt.Sprintf("connection closed before %s completed", method)
	return WrapError(cause, CodeConnectionClosed, msg, CategoryTransport, SeverityError).
		WithContext(&Context{Method: method})
}

// RequestTimeout reports a request whose response did not arrive in time.
func RequestTimeout(method, requestID string, timeout time.Duration) MCPError {
	return NewError(
		CodeOperationTimeout,
		fmt.Sprintf("%s timed out after %s", method, timeout),
		CategoryTimeout,
		SeverityError,
	).WithContext(&Context{Method: method, RequestID: requestID})
}

// OperationCancelled reports a request abandoned by its caller.
func OperationCancelled(method string, cause error) MCPError {
	return WrapError(cause, CodeOperationCancelled, fmt.Sprintf("%s cancelled", method), CategoryCancelled, SeverityInfo)
}

// ProtocolError reports a message that cannot be processed.
func ProtocolError(format string, args ...interface{}) MCPError {
	return NewErrorf(CodeProtocolError, CategoryProtocol, SeverityError, format, args...)
}

// UnknownResponse reports a response whose id matches no pending request.
func UnknownResponse(requestID string) MCPError {
	return NewError(
		CodeUnknownResponse,
		fmt.Sprintf("response for unknown request %q", requestID),
		CategoryProtocol,
		SeverityWarning,
	).WithContext(&Context{RequestID: requestID})
}

// MethodNotFound is returned for requests nobody registered a handler for.
func MethodNotFound(method string) MCPError {
	return NewError(
		CodeMethodNotFound,
		fmt.Sprintf("Method not found: %s", method),
		CategoryProtocol,
		SeverityError,
	).WithContext(&Context{Method: method})
}

// InvalidParams reports undecodable or malformed request parameters.
func InvalidParams(method string, cause error) MCPError {
	msg := "Invalid method parameters"
	if cause != nil {
		msg = fmt.Sprintf("Invalid method parameters: %s", cause.Error())
	}
	return WrapError(cause, CodeInvalidParams, msg, CategoryValidation, SeverityError).
		WithContext(&Context{Method: method})
}

// MissingParameters reports required parameters that were not supplied.
func MissingParameters(capability string, names []string) MCPError {
	return NewError(
		CodeMissingParameter,
		fmt.Sprintf("%s: missing required parameters: %s", capability, strings.Join(names, ", ")),
		CategoryValidation,
		SeverityError,
	).WithData(map[string]interface{}{"missing": names})
}

// CapabilityNotFound reports an unknown tool or prompt name.
func CapabilityNotFound(kind, name string) MCPError {
	return NewError(
		CodeCapabilityNotFound,
		fmt.Sprintf("%s %q not found", kind, name),
		CategoryNotFound,
		SeverityError,
	).WithData(&CapabilityErrorData{Kind: kind, Name: name})
}

// ResourceNotFound reports a URI that matches no resource or template.
func ResourceNotFound(uri string) MCPError {
	return NewError(
		CodeResourceNotFound,
		fmt.Sprintf("Resource at URI '%s' not found", uri),
		CategoryNotFound,
		SeverityError,
	).WithData(&CapabilityErrorData{Kind: "resource", Name: uri})
}

// DuplicateName rejects a second registration under the same key.
func DuplicateName(kind, name string) MCPError {
	return NewError(
		CodeDuplicateName,
		fmt.Sprintf("%s %q already registered", kind, name),
		CategoryValidation,
		SeverityError,
	)
}

// HandlerFailed wraps a failure raised by a capability handler.
func HandlerFailed(kind, name string, cause error) MCPError {
	msg := fmt.Sprintf("%s %q failed", kind, name)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return WrapError(cause, CodeHandlerFailed, msg, CategoryHandler, SeverityError).
		WithData(&CapabilityErrorData{Kind: kind, Name: name})
}

// TemplateMalformed reports unbalanced, nested or empty braces.
func TemplateMalformed(template string, position int, reason string) MCPError {
	return NewError(
		CodeTemplateMalformed,
		fmt.Sprintf("malformed URI template %q at %d: %s", template, position, reason),
		CategoryTemplate,
		SeverityError,
	).WithData(&TemplateErrorData{Template: template, Position: position})
}

// TemplateUnresolved reports placeholders left without a value.
func TemplateUnresolved(template string, placeholders []string) MCPError {
	return NewError(
		CodeTemplateUnresolved,
		fmt.Sprintf("URI %q has unresolved placeholders: %s", template, strings.Join(placeholders, ", ")),
		CategoryTemplate,
		SeverityError,
	).WithData(&TemplateErrorData{Template: template, Placeholders: placeholders})
}

// UpstreamModelError wraps a failure reported by the language model.
func UpstreamModelError(operation string, cause error) MCPError {
	msg := fmt.Sprintf("model call failed during %s", operation)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return WrapError(cause, CodeUpstreamModel, msg, CategoryUpstream, SeverityError).
		WithContext(&Context{Operation: operation})
}

// ContentMismatch reports a model reply of the wrong content type.
func ContentMismatch(expected, got string) MCPError {
	return NewError(
		CodeContentMismatch,
		fmt.Sprintf("expected %s content, got %s", expected, got),
		CategoryUpstream,
		SeverityError,
	)
}

// RecordNotFound reports a lookup by id that found nothing.
func RecordNotFound(id int) MCPError {
	return NewError(
		CodeRecordNotFound,
		fmt.Sprintf("record %d not found", id),
		CategoryNotFound,
		SeverityWarning,
	).WithData(map[string]interface{}{"id": id})
}

// StorageError wraps a record store failure.
func StorageError(operation string, cause error) MCPError {
	msg := fmt.Sprintf("record store %s failed", operation)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return WrapError(cause, CodeStorageError, msg, CategoryStorage, SeverityError).
		WithContext(&Context{Component: "store", Operation: operation})
}

// MaxIterations stops an agent run that kept asking for tools.
func MaxIterations(limit int) MCPError {
	return NewError(
		CodeMaxIterations,
		fmt.Sprintf("agent stopped after %d iterations without a final answer", limit),
		CategoryInternal,
		SeverityWarning,
	)
}
