// Package errors provides the structured error taxonomy shared by the host
// and the provider. Every error carries a JSON-RPC code so it survives the
// trip across the channel, plus a category used for handling decisions.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Category groups errors by how a caller should react to them.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryTransport  Category = "transport"
	CategoryProtocol   Category = "protocol"
	CategoryHandler    Category = "handler"
	CategoryTemplate   Category = "template"
	CategoryUpstream   Category = "upstream"
	CategoryStorage    Category = "storage"
	CategoryInternal   Category = "internal"
	CategoryTimeout    Category = "timeout"
	CategoryCancelled  Category = "cancelled"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context records where an error was raised.
type Context struct {
	RequestID string    `json:"request_id,omitempty"`
	Method    string    `json:"method,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
}

// MCPError is implemented by every error this module raises. The With*
// methods return modified copies; the receiver is never changed.
type MCPError interface {
	error

	// Code is the JSON-RPC error code sent over the wire.
	Code() int
	Message() string
	// Details accumulates "; "-separated specifics added with WithDetail.
	Details() string
	// Data is the structured payload sent as the JSON-RPC error data.
	Data() interface{}
	Category() Category
	Severity() Severity
	Context() *Context
	Unwrap() error

	WithContext(ctx *Context) MCPError
	WithDetail(detail string) MCPError
	WithData(data interface{}) MCPError
}

type codedError struct {
	code     int
	message  string
	details  []string
	data     interface{}
	category Category
	severity Severity
	ctx      *Context
	cause    error
}

func (e *codedError) Error() string {
	if len(e.details) == 0 {
		return e.message
	}
	return e.message + ": " + e.Details()
}

func (e *codedError) Code() int          { return e.code }
func (e *codedError) Message() string    { return e.message }
func (e *codedError) Details() string    { return strings.Join(e.details, "; ") }
func (e *codedError) Data() interface{}  { return e.data }
func (e *codedError) Category() Category { return e.category }
func (e *codedError) Severity() Severity { return e.severity }
func (e *codedError) Context() *Context  { return e.ctx }
func (e *codedError) Unwrap() error      { return e.cause }

func (e *codedError) clone() *codedError {
	c := *e
	c.details = append([]string(nil), e.details...)
	return &c
}

// WithContext stamps a zero Timestamp with the current time.
func (e *codedError) WithContext(ctx *Context) MCPError {
	c := e.clone()
	if ctx != nil && ctx.Timestamp.IsZero() {
		stamped := *ctx
		stamped.Timestamp = time.Now()
		ctx = &stamped
	}
	c.ctx = ctx
	return c
}

func (e *codedError) WithDetail(detail string) MCPError {
	c := e.clone()
	c.details = append(c.details, detail)
	return c
}

func (e *codedError) WithData(data interface{}) MCPError {
	c := e.clone()
	c.data = data
	return c
}

// Is reports a match for any MCPError with the same code, which is what
// lets errors.Is(err, ErrConnectionClosed) work across wrapping and across
// the wire.
func (e *codedError) Is(target error) bool {
	t, ok := target.(MCPError)
	return ok && t.Code() == e.code
}

type errorJSON struct {
	Code     int         `json:"code"`
	Message  string      `json:"message"`
	Category Category    `json:"category"`
	Severity Severity    `json:"severity"`
	Details  string      `json:"details,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Context  *Context    `json:"context,omitempty"`
	Cause    string      `json:"cause,omitempty"`
}

func (e *codedError) wire() errorJSON {
	out := errorJSON{
		Code:     e.code,
		Message:  e.message,
		Category: e.category,
		Severity: e.severity,
		Details:  e.Details(),
		Data:     e.data,
		Context:  e.ctx,
	}
	if e.cause != nil {
		out.Cause = e.cause.Error()
	}
	return out
}

func (e *codedError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// NewError builds an MCPError stamped with the current time.
func NewError(code int, message string, category Category, severity Severity) MCPError {
	return WrapError(nil, code, message, category, severity)
}

func NewErrorf(code int, category Category, severity Severity, format string, args ...interface{}) MCPError {
	return NewError(code, fmt.Sprintf(format, args...), category, severity)
}

// WrapError is NewError with a cause reachable through Unwrap.
func WrapError(err error, code int, message string, category Category, severity Severity) MCPError {
	return &codedError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		ctx:      &Context{Timestamp: time.Now()},
	}
}

// AsMCPError finds the first MCPError in err's chain.
func AsMCPError(err error) (MCPError, bool) {
	var mcpErr MCPError
	if err == nil || !stderrors.As(err, &mcpErr) {
		return nil, false
	}
	return mcpErr, true
}

func IsCategory(err error, category Category) bool {
	mcpErr, ok := AsMCPError(err)
	return ok && mcpErr.Category() == category
}

func IsCode(err error, code int) bool {
	mcpErr, ok := AsMCPError(err)
	return ok && mcpErr.Code() == code
}
