package errors

// JSON-RPC 2.0 Standard Error Codes
const (
	CodeParseError     int = -32700
	CodeInvalidRequest int = -32600
	CodeMethodNotFound int = -32601
	CodeInvalidParams  int = -32602
	CodeInternalError  int = -32603
)

// Application error codes. The ranges follow the JSON-RPC reserved
// server-error block.
const (
	// Capability errors (-32200 to -32299)
	CodeCapabilityNotFound int = -32200
	CodeResourceNotFound   int = -32201
	CodeRecordNotFound     int = -32202
	CodeDuplicateName      int = -32203

	// Operation errors (-32300 to -32399)
	CodeOperationCancelled int = -32300
	CodeOperationTimeout   int = -32301
	CodeHandlerFailed      int = -32302
	CodeMaxIterations      int = -32303

	// Template errors (-32400 to -32499)
	CodeTemplateMalformed  int = -32400
	CodeTemplateUnresolved int = -32401

	// Transport errors (-32500 to -32599)
	CodeTransportError   int = -32500
	CodeConnectionClosed int = -32502

	// Upstream model errors (-32650 to -32699)
	CodeUpstreamModel   int = -32650
	CodeContentMismatch int = -32651

	// Validation errors (-32750 to -32799)
	CodeMissingParameter int = -32751
	CodeInvalidParameter int = -32752

	// Storage errors (-32800 to -32849)
	CodeStorageError int = -32800

	// Protocol errors (-32900 to -32999)
	CodeProtocolError   int = -32900
	CodeUnknownResponse int = -32901
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

var errorCodeRegistry = map[int]ErrorCodeInfo{
	CodeParseError:     {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryValidation, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", "Internal JSON-RPC error", CategoryInternal, SeverityError},

	CodeCapabilityNotFound: {CodeCapabilityNotFound, "CapabilityNotFound", "Capability not registered", CategoryNotFound, SeverityError},
	CodeResourceNotFound:   {CodeResourceNotFound, "ResourceNotFound", "No resource matches the URI", CategoryNotFound, SeverityError},
	CodeRecordNotFound:     {CodeRecordNotFound, "RecordNotFound", "Record not found", CategoryNotFound, SeverityWarning},
	CodeDuplicateName:      {CodeDuplicateName, "DuplicateName", "Capability name already registered", CategoryValidation, SeverityError},

	CodeOperationCancelled: {CodeOperationCancelled, "OperationCancelled", "Operation cancelled", CategoryCancelled, SeverityInfo},
	CodeOperationTimeout:   {CodeOperationTimeout, "OperationTimeout", "Operation timed out", CategoryTimeout, SeverityError},
	CodeHandlerFailed:      {CodeHandlerFailed, "HandlerFailed", "Capability handler failed", CategoryHandler, SeverityError},
	CodeMaxIterations:      {CodeMaxIterations, "MaxIterations", "Iteration limit reached", CategoryInternal, SeverityWarning},

	CodeTemplateMalformed:  {CodeTemplateMalformed, "TemplateMalformed", "URI template is malformed", CategoryTemplate, SeverityError},
	CodeTemplateUnresolved: {CodeTemplateUnresolved, "TemplateUnresolved", "URI template has unresolved placeholders", CategoryTemplate, SeverityError},

	CodeTransportError:   {CodeTransportError, "TransportError", "Transport error", CategoryTransport, SeverityCritical},
	CodeConnectionClosed: {CodeConnectionClosed, "ConnectionClosed", "Connection closed", CategoryTransport, SeverityError},

	CodeUpstreamModel:   {CodeUpstreamModel, "UpstreamModelError", "Language model call failed", CategoryUpstream, SeverityError},
	CodeContentMismatch: {CodeContentMismatch, "ContentMismatch", "Unexpected content type", CategoryUpstream, SeverityError},

	CodeMissingParameter: {CodeMissingParameter, "MissingParameter", "Required parameter missing", CategoryValidation, SeverityError},
	CodeInvalidParameter: {CodeInvalidParameter, "InvalidParameter", "Invalid parameter value", CategoryValidation, SeverityError},

	CodeStorageError: {CodeStorageError, "StorageError", "Record store failure", CategoryStorage, SeverityError},

	CodeProtocolError:   {CodeProtocolError, "ProtocolError", "Protocol error", CategoryProtocol, SeverityError},
	CodeUnknownResponse: {CodeUnknownResponse, "UnknownResponse", "Response for unknown request id", CategoryProtocol, SeverityWarning},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// GetErrorCodeCategory returns the category of an error code
func GetErrorCodeCategory(code int) Category {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Category
	}
	return CategoryInternal
}

// GetErrorCodeSeverity returns the severity of an error code
func GetErrorCodeSeverity(code int) Severity {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Severity
	}
	return SeverityError
}
