package capability

// Error codes produced by capability execution. Each code carries a fixed
// retryability; the runtime does not retry on its own, callers decide
// based on the Retryable flag.
const (
	CodeInvalidInput          = "invalid_input"
	CodeUnsupportedCapability = "unsupported_capability"
	CodePathOutsideVault      = "path_outside_vault"
	CodeMissingCredentials    = "missing_credentials"
	CodeInvalidToolArguments  = "invalid_tool_arguments"
	CodeRuntimeError          = "runtime_error"

	CodeTodoistTimeout        = "todoist_timeout"
	CodeTodoistTransportError = "todoist_transport_error"
	CodeTodoistAPIError       = "todoist_api_error"
	CodeTodoistInvalidJSON    = "todoist_invalid_json"
)

// Error is the structured failure payload of a capability call.
type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Result is the envelope for one capability execution. Exactly one of
// Data/Error is authoritative: Data when OK, Error otherwise.
type Result struct {
	Capability string         `json:"capability"`
	OK         bool           `json:"ok"`
	Data       map[string]any `json:"data,omitempty"`
	Error      *Error         `json:"error,omitempty"`
}

// Succeed builds a successful result for the named capability.
func Succeed(name string, data map[string]any) Result {
	return Result{Capability: name, OK: true, Data: data}
}

// Fail builds a failed result for the named capability.
func Fail(name string, err *Error) Result {
	return Result{Capability: name, OK: false, Error: err}
}

// Errorf builds a capability error with the given code and message.
func Errorf(code, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable}
}
