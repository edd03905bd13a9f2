// Package errors defines the JSON-RPC error codes returned by the engine's
// front door. Codes follow the ERC-4337 RPC convention so existing relayer
// tooling can classify failures without changes.
package errors

const (
	// PARSE is for malformed or unprocessable input.
	PARSE = -32700

	// INVALID_REQUEST is for requests that fail structural validation.
	INVALID_REQUEST = -32600

	// METHOD_NOT_FOUND is for unknown RPC methods.
	METHOD_NOT_FOUND = -32601

	// INVALID_PARAMS is for calls with missing or mistyped params.
	INVALID_PARAMS = -32602

	// INTERNAL is the catch-all for engine-side failures.
	INTERNAL = -32603

	// REJECTED_BY_ENGINE is for batch-fatal submission failures: caller not
	// whitelisted, oversized unrestricted batch, aggregator submissions.
	REJECTED_BY_ENGINE = -32500

	// INVALID_FIELDS is for operations that fail schema or field validation.
	INVALID_FIELDS = -32602
)

// RPCError carries a JSON-RPC error code and optional structured data back
// through the controller.
type RPCError struct {
	code    int
	message string
	data    any
}

func (e *RPCError) Error() string {
	return e.message
}

// Code returns the JSON-RPC error code.
func (e *RPCError) Code() int {
	return e.code
}

// Data returns optional structured context for the error, or nil.
func (e *RPCError) Data() any {
	return e.data
}

// NewRPCError wraps a code, message and optional data into an error the
// jsonrpc controller serializes as a proper JSON-RPC error object.
func NewRPCError(code int, message string, data any) error {
	return &RPCError{code: code, message: message, data: data}
}
