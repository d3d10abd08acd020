// Package dispatcher routes incoming method calls to platform radio queries.
package dispatcher

import "encoding/json"

// Result codes.
const (
	CodeUnavailable      = "UNAVAILABLE"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeInvalidRequest   = "INVALID_REQUEST"
)

// MethodCall is the JSON envelope for an incoming method invocation.
type MethodCall struct {
	ID        string          `json:"id"`
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MethodResult is the JSON envelope for a method response. Exactly one of
// Ok, Error, or NotImplemented is set.
type MethodResult struct {
	ID             string       `json:"id"`
	Ok             bool         `json:"ok"`
	Result         interface{}  `json:"result,omitempty"`
	Error          *ErrorDetail `json:"error,omitempty"`
	NotImplemented bool         `json:"notImplemented,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details"`
	Retryable bool        `json:"retryable"`
}
