package graphql

import "strings"

// Request is the GraphQL-shaped payload accepted on the wire
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Validate reports whether the request carries a usable query string
func (r *Request) Validate() bool {
	return strings.TrimSpace(r.Query) != ""
}

// Error is a single entry in the response's errors list
type Error struct {
	Message string `json:"message"`
}

// Response is the GraphQL-shaped envelope returned for buffered operations
type Response struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors []Error        `json:"errors,omitempty"`
}

// DataResponse wraps a single-field result in an envelope
func DataResponse(field string, value any) *Response {
	return &Response{Data: map[string]any{field: value}}
}

// ErrorResponse builds an envelope carrying one error entry
func ErrorResponse(message string) *Response {
	return &Response{Errors: []Error{{Message: message}}}
}
