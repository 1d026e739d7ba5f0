package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/edgegraph/chatd/internal/graphql"
)

// Write sends a GraphQL-shaped envelope
func Write(w http.ResponseWriter, status int, resp *graphql.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Data sends a 200 envelope with a single data field
func Data(w http.ResponseWriter, field string, value any) {
	Write(w, http.StatusOK, graphql.DataResponse(field, value))
}

// Errorf sends an envelope carrying one formatted error entry.
// GraphQL-style: resolution errors ride a 200 unless the request itself was
// malformed.
func Errorf(w http.ResponseWriter, status int, format string, args ...any) {
	Write(w, status, graphql.ErrorResponse(fmt.Sprintf(format, args...)))
}
