package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/alibaba/OpenSandbox/internal/apierr"
)

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders an error as the {code, message} envelope with the
// status from the error-code table (spec.md §7). Errors that are not an
// *apierr.Error are rendered as an opaque internal error, never leaking
// the underlying message to the client.
func writeError(w http.ResponseWriter, err error) {
	if apiErr, ok := apierr.As(err); ok {
		writeJSON(w, apiErr.Status(), errorEnvelope{Code: string(apiErr.Code()), Message: apiErr.Message()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorEnvelope{Code: "INTERNAL_ERROR", Message: "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
