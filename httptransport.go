package gatekeeper

import (
	"encoding/json"
	"net/http"
)

func writeJSONError(w http.ResponseWriter, err *Error) {
	if err == nil {
		err = NewUnknownError("an internal error occurred", false)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	_ = json.NewEncoder(w).Encode(newEnvelope(err))
}

// writeJSONResponse sends a handler's successful response: status defaults
// to 200 when resp.Status is zero, data is sent unmodified.
func writeJSONResponse(w http.ResponseWriter, resp Response) {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if resp.Data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(resp.Data)
}
