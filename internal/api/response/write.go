package response

import (
	"encoding/json"
	"net/http"
)

// encodeFailure is written when a response body cannot be marshalled
const encodeFailure = `{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}` + "\n"

// JSON writes data as a JSON response. The body is marshalled before the
// header goes out so a marshalling failure still yields a clean 500.
func JSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status, body = http.StatusInternalServerError, []byte(encodeFailure)
	} else {
		body = append(body, '\n')
	}

	w.Header().Set("Content-Type", "application/json")
	// session views change with every move
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
