package api

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "github.com/laenvidiadelsur/storefront/pkg/errors"
)

// errorBody matches the two error shapes the API is known to produce:
// {"error": "message"} and {"error": {"message": "..."}}.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

// normalizeResponseError translates a non-2xx response into the closed error
// taxonomy. The message is extracted from the body when present, otherwise a
// generic "server error {status}" is used. The body is fully consumed and
// closed. 401 never reaches here; do handles it before decoding.
func normalizeResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return apperrors.Server(resp.StatusCode, "")
	}

	return apperrors.Server(resp.StatusCode, extractMessage(bodyBytes))
}

// extractMessage pulls a human-readable message out of an error body.
// Returns the empty string when no message can be extracted.
func extractMessage(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil || len(eb.Error) == 0 {
		return ""
	}

	var msg string
	if json.Unmarshal(eb.Error, &msg) == nil {
		return msg
	}

	var structured struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(eb.Error, &structured) == nil {
		return structured.Message
	}

	return ""
}
