package api

import (
	"encoding/json"
	"fmt"
)

// Error is a non-2xx response of the backend.
type Error struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"StatusCode"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// errorFromResponse decodes the error body, falling back to the raw body
// text when it is not the expected shape.
func errorFromResponse(status int, body []byte) *Error {
	e := &Error{}
	if err := json.Unmarshal(body, e); err != nil || e.Message == "" {
		e.Message = string(body)
	}
	if e.StatusCode == 0 {
		e.StatusCode = status
	}
	return e
}
