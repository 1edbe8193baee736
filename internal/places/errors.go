package places

import (
	"fmt"
	"net/http"
	"strings"
)

// RequestError is a non-2xx answer from the places endpoint.
type RequestError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	msg := fmt.Sprintf("places API returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}
