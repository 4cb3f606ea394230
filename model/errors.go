package model

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey indicates no API key was configured. Fatal at startup:
// the server refuses to start without upstream credentials.
var ErrMissingAPIKey = errors.New("api key is required")

// APIError is a non-2xx reply from the upstream service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Message)
}
