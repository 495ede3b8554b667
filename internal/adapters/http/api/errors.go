package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnsupportedType = errors.New("request must be JSON")
	ErrUnauthorized    = errors.New("missing or invalid token")
	ErrBackpressure    = errors.New("backpressure")
)

// errorResponse is the body of every error reply.
type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
