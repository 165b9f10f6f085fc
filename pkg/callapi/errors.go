package callapi

import (
	"fmt"
	"strings"
)

// ValidationError lists what is wrong with a CallAPI descriptor.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid call api: " + strings.Join(e.Problems, "; ")
}

// RequestError is the payload of an init action re-dispatched because the
// request never produced a response.
type RequestError struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request error: %s", e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// APIError is the default payload of the error phase.
type APIError struct {
	Status     int         `json:"status"`
	StatusText string      `json:"status_text"`
	Response   interface{} `json:"response,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d - %s", e.Status, e.StatusText)
}

// InternalError is the payload used when a payload function fails.
type InternalError struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
