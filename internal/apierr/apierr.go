package apierr

import "fmt"

// Error is a service failure that carries the HTTP status it should map to.
// Services return it when the handler's default bad-request mapping would be
// wrong, conflicts in particular.
type Error struct {
	Status int
	Code   string
	Err    error
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (status %d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }
