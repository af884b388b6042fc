package apierr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// ConfigurationError marks a fatal misconfiguration (missing credential,
// unknown quota action). Never retried.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

func Configuration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// GenerationError wraps an upstream AI failure. Retryable distinguishes
// transport-level failures from malformed model output.
type GenerationError struct {
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "generation error"
	}
	return e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

func GenerationRetryable(err error) *GenerationError {
	return &GenerationError{Retryable: true, Err: err}
}

func GenerationMalformed(format string, args ...interface{}) *GenerationError {
	return &GenerationError{Retryable: false, Err: fmt.Errorf(format, args...)}
}

func IsGeneration(err error) (bool, bool) {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return true, ge.Retryable
	}
	return false, false
}
