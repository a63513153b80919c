package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
)

var (
	errEmptyMethod = errors.New("missing request method")

	// ErrInvalidInput is the cause of validation errors built from backend rejections.
	ErrInvalidInput = errors.New("invalid input")
)

type (
	// ServerError is returned when the backend answers with a 5xx status.
	ServerError struct {
		Path   string
		Status int
		Body   []byte
	}

	// NoResponseError is returned when the request was sent but no response came back (network, DNS, refused...).
	NoResponseError struct {
		Path string
		Err  error
	}

	// TimeoutError is returned when the backend did not answer within the configured timeout.
	TimeoutError struct {
		Path string
		Err  error
	}

	// RequestSetupError is returned when a request could not be built.
	RequestSetupError struct {
		Err error
	}

	// BackendError is an application level rejection carried by a response envelope.
	BackendError struct {
		Message string
		Details json.RawMessage
		Status  int
	}
)

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d (%s) on %s", e.Status, http.StatusText(e.Status), e.Path)
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("no response from %s: %v", e.Path, e.Err)
}
func (e *NoResponseError) Cause() error  { return e.Err }
func (e *NoResponseError) Unwrap() error { return e.Err }

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out: %v", e.Path, e.Err)
}
func (e *TimeoutError) Cause() error  { return e.Err }
func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *RequestSetupError) Error() string {
	return fmt.Sprintf("setting up request: %v", e.Err)
}
func (e *RequestSetupError) Cause() error  { return e.Err }
func (e *RequestSetupError) Unwrap() error { return e.Err }

func (e *BackendError) Error() string {
	return e.Message
}

// IsInfraError reports whether err is a transport level failure (5xx, no response or timeout).
// Only those count against a resource's health.
func IsInfraError(err error) bool {
	var (
		srvErr     *ServerError
		noRespErr  *NoResponseError
		timeoutErr *TimeoutError
	)
	return errors.As(err, &srvErr) || errors.As(err, &noRespErr) || errors.As(err, &timeoutErr)
}

// IsBackendError reports whether err carries an application level rejection.
func IsBackendError(err error) bool {
	var bErr *BackendError
	return errors.As(err, &bErr)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var (
		srvErr *ServerError
		bErr   *BackendError
	)
	switch {
	case errors.As(err, &srvErr):
		return srvErr.Status
	case errors.As(err, &bErr):
		return bErr.Status
	}
	return 0
}

// AsValidationError turns a backend rejection carrying per field messages
// ({"field": ["msg", ...]} or [{"field": "...", "error": "..."}]) into a *core.ValidationError.
// Other errors are returned unchanged.
func AsValidationError(err error) error {
	var bErr *BackendError
	if !errors.As(err, &bErr) || len(bErr.Details) == 0 {
		return err
	}
	cause := errors.Wrap(ErrInvalidInput, bErr.Message)

	var byField map[string]json.RawMessage
	if json.Unmarshal(bErr.Details, &byField) == nil {
		var flds []core.FieldError
		for field, raw := range byField {
			if firstByte(raw) != '[' {
				continue
			}
			if msgs := errorValues(raw); len(msgs) > 0 {
				flds = append(flds, core.FieldError{Field: field, Error: msgs[0]})
			}
		}
		if len(flds) > 0 {
			sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
			return core.NewValidationError(cause, flds...)
		}
	}

	var list []core.FieldError
	if json.Unmarshal(bErr.Details, &list) == nil && len(list) > 0 && list[0].Field != "" {
		return core.NewValidationError(cause, list...)
	}
	return err
}
