package apiclient

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

const defaultErrorMessage = "request failed"

var authMarkers = []string{"auth", "login", "register"}

type (
	// Envelope is one of the response conventions the backends use.
	// Unwrap extracts the business payload or returns a *BackendError.
	Envelope interface {
		Unwrap() ([]byte, error)
	}

	// AuthEnvelope is kept whole: callers need tokens and the user object.
	AuthEnvelope struct {
		Raw json.RawMessage
	}

	// NetCoreEnvelope is the ASP.NET Core convention
	// ({success|isSuccess, status, errors, traceId, title, message, data|result|value}).
	NetCoreEnvelope struct {
		Raw       json.RawMessage `json:"-"`
		Success   json.RawMessage `json:"success"`
		IsSuccess json.RawMessage `json:"isSuccess"`
		Status    json.RawMessage `json:"status"`
		Errors    json.RawMessage `json:"errors"`
		TraceID   json.RawMessage `json:"traceId"`
		Title     json.RawMessage `json:"title"`
		Message   json.RawMessage `json:"message"`
		Data      json.RawMessage `json:"data"`
		Result    json.RawMessage `json:"result"`
		Value     json.RawMessage `json:"value"`
	}

	// DataEnvelope wraps an object or array payload under "data".
	DataEnvelope struct {
		Data json.RawMessage
	}

	// CodeEnvelope is the {code, result, message, data} convention.
	CodeEnvelope struct {
		Raw          json.RawMessage `json:"-"`
		Code         json.RawMessage `json:"code"`
		Result       json.RawMessage `json:"result"`
		Message      json.RawMessage `json:"message"`
		Error        json.RawMessage `json:"error"`
		ErrorMessage json.RawMessage `json:"errorMessage"`
		Data         json.RawMessage `json:"data"`
	}

	// OpaqueEnvelope is anything else; the payload is returned as is.
	OpaqueEnvelope struct {
		Raw json.RawMessage
	}
)

var (
	_ Envelope = AuthEnvelope{}
	_ Envelope = NetCoreEnvelope{}
	_ Envelope = DataEnvelope{}
	_ Envelope = CodeEnvelope{}
	_ Envelope = OpaqueEnvelope{}
)

// Normalize extracts the business payload of a raw backend response.
// It fails with a *BackendError when the envelope signals an application error. raw is never modified.
func Normalize(raw []byte, path string) ([]byte, error) {
	return Decode(raw, path).Unwrap()
}

// Decode detects which envelope convention raw follows. First match wins:
// auth paths, ASP.NET Core fields, object "data", code/result fields, opaque.
func Decode(raw []byte, path string) Envelope {
	raw = copyBytes(raw)
	if isAuthPath(path) {
		return AuthEnvelope{Raw: raw}
	}
	if !isObject(raw) {
		return OpaqueEnvelope{Raw: raw}
	}

	var netCore NetCoreEnvelope
	if err := json.Unmarshal(raw, &netCore); err == nil && netCore.detected() {
		netCore.Raw = raw
		return netCore
	}

	var code CodeEnvelope
	if err := json.Unmarshal(raw, &code); err != nil {
		return OpaqueEnvelope{Raw: raw}
	}
	if isContainer(code.Data) {
		return DataEnvelope{Data: code.Data}
	}
	if present(code.Result) || present(code.Code) {
		code.Raw = raw
		return code
	}
	return OpaqueEnvelope{Raw: raw}
}

func (env AuthEnvelope) Unwrap() ([]byte, error)   { return env.Raw, nil }
func (env DataEnvelope) Unwrap() ([]byte, error)   { return env.Data, nil }
func (env OpaqueEnvelope) Unwrap() ([]byte, error) { return env.Raw, nil }

func (env NetCoreEnvelope) detected() bool {
	return present(env.Success) || present(env.IsSuccess) || isNumber(env.Status) ||
		isContainer(env.Errors) || present(env.TraceID) || present(env.Title)
}

func (env NetCoreEnvelope) failed() bool {
	if isFalse(env.Success) || isFalse(env.IsSuccess) {
		return true
	}
	if status, ok := number(env.Status); ok && status >= 400 {
		return true
	}
	// an errors set only fails the response when it carries at least one message: {"errors":{"name":[]}} is a success
	return len(errorValues(env.Errors)) > 0 || defined(env.Title)
}

func (env NetCoreEnvelope) Unwrap() ([]byte, error) {
	if env.failed() {
		msg := firstString(env.Message, env.Title)
		if joined := strings.Join(errorValues(env.Errors), "; "); joined != "" {
			if msg == "" {
				msg = joined
			} else {
				msg += ": " + joined
			}
		}
		if msg == "" {
			msg = defaultErrorMessage
		}
		details := env.Errors
		if !defined(details) {
			details = env.Raw
		}
		status, _ := number(env.Status)
		return nil, &BackendError{Message: msg, Details: details, Status: int(status)}
	}
	return firstDefined(env.Data, env.Result, env.Value, env.Raw), nil
}

func (env CodeEnvelope) Unwrap() ([]byte, error) {
	failed := isFalse(env.Result)
	if present(env.Code) {
		code, ok := number(env.Code)
		failed = failed || !ok || (code != 0 && code != 200)
	}
	if failed {
		msg := firstString(env.Message, env.Error, env.ErrorMessage)
		if msg == "" {
			msg = defaultErrorMessage
		}
		return nil, &BackendError{Message: msg, Details: env.Raw}
	}
	return firstDefined(env.Data, env.Raw), nil
}

func isAuthPath(path string) bool {
	lpath := strings.ToLower(path)
	for _, marker := range authMarkers {
		if strings.Contains(lpath, marker) {
			return true
		}
	}
	return false
}

// present reports whether a field appeared in the document at all (null included).
func present(field json.RawMessage) bool {
	return len(field) > 0
}

// defined reports whether a field holds a non-null value.
func defined(field json.RawMessage) bool {
	return present(field) && !bytes.Equal(bytes.TrimSpace(field), []byte("null"))
}

func firstDefined(fields ...json.RawMessage) []byte {
	for _, fld := range fields {
		if defined(fld) {
			return fld
		}
	}
	return nil
}

func firstByte(field []byte) byte {
	trimmed := bytes.TrimSpace(field)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isObject(field []byte) bool {
	return firstByte(field) == '{'
}

func isContainer(field []byte) bool {
	b := firstByte(field)
	return b == '{' || b == '['
}

func isNumber(field json.RawMessage) bool {
	_, ok := number(field)
	return ok
}

func number(field json.RawMessage) (float64, bool) {
	b := firstByte(field)
	if b != '-' && (b < '0' || b > '9') {
		return 0, false
	}
	n, err := strconv.ParseFloat(string(bytes.TrimSpace(field)), 64)
	return n, err == nil
}

func isFalse(field json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(field), []byte("false"))
}

// stringValue renders a JSON value as text: strings are unquoted, anything else is kept as JSON.
func stringValue(field json.RawMessage) string {
	if !defined(field) {
		return ""
	}
	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(field))
}

func firstString(fields ...json.RawMessage) string {
	for _, fld := range fields {
		if defined(fld) {
			return stringValue(fld)
		}
	}
	return ""
}

// errorValues flattens an "errors" collection: {"field": ["msg", ...]} or ["msg", ...].
// Object keys are visited in sorted order so that messages are stable.
func errorValues(field json.RawMessage) []string {
	switch firstByte(field) {
	case '{':
		var byField map[string]json.RawMessage
		if err := json.Unmarshal(field, &byField); err != nil {
			return nil
		}
		keys := make([]string, 0, len(byField))
		for k := range byField {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var values []string
		for _, k := range keys {
			if v := byField[k]; isContainer(v) {
				values = append(values, errorValues(v)...)
			} else if defined(v) {
				values = append(values, stringValue(v))
			}
		}
		return values
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(field, &items); err != nil {
			return nil
		}
		var values []string
		for _, item := range items {
			if isContainer(item) {
				values = append(values, errorValues(item)...)
			} else if defined(item) {
				values = append(values, stringValue(item))
			}
		}
		return values
	}
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
