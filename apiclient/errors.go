package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNetwork covers transport failures, timeouts and unusable responses.
	ErrNetwork = errors.New("network error")
	// ErrAuth means bad credentials or an invalid or expired session.
	ErrAuth = errors.New("authentication error")
	// ErrValidation means the API rejected the request body.
	ErrValidation = errors.New("validation error")
)

// Error is returned by every Client call that fails. Kind is one of the sentinels above and
// can be matched with errors.Is.
type Error struct {
	Kind    error
	Status  int
	Message string
	// Fields carries per-field validation messages when the API sends them.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FieldErrors renders Fields as "field: message" pairs in a stable order.
func (e *Error) FieldErrors() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+": "+e.Fields[k])
	}
	return out
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrNetwork
	}
}

func networkError(msg string, err error) *Error {
	return &Error{Kind: ErrNetwork, Message: msg, Err: err}
}
