package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed completion call so callers can decide
// whether another attempt makes sense.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimit
	KindQuota
	KindAuth
	KindTransient
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindQuota:
		return "quota"
	case KindAuth:
		return "auth"
	case KindTransient:
		return "transient"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is returned by every Summarizer implementation in this package.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion failed (%s, status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("completion failed (%s): %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRateLimit reports whether err is a throttling response worth retrying.
func IsRateLimit(err error) bool {
	var aiErr *Error
	return errors.As(err, &aiErr) && aiErr.Kind == KindRateLimit
}

// statusError maps an HTTP failure to an Error. A 429 carrying
// insufficient_quota is a billing problem, not throttling.
func statusError(status int, code, message string) *Error {
	kind := KindInvalid
	switch {
	case status == http.StatusTooManyRequests && code == "insufficient_quota":
		kind = KindQuota
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status >= 500:
		kind = KindTransient
	}
	return &Error{Kind: kind, StatusCode: status, Code: code, Message: message}
}
