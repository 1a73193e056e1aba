package whatsapp

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed classification of send failures at the channel
// boundary. The Graph API's error payloads are otherwise opaque; classifying
// here keeps dispatcher-level behavior (and tests) deterministic.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork           // transport-level failure, request never got an HTTP status
	KindAuth              // 401 / 403
	KindRateLimited       // 429
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// SendError wraps a failed send with its kind. All kinds are equally "failed"
// to the dispatcher; the kind exists for logs and metrics.
type SendError struct {
	Kind ErrorKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("whatsapp send (%s): %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, defaulting to KindUnknown.
func KindOf(err error) ErrorKind {
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func classifyStatus(code int) ErrorKind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 429:
		return KindRateLimited
	default:
		return KindUnknown
	}
}
