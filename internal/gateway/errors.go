package gateway

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies a gateway failure.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindStatus
	KindDecode
	KindRejected
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindRejected:
		return "rejected"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error is the only error type returned by Client and Resource methods.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("network error: %v", e.Err)
	case KindStatus:
		if e.Message != "" {
			return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
		}
		return fmt.Sprintf("server returned %d", e.Status)
	case KindDecode:
		return fmt.Sprintf("invalid response: %v", e.Err)
	case KindRejected:
		if e.Message != "" {
			return e.Message
		}
		return "request rejected"
	case KindAuth:
		if e.Err != nil {
			return fmt.Sprintf("authentication required: %v", e.Err)
		}
		return "authentication required"
	default:
		return fmt.Sprintf("%s failed", e.Op)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, or zero if err is not a gateway error.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return 0
}
