package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers branch on kind rather than on
// exchange message text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidPrice
	KindConfigurationRejected
	KindTriggerConflict
	KindTransientGateway
	KindRollbackFailure
	KindPreflightAbort
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidPrice:
		return "InvalidPrice"
	case KindConfigurationRejected:
		return "ConfigurationRejected"
	case KindTriggerConflict:
		return "TriggerConflict"
	case KindTransientGateway:
		return "TransientGateway"
	case KindRollbackFailure:
		return "RollbackFailure"
	case KindPreflightAbort:
		return "PreflightAbort"
	default:
		return "Unknown"
	}
}

// Error makes each kind usable as an errors.Is target.
func (k ErrorKind) Error() string {
	return k.String()
}

var (
	ErrInvalidPrice          error = KindInvalidPrice
	ErrConfigurationRejected error = KindConfigurationRejected
	ErrTriggerConflict       error = KindTriggerConflict
	ErrTransientGateway      error = KindTransientGateway
	ErrRollbackFailure       error = KindRollbackFailure
	ErrPreflightAbort        error = KindPreflightAbort
)

// GatewayError is a translated exchange failure.
type GatewayError struct {
	Op     string
	Symbol string
	Code   int64
	Kind   ErrorKind
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Symbol, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// KindOf returns the taxonomy kind carried anywhere in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	var k ErrorKind
	if errors.As(err, &k) {
		return k
	}
	return KindUnknown
}
