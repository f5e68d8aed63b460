package runop

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindFundingFailed    ErrorKind = "FUNDING_FAILED"
	KindStakeUnavailable ErrorKind = "STAKE_UNAVAILABLE"
	KindDispatchFailed   ErrorKind = "DISPATCH_FAILED"
	KindInclusionTimeout ErrorKind = "INCLUSION_TIMEOUT"
	KindEventQueryFailed ErrorKind = "EVENT_QUERY_FAILED"
	KindAccountingFailed ErrorKind = "ACCOUNTING_FAILED"
	KindIdentityBusy     ErrorKind = "IDENTITY_BUSY"
	KindCancelled        ErrorKind = "CANCELLED"
	KindConfiguration    ErrorKind = "CONFIGURATION"
	KindUnknown          ErrorKind = "UNKNOWN"
)

// Sentinels for errors.Is. Any *RunError of the same kind matches.
var (
	ErrFundingFailed    = &RunError{Kind: KindFundingFailed}
	ErrStakeUnavailable = &RunError{Kind: KindStakeUnavailable}
	ErrDispatchFailed   = &RunError{Kind: KindDispatchFailed}
	ErrInclusionTimeout = &RunError{Kind: KindInclusionTimeout}
	ErrEventQueryFailed = &RunError{Kind: KindEventQueryFailed}
	ErrAccountingFailed = &RunError{Kind: KindAccountingFailed}
	ErrIdentityBusy     = &RunError{Kind: KindIdentityBusy}
	ErrCancelled        = &RunError{Kind: KindCancelled}
	ErrConfiguration    = &RunError{Kind: KindConfiguration}
)

// RunError is the error type returned by every pipeline stage.
type RunError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message,omitempty"`
	Err     error     `json:"-"`
}

func (e *RunError) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Stage)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	t, ok := target.(*RunError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Stage == "" && t.Message == "" && t.Err == nil
}

func newRunError(kind ErrorKind, stage, message string, err error) *RunError {
	return &RunError{Kind: kind, Stage: stage, Message: message, Err: err}
}

// KindOf classifies err. Context errors outside a RunError count as cancellation.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}

// ExitCode maps err to the process exit status used by the CLI. STAKE_UNAVAILABLE
// only ever reaches callers as StakeResult.Warning and has no status of its own.
func ExitCode(err error) int {
	switch KindOf(err) {
	case "":
		return 0
	case KindFundingFailed:
		return 2
	case KindDispatchFailed:
		return 4
	case KindInclusionTimeout:
		return 5
	case KindEventQueryFailed:
		return 6
	case KindAccountingFailed:
		return 7
	case KindIdentityBusy:
		return 8
	case KindConfiguration:
		return 9
	case KindCancelled:
		return 130
	default:
		return 1
	}
}
