package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnreachable covers network failures and non-2xx responses.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	// ErrMalformedResponse means the upstream answered but the payload was unusable.
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrDateNotFound means a dense schedule did not contain the requested date.
	ErrDateNotFound = errors.New("date not found in upstream schedule")
)

// Error describes a failed upstream call. It matches its Kind via errors.Is.
type Error struct {
	Upstream string
	Status   int
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Upstream, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func malformed(upstream string, err error) error {
	return &Error{Upstream: upstream, Kind: ErrMalformedResponse, Err: err}
}

func dateNotFound(upstream, date string) error {
	return &Error{Upstream: upstream, Kind: ErrDateNotFound, Err: fmt.Errorf("no entry for %s", date)}
}
