// Package feedstate owns the single mutable state slot of a screen: a tagged
// union of pending, success and failure, plus the operations that move it.
package feedstate

import (
	"encoding/json"
	"errors"

	"timeline-service/internal/paginated"
)

type Status uint8

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "pending"
	}
}

// ErrUnknown stands in for a failure built without an error value.
var ErrUnknown = errors.New("unknown failure")

// State holds exactly one of: nothing yet, a page, or an error. The fields
// are unexported so a page and an error can never coexist. The zero value is
// Pending.
type State[T any] struct {
	status Status
	page   paginated.Paginated[T]
	err    error
}

func Pending[T any]() State[T] { return State[T]{} }

func Success[T any](p paginated.Paginated[T]) State[T] {
	return State[T]{status: StatusSuccess, page: p}
}

func Failure[T any](err error) State[T] {
	if err == nil {
		err = ErrUnknown
	}
	return State[T]{status: StatusFailure, err: err}
}

func (s State[T]) Status() Status  { return s.status }
func (s State[T]) IsPending() bool { return s.status == StatusPending }
func (s State[T]) IsSuccess() bool { return s.status == StatusSuccess }
func (s State[T]) IsFailure() bool { return s.status == StatusFailure }

// Page returns the held page when the state is Success.
func (s State[T]) Page() (paginated.Paginated[T], bool) {
	if s.status != StatusSuccess {
		return paginated.Paginated[T]{}, false
	}
	return s.page, true
}

// Err returns the failure cause when the state is Failure.
func (s State[T]) Err() error {
	if s.status != StatusFailure {
		return nil
	}
	return s.err
}

type stateJSON[T any] struct {
	Status    string  `json:"status"`
	Page      *[]T    `json:"page,omitempty"`
	NextToken *string `json:"next_token,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func (s State[T]) MarshalJSON() ([]byte, error) {
	out := stateJSON[T]{Status: s.status.String()}
	switch s.status {
	case StatusSuccess:
		page := s.page.Page
		if page == nil {
			page = []T{}
		}
		out.Page = &page
		out.NextToken = s.page.NextToken
	case StatusFailure:
		out.Error = s.err.Error()
	}
	return json.Marshal(out)
}
