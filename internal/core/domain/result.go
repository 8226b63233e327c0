package domain

import (
	"errors"
	"fmt"
)

// FailureKind is the stable, machine-readable category of a failed use case.
type FailureKind string

const (
	KindValidation     FailureKind = "validation"
	KindNotFound       FailureKind = "not_found"
	KindConflict       FailureKind = "conflict"
	KindForbidden      FailureKind = "forbidden"
	KindInfrastructure FailureKind = "infrastructure"
)

// Failure is the failure branch of a Result. Err is kept for logging only and
// never rendered to callers.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

func ValidationFailure(msg string) *Failure {
	return &Failure{Kind: KindValidation, Message: msg}
}

// NotFoundFailure carries a fixed message so that absence and lack of
// ownership read identically.
func NotFoundFailure() *Failure {
	return &Failure{Kind: KindNotFound, Message: "user not found"}
}

func ConflictFailure(msg string) *Failure {
	return &Failure{Kind: KindConflict, Message: msg}
}

func ForbiddenFailure(msg string) *Failure {
	return &Failure{Kind: KindForbidden, Message: msg}
}

func InfrastructureFailure(err error) *Failure {
	return &Failure{Kind: KindInfrastructure, Message: "internal error", Err: err}
}

// AsFailure extracts a *Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Result is a value-or-failure sum type returned by use cases.
type Result[T any] struct {
	value   T
	failure *Failure
}

func OK[T any](v T) Result[T] {
	return Result[T]{value: v}
}

func Fail[T any](f *Failure) Result[T] {
	return Result[T]{failure: f}
}

func (r Result[T]) IsOK() bool { return r.failure == nil }

func (r Result[T]) Value() T { return r.value }

func (r Result[T]) Failure() *Failure { return r.failure }

// Unpack returns the value and the failure as an error, for callers that
// prefer the two-value form.
func (r Result[T]) Unpack() (T, error) {
	if r.failure != nil {
		var zero T
		return zero, r.failure
	}
	return r.value, nil
}

// Match dispatches to exactly one of the two branches.
func Match[T, R any](r Result[T], onOK func(T) R, onFail func(*Failure) R) R {
	if r.failure != nil {
		return onFail(r.failure)
	}
	return onOK(r.value)
}
