// Package validation provides an accumulating result type for domain
// operations. A result carries either a value or every failure found,
// so independent field checks report together instead of one at a time.
package validation

import (
	"fmt"
	"strings"
)

// Code values shared across aggregates.
const (
	CodeInternal = "INTERNAL"
	CodeNotFound = "NOT_FOUND"
)

// Error describes a single rejected check.
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errors is a non-empty list of rejected checks.
type Errors []Error

func (errs Errors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// Result holds either a value or the accumulated failures that
// prevented producing one.
type Result[T any] struct {
	value T
	errs  Errors
}

// OK wraps a successful value.
func OK[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err wraps one or more failures. Calling Err with no errors is a
// programming mistake and is recorded as an internal failure.
func Err[T any](errs ...Error) Result[T] {
	if len(errs) == 0 {
		errs = []Error{{Code: CodeInternal, Message: "failure constructed without errors"}}
	}
	return Result[T]{errs: Errors(errs)}
}

// Fail wraps an infrastructure error as an internal failure so callers
// see one uniform failure channel.
func Fail[T any](err error) Result[T] {
	return Err[T](Error{Code: CodeInternal, Message: err.Error()})
}

// Valid reports whether the result carries a value.
func (r Result[T]) Valid() bool {
	return len(r.errs) == 0
}

// Value returns the success value. Only meaningful when Valid.
func (r Result[T]) Value() T {
	return r.value
}

// Errors returns the accumulated failures, nil on success.
func (r Result[T]) Errors() Errors {
	return r.errs
}

// Err returns the failures as an error, nil on success.
func (r Result[T]) Err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs
}

// Bind chains a dependent computation. Failures short-circuit.
func Bind[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if !r.Valid() {
		return Result[U]{errs: r.errs}
	}
	return fn(r.value)
}

// Map transforms a success value. Failures pass through unchanged.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.Valid() {
		return Result[U]{errs: r.errs}
	}
	return OK(fn(r.value))
}

// Join2 merges two independent validations, accumulating failures from
// both sides before combining the values.
func Join2[A, B, T any](a Result[A], b Result[B], fn func(A, B) T) Result[T] {
	errs := append(Errors{}, a.errs...)
	errs = append(errs, b.errs...)
	if len(errs) > 0 {
		return Result[T]{errs: errs}
	}
	return OK(fn(a.value, b.value))
}

// Join3 merges three independent validations.
func Join3[A, B, C, T any](a Result[A], b Result[B], c Result[C], fn func(A, B, C) T) Result[T] {
	errs := append(Errors{}, a.errs...)
	errs = append(errs, b.errs...)
	errs = append(errs, c.errs...)
	if len(errs) > 0 {
		return Result[T]{errs: errs}
	}
	return OK(fn(a.value, b.value, c.value))
}

// Join4 merges four independent validations.
func Join4[A, B, C, D, T any](a Result[A], b Result[B], c Result[C], d Result[D], fn func(A, B, C, D) T) Result[T] {
	errs := append(Errors{}, a.errs...)
	errs = append(errs, b.errs...)
	errs = append(errs, c.errs...)
	errs = append(errs, d.errs...)
	if len(errs) > 0 {
		return Result[T]{errs: errs}
	}
	return OK(fn(a.value, b.value, c.value, d.value))
}
