// Package failure defines the error kinds a chart request can end in.
package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindUpstreamUnavailable: the completion service failed on every attempt.
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	// KindInvalidGeneratedQuery: the generated text failed extraction or a structural rule.
	KindInvalidGeneratedQuery Kind = "INVALID_GENERATED_QUERY"
	// KindQueryExecutionFailed: the store rejected the statement.
	KindQueryExecutionFailed Kind = "QUERY_EXECUTION_FAILED"
	// KindEmptyResult: the statement ran and returned zero rows.
	KindEmptyResult Kind = "EMPTY_RESULT"
	// KindNoChartableData: rows came back but no numeric column could be found.
	KindNoChartableData Kind = "NO_CHARTABLE_DATA"
	KindInternal        Kind = "INTERNAL"
)

// Error is a categorized failure. Message is the human-readable reason shown
// to callers. Rule names the validator rule that fired, when there is one.
type Error struct {
	Kind    Kind
	Message string
	Rule    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Invalid reports a validator rejection for rule.
func Invalid(rule, message string) *Error {
	return &Error{Kind: KindInvalidGeneratedQuery, Message: message, Rule: rule}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Kind == kind
}

// Message returns the caller-facing reason for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return err.Error()
}

// RuleOf returns the validator rule carried by err, if any.
func RuleOf(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Rule
	}
	return ""
}

// Retryable reports whether repeating the same request may succeed.
func (k Kind) Retryable() bool {
	return k == KindUpstreamUnavailable
}
