package query

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the query pipeline
type ErrorKind string

const (
	ErrorKindTranslation ErrorKind = "translation"
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindExecution   ErrorKind = "execution"
)

var (
	// ErrDestructiveStage is returned for pipelines that write ($out, $merge)
	ErrDestructiveStage = errors.New("pipeline contains a destructive stage")
	// ErrEmptyPipeline is returned for aggregations without stages
	ErrEmptyPipeline = errors.New("pipeline cannot be empty")
	// ErrTimeBudget is returned when a query runs past the execution budget
	ErrTimeBudget = errors.New("query exceeded the time budget")
)

// Error is a classified query pipeline failure
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func validationError(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func translationError(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrorKindTranslation, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func executionError(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrorKindExecution, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the classification of err, or "" if err is not a query Error.
func KindOf(err error) ErrorKind {
	var qErr *Error
	if errors.As(err, &qErr) {
		return qErr.Kind
	}
	return ""
}
