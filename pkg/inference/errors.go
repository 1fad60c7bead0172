package inference

import (
	"errors"
	"fmt"

	"github.com/dieharders/ai-text-server-sub000/pkg/tools"
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind string

const (
	KindConfigurationError    ErrorKind = "ConfigurationError"
	KindToolNotFoundError     ErrorKind = "ToolNotFoundError"
	KindInvalidToolDefinition ErrorKind = "InvalidToolDefinitionError"
	KindToolExecutionError    ErrorKind = "ToolExecutionError"
	KindNoStructuredOutput    ErrorKind = "NoStructuredOutputError"
	KindMalformedOutput       ErrorKind = "MalformedOutputError"
	KindGenerationStreamError ErrorKind = "GenerationStreamError"
	KindPreconditionError     ErrorKind = "PreconditionError"
	KindGenerationError       ErrorKind = "GenerationError"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrToolNotFound       = tools.ErrToolNotFound
	ErrInvalidDefinition  = tools.ErrInvalidDefinition
	ErrToolExecution      = tools.ErrToolExecution
	ErrNoStructuredOutput = errors.New("no structured output")
	ErrMalformedOutput    = errors.New("malformed output")
	ErrGenerationStream   = errors.New("generation stream failed")
	ErrPrecondition       = errors.New("precondition failed")
	ErrGeneration         = errors.New("generation failed")
)

var sentinels = map[ErrorKind]error{
	KindConfigurationError:    ErrConfiguration,
	KindToolNotFoundError:     ErrToolNotFound,
	KindInvalidToolDefinition: ErrInvalidDefinition,
	KindToolExecutionError:    ErrToolExecution,
	KindNoStructuredOutput:    ErrNoStructuredOutput,
	KindMalformedOutput:       ErrMalformedOutput,
	KindGenerationStreamError: ErrGenerationStream,
	KindPreconditionError:     ErrPrecondition,
	KindGenerationError:       ErrGeneration,
}

// Error is a classified inference failure. Op names the stage that failed.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// NewError lets collaborators such as retrievers report a classified
// failure.
func NewError(kind ErrorKind, op, message string, err error) *Error {
	return newError(kind, op, message, err)
}

func configurationError(op, message string) *Error {
	return newError(KindConfigurationError, op, message, nil)
}

// KindOf returns the kind of err, mapping tool registry errors onto their
// inference kinds. Unclassified errors report an empty kind.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		return KindToolNotFoundError
	case errors.Is(err, tools.ErrInvalidDefinition):
		return KindInvalidToolDefinition
	case errors.Is(err, tools.ErrToolExecution):
		return KindToolExecutionError
	}
	return ""
}

// classify wraps err in an *Error unless it already is one.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	kind := KindOf(err)
	if kind == "" {
		kind = KindGenerationError
	}
	return newError(kind, op, "", err)
}
