package lower

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// Error represents a failure detected during lowering.
//
// Lowering is fail-fast: the first Error aborts the current script
// (including across imported sub-scripts) with no partial output.
// Every Error carries the source position of the offending construct
// and the component that detected it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Component names the lowering component that raised the error,
	// e.g. "bindings", "merge", "rectify", "overloads", "indexing".
	Component string

	// Pos is the source location stamped on the diagnostic.
	Pos token.Position

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes lowering errors.
type ErrorCode string

const (
	// ErrCodeUnboundVariable indicates a name not bound in any scope.
	ErrCodeUnboundVariable ErrorCode = "UNBOUND_VARIABLE"

	// ErrCodeReadOnlyViolation indicates an assignment to a read-only
	// binding, e.g. a for-loop's induction variable.
	ErrCodeReadOnlyViolation ErrorCode = "READ_ONLY_VIOLATION"

	// ErrCodeTypeAmbiguity indicates a control-flow merge of
	// incompatible concrete types.
	ErrCodeTypeAmbiguity ErrorCode = "TYPE_AMBIGUITY"

	// ErrCodeUnsupportedFeature indicates an unsupported indexing or
	// cast form.
	ErrCodeUnsupportedFeature ErrorCode = "UNSUPPORTED_FEATURE"

	// ErrCodeOverloadResolution indicates that no registered signature
	// matched a call's argument types.
	ErrCodeOverloadResolution ErrorCode = "OVERLOAD_RESOLUTION"

	// ErrCodeStructural indicates a malformed construct, e.g. an early
	// return nested in a loop.
	ErrCodeStructural ErrorCode = "STRUCTURAL"

	// ErrCodeArgument indicates a command-line argument string that
	// does not parse as a single complete literal.
	ErrCodeArgument ErrorCode = "ARGUMENT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s (%s)", e.Pos, e.Code, e.Message, e.Component)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Component)
}

func errf(code ErrorCode, component string, pos token.Position, format string, args ...any) *Error {
	return &Error{
		Code:      code,
		Component: component,
		Pos:       pos,
		Message:   fmt.Sprintf(format, args...),
	}
}

func hasCode(err error, code ErrorCode) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsUnboundVariable reports whether err is an unbound-variable error.
// Uses errors.As to handle wrapped errors.
func IsUnboundVariable(err error) bool { return hasCode(err, ErrCodeUnboundVariable) }

// IsReadOnlyViolation reports whether err is a read-only violation.
func IsReadOnlyViolation(err error) bool { return hasCode(err, ErrCodeReadOnlyViolation) }

// IsTypeAmbiguity reports whether err is a merge type ambiguity.
func IsTypeAmbiguity(err error) bool { return hasCode(err, ErrCodeTypeAmbiguity) }

// IsUnsupportedFeature reports whether err is an unsupported feature.
func IsUnsupportedFeature(err error) bool { return hasCode(err, ErrCodeUnsupportedFeature) }

// IsOverloadResolution reports whether err is an overload miss.
func IsOverloadResolution(err error) bool { return hasCode(err, ErrCodeOverloadResolution) }

// IsStructural reports whether err is a structural error.
func IsStructural(err error) bool { return hasCode(err, ErrCodeStructural) }

// IsArgument reports whether err is a CLI-argument literal error.
func IsArgument(err error) bool { return hasCode(err, ErrCodeArgument) }
