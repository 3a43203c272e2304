package ops

import "github.com/fhirpath-go/corefhirpath/diag"

// CodedError is an operation failure that carries a specific diagnostic
// code, so the evaluator (which has the call-site span the ops package
// does not) can build a precise diag.Diagnostic instead of falling back to
// a generic runtime error.
type CodedError struct {
	Code    diag.Code
	Message string
}

func (e *CodedError) Error() string { return e.Message }

func overflowErr(op string) error {
	return &CodedError{Code: diag.EArithmeticOverflow, Message: "ops: " + op + " overflowed 64-bit integer range"}
}

func invalidRegexErr(pattern string, cause error) error {
	return &CodedError{Code: diag.EInvalidRegex, Message: "ops: invalid regular expression " + pattern + ": " + cause.Error()}
}

func indexOutOfBoundsErr(i int) error {
	return &CodedError{Code: diag.EIndexOutOfBounds, Message: "ops: index out of bounds"}
}
