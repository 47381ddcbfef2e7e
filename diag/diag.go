// Package diag accumulates positioned diagnostics during an expansion and
// turns them into a single error at the end.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/viktorlott/enum-shape/syntax"
)

// Code is a machine-readable diagnostic code.
type Code string

const (
	CodeEmptyVariants        Code = "empty_variants"
	CodeNoMatch              Code = "no_match"
	CodeTypeMismatch         Code = "type_mismatch"
	CodeMaybeBound           Code = "maybe_bound"
	CodeLifetimeBound        Code = "lifetime_bound"
	CodeLifetimePredicate    Code = "lifetime_predicate"
	CodeUnsupportedPredicate Code = "unsupported_predicate"
	CodeParse                Code = "parse"
)

// Diagnostic is one positioned error.
type Diagnostic struct {
	Code    Code       `json:"code"`
	Pos     syntax.Pos `json:"pos"`
	Message string     `json:"message"`
}

func (d Diagnostic) Error() string {
	if !d.Pos.IsValid() {
		return d.Message
	}
	return d.Pos.String() + ": " + d.Message
}

// Stash collects diagnostics. The zero value is ready to use.
type Stash struct {
	diags []Diagnostic
}

// Add records a diagnostic at pos.
func (s *Stash) Add(code Code, pos syntax.Pos, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{Code: code, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// AddError records err. A *syntax.Error keeps its position, anything else is
// recorded without one.
func (s *Stash) AddError(code Code, err error) {
	var se *syntax.Error
	if errors.As(err, &se) {
		s.diags = append(s.diags, Diagnostic{Code: code, Pos: se.Pos, Message: se.Msg})
		return
	}
	var de *Error
	if errors.As(err, &de) {
		s.diags = append(s.diags, de.Diagnostics...)
		return
	}
	s.diags = append(s.diags, Diagnostic{Code: code, Message: err.Error()})
}

// HasError reports whether anything was recorded.
func (s *Stash) HasError() bool { return len(s.diags) > 0 }

// Len returns the number of diagnostics.
func (s *Stash) Len() int { return len(s.diags) }

// Diagnostics returns the recorded diagnostics in order.
func (s *Stash) Diagnostics() []Diagnostic { return s.diags }

// Err returns nil if the stash is empty, otherwise an *Error holding every
// diagnostic.
func (s *Stash) Err() error {
	if len(s.diags) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	return &Error{Diagnostics: out}
}

// Error is the failure of a whole expansion.
type Error struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes each diagnostic for errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		errs[i] = d
	}
	return errs
}

// Has reports whether any diagnostic carries code.
func (e *Error) Has(code Code) bool {
	for _, d := range e.Diagnostics {
		if d.Code == code {
			return true
		}
	}
	return false
}

// CompileError renders every diagnostic as a compile_error! invocation, one
// per line, which is what the expansion produces in place of code on failure.
func (e *Error) CompileError() string {
	var b strings.Builder
	for _, d := range e.Diagnostics {
		msg := d.Message
		if d.Pos.IsValid() {
			msg = d.Pos.String() + ": " + msg
		}
		fmt.Fprintf(&b, "compile_error!(%s);\n", syntax.QuoteString(msg))
	}
	return b.String()
}

// FromError converts any error into an *Error. Parse failures become a
// single CodeParse diagnostic.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	var s Stash
	s.AddError(CodeParse, err)
	return s.Err().(*Error)
}
