// Package diag defines the diagnostic sink used throughout the compilation
// pipeline. Every pass reports user-facing errors as Diagnostic values
// rather than Go errors; internal invariant failures are panics carrying
// an InternalError, kept on a separate channel per the taxonomy below.
package diag

import (
	"fmt"

	"github.com/avwohl/ucow/internal/token"
)

// Kind is the taxonomy of user-facing diagnostic kinds.
type Kind int

const (
	Lex Kind = iota
	Parse
	Resolution
	Type
	Semantic
)

func (k Kind) String() string {
	switch k {
	case Lex:
		return "lex error"
	case Parse:
		return "parse error"
	case Resolution:
		return "resolution error"
	case Type:
		return "type error"
	case Semantic:
		return "semantic error"
	default:
		return "error"
	}
}

// Diagnostic is a single user-facing compiler error.
type Diagnostic struct {
	Kind Kind
	Pos  token.Pos
	Msg  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Kind, d.Msg)
}

// Sink accumulates diagnostics for one pass. The first diagnostic reported
// aborts the pass that reported it (callers check HasErrors after each
// meaningful unit of work and bail out early), but the sink keeps
// collecting so the pipeline can report everything accumulated so far.
type Sink struct {
	diags []Diagnostic
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Add reports a diagnostic.
func (s *Sink) Add(kind Kind, pos token.Pos, format string, args ...interface{}) {
	s.diags = append(s.diags, Diagnostic{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic has been recorded.
func (s *Sink) HasErrors() bool {
	return len(s.diags) > 0
}

// Diagnostics returns all diagnostics recorded so far, in report order.
func (s *Sink) Diagnostics() []Diagnostic {
	return s.diags
}

// InternalError represents a contradiction the compiler cannot recover
// from, e.g. an AST node reaching code generation with no resolved type.
// These are carried on a channel distinct from Diagnostic so test
// harnesses can assert the compiler itself is sound, per the invocation
// surface's separate-channel requirement.
type InternalError struct {
	Pos token.Pos
	Msg string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error at %s: %s", e.Pos, e.Msg)
}

// Bug panics with an InternalError. Callers at the top of the pipeline
// recover it and report it distinctly from ordinary diagnostics.
func Bug(pos token.Pos, format string, args ...interface{}) {
	panic(&InternalError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}
