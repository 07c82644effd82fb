// Package errs carries the error kinds of spec §7 as a small closed
// enum wrapped in a single error type, in the plain errors.New/fmt.Errorf
// style the rest of the pack uses (see pa-m/optimize's brent.go).
package errs

import "fmt"

// Kind is one of the closed set of error kinds the core can raise.
type Kind int

const (
	// InvalidConfiguration covers out-of-range adaptor parameters,
	// contradictory halt conditions, zero histogram bins, and
	// conflicting monitored file names.
	InvalidConfiguration Kind = iota
	// UnsupportedKind covers a bulk operation requested for a value
	// kind outside {double,float,int32,bool}, or a kind-incompatible
	// operation such as add() on bool.
	UnsupportedKind
	// GrammarError covers a property string that fails to parse.
	GrammarError
	// StateViolation covers reading transformed fitness from a dirty
	// individual, advancing scan enumeration past exhaustion without
	// reset, or calling SetAdaptionMode on a pinned adaptor.
	StateViolation
	// ResourceError covers failure to create or rename an output file.
	ResourceError
	// EndOfEnumeration is raised internally by a scan's advancement
	// step; the algorithm base catches it and converts it to a halt.
	// It must never escape to a caller of algorithm.Base.Run.
	EndOfEnumeration
)

func (k Kind) String() string {
	switch k {
	case InvalidConfiguration:
		return "InvalidConfiguration"
	case UnsupportedKind:
		return "UnsupportedKind"
	case GrammarError:
		return "GrammarError"
	case StateViolation:
		return "StateViolation"
	case ResourceError:
		return "ResourceError"
	case EndOfEnumeration:
		return "EndOfEnumeration"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the single error type raised by this module. Tail carries
// the unparsed remainder for GrammarError; it is empty for every other
// kind.
type Error struct {
	Kind Kind
	Msg  string
	Tail string
}

func (e *Error) Error() string {
	if e.Tail != "" {
		return fmt.Sprintf("%s: %s (unparsed: %q)", e.Kind, e.Msg, e.Tail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Grammar builds a GrammarError carrying the unparsed tail.
func Grammar(tail string, format string, args ...any) *Error {
	return &Error{Kind: GrammarError, Msg: fmt.Sprintf(format, args...), Tail: tail}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
