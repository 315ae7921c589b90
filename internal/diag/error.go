// Package diag holds the compiler's error values and console reporting.
package diag

import (
	"fmt"

	"racc/internal/token"
)

// Kind classifies an Error per the propagation table of the error-handling
// design: lexer noise and parse errors are locally recoverable within a
// unit; everything else is fatal.
type Kind int

const (
	LexNoise Kind = iota
	Parse
	Undefined
	Const
	Deref
	UnknownStruct
	UnknownModule
	Verify
	IO
	Link
)

func (k Kind) String() string {
	switch k {
	case LexNoise:
		return "lex"
	case Parse:
		return "parse error"
	case Undefined:
		return "undefined identifier"
	case Const:
		return "const assignment"
	case Deref:
		return "invalid dereference"
	case UnknownStruct:
		return "unknown struct"
	case UnknownModule:
		return "unknown module"
	case Verify:
		return "IR verification"
	case IO:
		return "I/O error"
	case Link:
		return "link error"
	}
	return "error"
}

// Fatal reports whether an Error of this Kind aborts the build immediately,
// as opposed to being collected and reported in a batch (Parse and
// LexNoise).
func (k Kind) Fatal() bool {
	return k != Parse && k != LexNoise
}

// Error is a single diagnostic: a position, a kind, and a rendered message.
type Error struct {
	Kind Kind
	Pos  token.Pos
	Msg  string
}

// New builds an Error with a formatted message.
func New(kind Kind, pos token.Pos, format string, args ...interface{}) Error {
	return Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
}
