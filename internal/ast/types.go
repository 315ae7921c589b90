package ast

import "strings"

// DefaultType is the type a `let`/`const` declaration gets when its
// annotation is omitted (spec §4.2).
const DefaultType = "i32"

// VoidType is the nominal spelling used for a function with no return type.
const VoidType = "void"

// IsPointer reports whether a type spelling ends in at least one `*`.
func IsPointer(spelling string) bool {
	return strings.HasSuffix(spelling, "*")
}

// PointerDepth counts the trailing `*` characters in a type spelling.
func PointerDepth(spelling string) int {
	n := 0
	for i := len(spelling) - 1; i >= 0 && spelling[i] == '*'; i-- {
		n++
	}
	return n
}

// Pointee strips exactly one trailing `*` from a pointer type spelling. It
// panics if spelling is not a pointer type; callers must check IsPointer
// (or rely on the caller's own "non-pointer deref is fatal" check) first.
func Pointee(spelling string) string {
	if !IsPointer(spelling) {
		panic("ast: Pointee of non-pointer type " + spelling)
	}
	return spelling[:len(spelling)-1]
}

// PointerTo appends one level of pointer indirection to a type spelling.
func PointerTo(spelling string) string {
	return spelling + "*"
}

// IsUnsigned reports whether a type spelling begins with `u`, the prefix
// of the unsigned integer types (u8..u128, usize): arithmetic and
// comparison lowering pick
// signed or unsigned backend instructions based on this textual rule
// (spec §4.3).
func IsUnsigned(spelling string) bool {
	return strings.HasPrefix(spelling, "u")
}
