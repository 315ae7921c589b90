package irgen

import (
	"tinygo.org/x/go-llvm"

	"racc/internal/ast"
)

// llvmType lowers a source type spelling to its LLVM representation.
// Pointer types recurse one level of indirection per trailing `*`; bool
// and char both lower to i8 (spec §C, supplementing the original
// implementation's byte-sized character model); unknown spellings fall
// back to a 32-bit integer, grounded in the original Codegen's
// getLLVMType default case.
func (g *Generator) llvmType(spelling string) llvm.Type {
	if ast.IsPointer(spelling) {
		return llvm.PointerType(g.llvmType(ast.Pointee(spelling)), 0)
	}
	switch spelling {
	case "i8", "u8", "bool", "char":
		return g.ctx.Int8Type()
	case "i16", "u16":
		return g.ctx.Int16Type()
	case "i32", "u32":
		return g.ctx.Int32Type()
	case "i64", "u64", "usize":
		return g.ctx.Int64Type()
	case "i128", "u128":
		return g.ctx.IntType(128)
	case "f32":
		return g.ctx.FloatType()
	case "f64":
		return g.ctx.DoubleType()
	case "void":
		return g.ctx.VoidType()
	}
	if t, ok := g.structTypes[spelling]; ok {
		return t
	}
	return g.ctx.Int32Type()
}

func isFloatType(spelling string) bool {
	return spelling == "f32" || spelling == "f64"
}

func isBoolType(spelling string) bool {
	return spelling == "bool"
}

// intWidth returns a non-pointer integer type's bit width, or 0 if
// spelling does not name an integer type (used to decide promotion in
// genBinary).
func intWidth(spelling string) int {
	switch spelling {
	case "i8", "u8", "bool", "char":
		return 8
	case "i16", "u16":
		return 16
	case "i32", "u32":
		return 32
	case "i64", "u64", "usize":
		return 64
	case "i128", "u128":
		return 128
	}
	return 0
}

// floatWidth returns a float type's bit width, or 0 if spelling does not
// name a float type.
func floatWidth(spelling string) int {
	switch spelling {
	case "f32":
		return 32
	case "f64":
		return 64
	}
	return 0
}

// sizeOf returns this compiler's byte size for spelling, used to scale
// malloc<T>'s count argument to bytes (spec §4.3: "count x sizeof(T)").
// Struct sizes are the unpadded sum of their field sizes: irgen has no
// target machine of its own to query a real DataLayout against (that is
// only selected later, per object file, by internal/build/emit.go), so
// sizes here are this frontend's own fixed, alignment-free model rather
// than the host/target ABI's.
func (g *Generator) sizeOf(spelling string) uint64 {
	if ast.IsPointer(spelling) {
		return 8
	}
	if w := intWidth(spelling); w > 0 {
		return uint64(w / 8)
	}
	if w := floatWidth(spelling); w > 0 {
		return uint64(w / 8)
	}
	if fields, ok := g.structFields[spelling]; ok {
		var total uint64
		for _, f := range fields {
			total += g.sizeOf(f.Type)
		}
		return total
	}
	return 4 // matches llvmType's i32 fallback
}
