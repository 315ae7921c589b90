package irgen_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racc/internal/irgen"
	"racc/internal/metadata"
	"racc/internal/parser"
)

// requireMetadataEqual compares two *metadata.Module values field-by-field
// and, on mismatch, fails with a unified diff of spew.Sdump renderings of
// both sides rather than Go's default %+v dump: a Module with several
// functions/structs is large enough that a flat struct dump buries the one
// field that actually differs.
func requireMetadataEqual(t *testing.T, want, got *metadata.Module) {
	t.Helper()
	if assert.ObjectsAreEqual(want, got) {
		return
	}

	wantDump := spew.Sdump(want)
	gotDump := spew.Sdump(got)
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(wantDump),
		B:        difflib.SplitLines(gotDump),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	require.NoError(t, err)
	t.Fatalf("metadata.Module mismatch:\n%s", diff)
}

// stubResolver answers import resolution from an in-memory table, so
// cross-module generation can be exercised without touching a
// filesystem (the build package owns the real, disk-backed resolver).
type stubResolver struct {
	modules map[string]*metadata.Module
}

func (r *stubResolver) Resolve(path string) (string, *metadata.Module, error) {
	m, ok := r.modules[path]
	if !ok {
		return "", nil, fmt.Errorf("no such module %q", path)
	}
	return path, m, nil
}

func generate(t *testing.T, moduleStem, src string, resolver irgen.ImportResolver) (string, *metadata.Module) {
	t.Helper()
	p := parser.New("<test>", []byte(src))
	f, bag := p.ParseFile()
	require.False(t, bag.HasErrors(), "unexpected parse errors: %v", bag.Errors())

	if resolver == nil {
		resolver = &stubResolver{modules: map[string]*metadata.Module{}}
	}
	gen := irgen.New(moduleStem, resolver)
	mod, meta, err := gen.Generate(f)
	require.NoError(t, err)
	return mod.String(), meta
}

func TestArithmeticFunctionLowersAddAndMul(t *testing.T) {
	ir, _ := generate(t, "arith", `
		export fun compute(a: i32, b: i32, c: i32): i32 {
			return a + b * c;
		}
	`, nil)
	assert.Contains(t, ir, "arith_compute")
	assert.Contains(t, ir, "add")
	assert.Contains(t, ir, "mul")
}

func TestUnsignedDivisionUsesUDiv(t *testing.T) {
	ir, _ := generate(t, "m", `
		fun divide(a: u32, b: u32): u32 {
			return a / b;
		}
	`, nil)
	assert.Contains(t, ir, "udiv")
	assert.NotContains(t, ir, "sdiv")
}

func TestSignedDivisionUsesSDiv(t *testing.T) {
	ir, _ := generate(t, "m", `
		fun divide(a: i32, b: i32): i32 {
			return a / b;
		}
	`, nil)
	assert.Contains(t, ir, "sdiv")
}

func TestPointerDerefAndAddrOf(t *testing.T) {
	ir, _ := generate(t, "m", `
		fun deref(p: i32*): i32 {
			return *p;
		}
		fun addr(x: i32): i32* {
			return &x;
		}
	`, nil)
	assert.Contains(t, ir, "load")
}

func TestStructMemberAssignment(t *testing.T) {
	ir, _ := generate(t, "m", `
		struct Point {
			x: i32;
			y: i32;
		}
		fun setX(p: Point*, v: i32): void {
			p.x = v;
		}
	`, nil)
	assert.Contains(t, ir, "getelementptr")
	assert.Contains(t, ir, "store")
}

func TestConstAssignmentIsFatal(t *testing.T) {
	p := parser.New("<test>", []byte(`
		fun f(): void {
			const x: i32 = 1;
			x = 2;
		}
	`))
	f, bag := p.ParseFile()
	require.False(t, bag.HasErrors())
	gen := irgen.New("m", &stubResolver{modules: map[string]*metadata.Module{}})
	_, _, err := gen.Generate(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "const")
}

func TestDereferencingNonPointerIsFatal(t *testing.T) {
	p := parser.New("<test>", []byte(`
		fun f(): i32 {
			let x: i32 = 1;
			return *x;
		}
	`))
	f, bag := p.ParseFile()
	require.False(t, bag.HasErrors())
	gen := irgen.New("m", &stubResolver{modules: map[string]*metadata.Module{}})
	_, _, err := gen.Generate(f)
	require.Error(t, err)
}

func TestCallingUnimportedModuleIsFatal(t *testing.T) {
	p := parser.New("<test>", []byte(`
		fun f(): i32 {
			return math.square(2);
		}
	`))
	f, bag := p.ParseFile()
	require.False(t, bag.HasErrors())
	gen := irgen.New("m", &stubResolver{modules: map[string]*metadata.Module{}})
	_, _, err := gen.Generate(f)
	require.Error(t, err)
}

func TestCrossModuleCallUsesMangledSymbol(t *testing.T) {
	mathModule := &metadata.Module{
		Name: "math",
		Functions: []metadata.Function{
			{Name: "square", ReturnType: "i32", Params: []metadata.Param{{Name: "x", Type: "i32"}}},
		},
	}
	resolver := &stubResolver{modules: map[string]*metadata.Module{"math": mathModule}}

	ir, _ := generate(t, "m", `
		import "math";
		fun f(): i32 {
			return math.square(3);
		}
	`, resolver)
	assert.Contains(t, ir, "math_square")
}

func TestExportedFunctionRecordedInMetadata(t *testing.T) {
	_, meta := generate(t, "geometry", `
		export fun area(w: i32, h: i32): i32 {
			return w * h;
		}
		fun helper(): void {}
	`, nil)
	require.Len(t, meta.Functions, 1)
	assert.Equal(t, "area", meta.Functions[0].Name)
}

func TestModuleMetadataRoundTripsExportedSignatures(t *testing.T) {
	_, meta := generate(t, "geometry", `
		export struct Rect {
			w: i32;
			h: i32;
		}
		export fun area(r: Rect*): i32 {
			return r.w * r.h;
		}
		export fun perimeter(r: Rect*): i32 {
			return 2 * (r.w + r.h);
		}
		fun helper(): void {}
	`, nil)

	want := &metadata.Module{
		Name: "geometry",
		Functions: []metadata.Function{
			{Name: "area", ReturnType: "i32", Params: []metadata.Param{{Name: "r", Type: "Rect*"}}},
			{Name: "perimeter", ReturnType: "i32", Params: []metadata.Param{{Name: "r", Type: "Rect*"}}},
		},
		Structs: []metadata.Struct{
			{Name: "Rect", Fields: []metadata.Field{{Name: "w", Type: "i32"}, {Name: "h", Type: "i32"}}},
		},
	}
	requireMetadataEqual(t, want, meta)
}

func TestMallocAndFreeIntrinsics(t *testing.T) {
	ir, _ := generate(t, "m", `
		fun f(): void {
			let p: i32* = malloc<i32>(4);
			free(p);
		}
	`, nil)
	assert.True(t, strings.Contains(ir, "call") && strings.Contains(ir, "malloc"))
	assert.Contains(t, ir, "free")
}

func TestWhileLoopGeneratesLoopBlocks(t *testing.T) {
	ir, _ := generate(t, "m", `
		fun loop(): i32 {
			let i: i32 = 0;
			while (i < 10) {
				i = i + 1;
			}
			return i;
		}
	`, nil)
	assert.Contains(t, ir, "while.cond")
	assert.Contains(t, ir, "while.body")
}

func TestForLoopGeneratesLoopBlocks(t *testing.T) {
	ir, _ := generate(t, "m", `
		fun sum(): i32 {
			let s: i32 = 0;
			for (let i: i32 = 0; i < 10; i = i + 1) {
				s = s + i;
			}
			return s;
		}
	`, nil)
	assert.Contains(t, ir, "for.cond")
	assert.Contains(t, ir, "for.body")
}
