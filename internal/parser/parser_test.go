package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racc/internal/ast"
	"racc/internal/parser"
)

func parseFile(t *testing.T, src string) *ast.File {
	t.Helper()
	p := parser.New("<test>", []byte(src))
	f, bag := p.ParseFile()
	require.False(t, bag.HasErrors(), "unexpected parse errors: %v", bag.Errors())
	return f
}

func TestParseVarDeclWithAnnotation(t *testing.T) {
	f := parseFile(t, "let x: i32 = 1;")
	require.Len(t, f.Defs, 1)
	decl := f.Defs[0].(*ast.VarDecl)
	assert.Equal(t, "x", decl.Name)
	assert.Equal(t, "i32", decl.Type)
	assert.False(t, decl.Const)
	lit := decl.Init.(*ast.IntLiteral)
	assert.EqualValues(t, 1, lit.Value)
}

func TestParseVarDeclDefaultType(t *testing.T) {
	f := parseFile(t, "const y = 2;")
	decl := f.Defs[0].(*ast.VarDecl)
	assert.Equal(t, "", decl.Type)
	assert.True(t, decl.Const)
}

func TestParsePointerType(t *testing.T) {
	f := parseFile(t, "let p: i32** = &x;")
	decl := f.Defs[0].(*ast.VarDecl)
	assert.Equal(t, "i32**", decl.Type)
	unary := decl.Init.(*ast.UnaryExpr)
	assert.Equal(t, ast.AddrOf, unary.Op)
}

func TestParseFunDecl(t *testing.T) {
	f := parseFile(t, `
		export fun add(a: i32, b: i32): i32 {
			return a + b;
		}
	`)
	require.Len(t, f.Defs, 1)
	fn := f.Defs[0].(*ast.FunDecl)
	assert.Equal(t, "add", fn.Name)
	assert.True(t, fn.Exported)
	assert.False(t, fn.Extern)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "i32", fn.ReturnType)
	require.Len(t, fn.Body.Stmts, 1)
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	bin := ret.Value.(*ast.BinaryExpr)
	assert.Equal(t, ast.Add, bin.Op)
}

func TestParseExternFunDecl(t *testing.T) {
	f := parseFile(t, `extern fun puts(s: i8*): i32;`)
	fn := f.Defs[0].(*ast.FunDecl)
	assert.True(t, fn.Extern)
	assert.Nil(t, fn.Body)
}

func TestParseStructDecl(t *testing.T) {
	f := parseFile(t, `
		export struct Point {
			x: i32;
			y: i32;
		}
	`)
	s := f.Defs[0].(*ast.StructDecl)
	assert.Equal(t, "Point", s.Name)
	assert.True(t, s.Exported)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, "x", s.Fields[0].Name)
}

func TestParseImportDecl(t *testing.T) {
	f := parseFile(t, `import "math";`)
	imp := f.Defs[0].(*ast.ImportDecl)
	assert.Equal(t, "math", imp.Path)
}

func TestParseBinaryPrecedence(t *testing.T) {
	f := parseFile(t, `let x = 1 + 2 * 3;`)
	decl := f.Defs[0].(*ast.VarDecl)
	top := decl.Init.(*ast.BinaryExpr)
	assert.Equal(t, ast.Add, top.Op)
	_, ok := top.Left.(*ast.IntLiteral)
	assert.True(t, ok)
	mul := top.Right.(*ast.BinaryExpr)
	assert.Equal(t, ast.Mul, mul.Op)
}

func TestParseAssignmentIsRightAssociative(t *testing.T) {
	f := parseFile(t, `a = b = 3;`)
	stmt := f.Defs[0].(*ast.ExprStmt)
	top := stmt.Expr.(*ast.BinaryExpr)
	assert.Equal(t, ast.Assign, top.Op)
	_, ok := top.Left.(*ast.VarRef)
	assert.True(t, ok)
	inner := top.Right.(*ast.BinaryExpr)
	assert.Equal(t, ast.Assign, inner.Op)
}

func TestParseUnaryChain(t *testing.T) {
	f := parseFile(t, `let v = *&x;`)
	decl := f.Defs[0].(*ast.VarDecl)
	outer := decl.Init.(*ast.UnaryExpr)
	assert.Equal(t, ast.Deref, outer.Op)
	inner := outer.Operand.(*ast.UnaryExpr)
	assert.Equal(t, ast.AddrOf, inner.Op)
}

func TestParseCallExpr(t *testing.T) {
	f := parseFile(t, `f(1, 2);`)
	stmt := f.Defs[0].(*ast.ExprStmt)
	call := stmt.Expr.(*ast.CallExpr)
	assert.Equal(t, "f", call.Callee)
	assert.Equal(t, "", call.Module)
	assert.Len(t, call.Args, 2)
}

func TestParseQualifiedCallExpr(t *testing.T) {
	f := parseFile(t, `math.sqrt(4);`)
	stmt := f.Defs[0].(*ast.ExprStmt)
	call := stmt.Expr.(*ast.CallExpr)
	assert.Equal(t, "sqrt", call.Callee)
	assert.Equal(t, "math", call.Module)
}

func TestParseMemberAccessChain(t *testing.T) {
	f := parseFile(t, `let v = a.b.c;`)
	decl := f.Defs[0].(*ast.VarDecl)
	outer := decl.Init.(*ast.MemberExpr)
	assert.Equal(t, "c", outer.Field)
	inner := outer.Object.(*ast.MemberExpr)
	assert.Equal(t, "b", inner.Field)
	_, ok := inner.Object.(*ast.VarRef)
	assert.True(t, ok)
}

func TestParseStructLiteral(t *testing.T) {
	f := parseFile(t, `let p = Point { x: 1, y: 2 };`)
	decl := f.Defs[0].(*ast.VarDecl)
	lit := decl.Init.(*ast.StructLiteralExpr)
	assert.Equal(t, "Point", lit.Type)
	require.Len(t, lit.Fields, 2)
	assert.Equal(t, "x", lit.Fields[0].Name)
}

func TestParseQualifiedStructLiteral(t *testing.T) {
	f := parseFile(t, `let p = geo.Point { x: 1, y: 2 };`)
	decl := f.Defs[0].(*ast.VarDecl)
	lit := decl.Init.(*ast.StructLiteralExpr)
	assert.Equal(t, "geo", lit.Module)
	assert.Equal(t, "Point", lit.Type)
}

func TestParseMallocWithTypeArg(t *testing.T) {
	f := parseFile(t, `let p = malloc<i32>(4);`)
	decl := f.Defs[0].(*ast.VarDecl)
	call := decl.Init.(*ast.CallExpr)
	assert.Equal(t, "malloc", call.Callee)
	assert.Equal(t, "i32", call.TypeArg)
	require.Len(t, call.Args, 1)
}

func TestParseFreeWithoutTypeArg(t *testing.T) {
	f := parseFile(t, `free(p);`)
	stmt := f.Defs[0].(*ast.ExprStmt)
	call := stmt.Expr.(*ast.CallExpr)
	assert.Equal(t, "free", call.Callee)
	assert.Equal(t, "", call.TypeArg)
}

func TestParseIfElseIfElse(t *testing.T) {
	f := parseFile(t, `
		fun classify(n: i32): i32 {
			if (n < 0) {
				return 0;
			} else if (n == 0) {
				return 1;
			} else {
				return 2;
			}
		}
	`)
	fn := f.Defs[0].(*ast.FunDecl)
	ifStmt := fn.Body.Stmts[0].(*ast.IfStmt)
	require.NotNil(t, ifStmt.Else)
	elseIf, ok := ifStmt.Else.(*ast.IfStmt)
	require.True(t, ok)
	require.NotNil(t, elseIf.Else)
	_, ok = elseIf.Else.(*ast.Block)
	assert.True(t, ok)
}

func TestParseWhileLoop(t *testing.T) {
	f := parseFile(t, `
		fun loop(): void {
			while (true) {
				return;
			}
		}
	`)
	fn := f.Defs[0].(*ast.FunDecl)
	_, ok := fn.Body.Stmts[0].(*ast.WhileStmt)
	assert.True(t, ok)
}

func TestParseForLoopAllClauses(t *testing.T) {
	f := parseFile(t, `
		fun sum(): i32 {
			let s: i32 = 0;
			for (let i: i32 = 0; i < 10; i = i + 1) {
				s = s + i;
			}
			return s;
		}
	`)
	fn := f.Defs[0].(*ast.FunDecl)
	forStmt := fn.Body.Stmts[1].(*ast.ForStmt)
	require.NotNil(t, forStmt.Init)
	require.NotNil(t, forStmt.Cond)
	require.NotNil(t, forStmt.Post)
}

func TestParseForLoopOmittedClauses(t *testing.T) {
	f := parseFile(t, `
		fun loop(): void {
			for (;;) {
				return;
			}
		}
	`)
	fn := f.Defs[0].(*ast.FunDecl)
	forStmt := fn.Body.Stmts[0].(*ast.ForStmt)
	assert.Nil(t, forStmt.Init)
	assert.Nil(t, forStmt.Cond)
	assert.Nil(t, forStmt.Post)
}

func TestParseBareReturn(t *testing.T) {
	f := parseFile(t, `fun f(): void { return; }`)
	fn := f.Defs[0].(*ast.FunDecl)
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	assert.Nil(t, ret.Value)
}

func TestParseErrorRecoverySkipsOneTokenAndContinues(t *testing.T) {
	// The malformed first declaration (missing name) fails at `=`; the
	// parser skips that one token and resumes, so `1;` parses as an
	// expression statement and `let y = 2;` as the second definition.
	p := parser.New("<test>", []byte("let = 1; let y = 2;"))
	f, bag := p.ParseFile()
	assert.True(t, bag.HasErrors())
	require.Len(t, f.Defs, 2)
	assert.Equal(t, "y", f.Defs[1].(*ast.VarDecl).Name)
}

func TestParseStringLiteralUnescapesContent(t *testing.T) {
	f := parseFile(t, `let s = "a\nb";`)
	decl := f.Defs[0].(*ast.VarDecl)
	lit := decl.Init.(*ast.StringLiteral)
	assert.Equal(t, []byte("a\nb"), lit.Value)
}

func TestParseCharLiteralEscape(t *testing.T) {
	f := parseFile(t, `let c = '\n';`)
	decl := f.Defs[0].(*ast.VarDecl)
	lit := decl.Init.(*ast.CharLiteral)
	assert.EqualValues(t, '\n', lit.Value)
}
