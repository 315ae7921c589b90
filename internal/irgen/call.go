package irgen

import (
	"tinygo.org/x/go-llvm"

	"racc/internal/ast"
	"racc/internal/diag"
)

// genCall lowers an unqualified call, a cross-module qualified call, or
// one of the malloc<T>/free intrinsics.
func (g *Generator) genCall(n *ast.CallExpr) (llvm.Value, error) {
	if n.Callee == "malloc" {
		return g.genMalloc(n)
	}
	if n.Callee == "free" {
		return g.genFree(n)
	}

	var callee llvm.Value
	if n.Module == "" {
		fn, ok := g.functions[n.Callee]
		if !ok {
			return llvm.Value{}, diag.New(diag.Undefined, n.At, "undefined function %q", n.Callee)
		}
		callee = fn
	} else {
		fn, err := g.externFunction(n)
		if err != nil {
			return llvm.Value{}, err
		}
		callee = fn
	}

	var args []llvm.Value
	for _, a := range n.Args {
		v, err := g.genExpr(a)
		if err != nil {
			return llvm.Value{}, err
		}
		args = append(args, v)
	}
	return g.builder.CreateCall(callee.GlobalValueType(), callee, args, g.tempName()), nil
}

// externFunction lazily declares the mangled extern symbol for a
// cross-module call the first time it is referenced, memoizing the
// declaration so repeated calls reuse one llvm.Value (spec §4.4,
// matching the intrinsics' own lazy-declaration pattern).
func (g *Generator) externFunction(n *ast.CallExpr) (llvm.Value, error) {
	meta, ok := g.importedMods[n.Module]
	if !ok {
		return llvm.Value{}, diag.New(diag.UnknownModule, n.At, "module %q was not imported", n.Module)
	}
	fn, ok := meta.FindFunction(n.Callee)
	if !ok {
		return llvm.Value{}, diag.New(diag.Undefined, n.At, "module %q has no exported function %q", n.Module, n.Callee)
	}
	symbol := n.Module + "_" + n.Callee
	if existing, ok := g.externFuncs[symbol]; ok {
		return existing, nil
	}
	var paramTypes []llvm.Type
	for _, p := range fn.Params {
		paramTypes = append(paramTypes, g.llvmType(p.Type))
	}
	retType := g.ctx.VoidType()
	if fn.ReturnType != "" {
		retType = g.llvmType(fn.ReturnType)
	}
	decl := llvm.AddFunction(g.module, symbol, llvm.FunctionType(retType, paramTypes, false))
	g.externFuncs[symbol] = decl
	return decl, nil
}

// genMalloc lowers malloc<T>(count) to a call to the C runtime's malloc
// with argument count * sizeof(T) (spec §4.3), bitcast-free since
// tinygo.org/x/go-llvm operates in opaque-pointer mode: the declared
// return type is already i8*.
func (g *Generator) genMalloc(n *ast.CallExpr) (llvm.Value, error) {
	if len(n.Args) != 1 {
		return llvm.Value{}, diag.New(diag.Verify, n.At, "malloc expects exactly one size argument")
	}
	count, err := g.genExpr(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}
	decl := g.mallocFunc()
	sizeT := g.ctx.Int64Type()
	if count.Type() != sizeT {
		count = g.builder.CreateZExt(count, sizeT, g.tempName())
	}
	elemSize := llvm.ConstInt(sizeT, g.sizeOf(n.TypeArg), false)
	size := g.builder.CreateMul(count, elemSize, g.tempName())
	return g.builder.CreateCall(decl.GlobalValueType(), decl, []llvm.Value{size}, g.tempName()), nil
}

func (g *Generator) genFree(n *ast.CallExpr) (llvm.Value, error) {
	if len(n.Args) != 1 {
		return llvm.Value{}, diag.New(diag.Verify, n.At, "free expects exactly one pointer argument")
	}
	ptr, err := g.genExpr(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}
	decl := g.freeFunc()
	g.builder.CreateCall(decl.GlobalValueType(), decl, []llvm.Value{ptr}, "")
	return llvm.ConstNull(g.ctx.Int8Type()), nil
}

func (g *Generator) mallocFunc() llvm.Value {
	if !g.haveMalloc {
		i8ptr := llvm.PointerType(g.ctx.Int8Type(), 0)
		fnType := llvm.FunctionType(i8ptr, []llvm.Type{g.ctx.Int64Type()}, false)
		g.mallocDecl = llvm.AddFunction(g.module, "malloc", fnType)
		g.haveMalloc = true
	}
	return g.mallocDecl
}

func (g *Generator) freeFunc() llvm.Value {
	if !g.haveFree {
		i8ptr := llvm.PointerType(g.ctx.Int8Type(), 0)
		voidType := g.ctx.VoidType()
		fnType := llvm.FunctionType(voidType, []llvm.Type{i8ptr}, false)
		g.freeDecl = llvm.AddFunction(g.module, "free", fnType)
		g.haveFree = true
	}
	return g.freeDecl
}
