package irgen

import (
	"tinygo.org/x/go-llvm"

	"racc/internal/ast"
	"racc/internal/diag"
	"racc/internal/metadata"
)

// lvalue computes the address and static type of an assignable
// expression: a bare variable, a member access, or a dereference. Any
// other expression is not addressable.
func (g *Generator) lvalue(expr ast.Expr) (llvm.Value, string, bool, error) {
	switch n := expr.(type) {
	case *ast.VarRef:
		b, ok := g.lookup(n.Name)
		if !ok {
			return llvm.Value{}, "", false, diag.New(diag.Undefined, n.At, "undefined identifier %q", n.Name)
		}
		if b.kind == kindSSA {
			return llvm.Value{}, "", false, diag.New(diag.Undefined, n.At, "%q is not assignable", n.Name)
		}
		return b.llvm, b.typ, b.isConst, nil

	case *ast.UnaryExpr:
		if n.Op != ast.Deref {
			return llvm.Value{}, "", false, diag.New(diag.Deref, n.At, "cannot assign to this expression")
		}
		ptrType, err := g.inferType(n.Operand)
		if err != nil {
			return llvm.Value{}, "", false, err
		}
		if !ast.IsPointer(ptrType) {
			return llvm.Value{}, "", false, diag.New(diag.Deref, n.At, "cannot dereference non-pointer type %q", ptrType)
		}
		ptrVal, err := g.genExpr(n.Operand)
		if err != nil {
			return llvm.Value{}, "", false, err
		}
		return ptrVal, ast.Pointee(ptrType), false, nil

	case *ast.MemberExpr:
		objType, err := g.inferType(n.Object)
		if err != nil {
			return llvm.Value{}, "", false, err
		}
		baseType := objType
		var objPtr llvm.Value
		if ast.IsPointer(objType) {
			baseType = ast.Pointee(objType)
			objPtr, err = g.genExpr(n.Object)
			if err != nil {
				return llvm.Value{}, "", false, err
			}
		} else {
			objPtr, _, _, err = g.lvalue(n.Object)
			if err != nil {
				return llvm.Value{}, "", false, err
			}
		}
		fields, ok := g.structFields[baseType]
		if !ok {
			return llvm.Value{}, "", false, diag.New(diag.UnknownStruct, n.At, "unknown struct type %q", baseType)
		}
		idx, fieldType, ok := fieldIndex(fields, n.Field)
		if !ok {
			return llvm.Value{}, "", false, diag.New(diag.UnknownStruct, n.At, "struct %q has no field %q", baseType, n.Field)
		}
		structType := g.structTypes[baseType]
		ptr := g.builder.CreateStructGEP(structType, objPtr, idx, g.tempName())
		return ptr, fieldType, false, nil
	}
	return llvm.Value{}, "", false, diag.New(diag.Deref, expr.Pos(), "expression is not assignable")
}

func fieldIndex(fields []metadata.Field, name string) (int, string, bool) {
	for i, f := range fields {
		if f.Name == name {
			return i, f.Type, true
		}
	}
	return 0, "", false
}
