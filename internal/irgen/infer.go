package irgen

import (
	"racc/internal/ast"
	"racc/internal/diag"
)

// inferType computes an expression's static type spelling without
// lowering it. The language carries no separate type-checking pass (spec
// §9: a more principled type representation would not change observable
// behavior), so this walks the same structural rules the lowering itself
// follows: a binary arithmetic result takes the type promote picks (the
// floating or wider operand's type), an assignment takes its left
// operand's type, comparisons and logical operators are always bool, and
// member/call/struct-literal types come from the declarations that
// produced them.
func (g *Generator) inferType(expr ast.Expr) (string, error) {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		return ast.DefaultType, nil
	case *ast.FloatLiteral:
		return "f32", nil
	case *ast.BoolLiteral:
		return "bool", nil
	case *ast.CharLiteral:
		return "char", nil
	case *ast.StringLiteral:
		return "i8*", nil

	case *ast.VarRef:
		b, ok := g.lookup(n.Name)
		if !ok {
			return "", diag.New(diag.Undefined, n.At, "undefined identifier %q", n.Name)
		}
		return b.typ, nil

	case *ast.UnaryExpr:
		operandType, err := g.inferType(n.Operand)
		if err != nil {
			return "", err
		}
		switch n.Op {
		case ast.Not:
			return "bool", nil
		case ast.AddrOf:
			return ast.PointerTo(operandType), nil
		case ast.Deref:
			if !ast.IsPointer(operandType) {
				return "", diag.New(diag.Deref, n.At, "cannot dereference non-pointer type %q", operandType)
			}
			return ast.Pointee(operandType), nil
		default: // Negate
			return operandType, nil
		}

	case *ast.BinaryExpr:
		switch n.Op {
		case ast.Eq, ast.Ne, ast.Lt, ast.Le, ast.Gt, ast.Ge, ast.LogAnd, ast.LogOr:
			return "bool", nil
		case ast.Assign:
			return g.inferType(n.Left)
		default:
			leftType, err := g.inferType(n.Left)
			if err != nil {
				return "", err
			}
			rightType, err := g.inferType(n.Right)
			if err != nil {
				return "", err
			}
			if isFloatType(leftType) || isFloatType(rightType) {
				if !isFloatType(leftType) || floatWidth(rightType) > floatWidth(leftType) {
					return rightType, nil
				}
				return leftType, nil
			}
			if intWidth(rightType) > intWidth(leftType) {
				return rightType, nil
			}
			return leftType, nil
		}

	case *ast.CallExpr:
		if n.Callee == "malloc" {
			return ast.PointerTo(n.TypeArg), nil
		}
		if n.Callee == "free" {
			return ast.VoidType, nil
		}
		if n.Module == "" {
			if rt, ok := g.localReturnTypes[n.Callee]; ok {
				return rt, nil
			}
			return "", diag.New(diag.Undefined, n.At, "undefined function %q", n.Callee)
		}
		meta, ok := g.importedMods[n.Module]
		if !ok {
			return "", diag.New(diag.UnknownModule, n.At, "module %q was not imported", n.Module)
		}
		fn, ok := meta.FindFunction(n.Callee)
		if !ok {
			return "", diag.New(diag.Undefined, n.At, "module %q has no exported function %q", n.Module, n.Callee)
		}
		return fn.ReturnType, nil

	case *ast.MemberExpr:
		objType, err := g.inferType(n.Object)
		if err != nil {
			return "", err
		}
		if ast.IsPointer(objType) {
			objType = ast.Pointee(objType)
		}
		fields, ok := g.structFields[objType]
		if !ok {
			return "", diag.New(diag.UnknownStruct, n.At, "unknown struct type %q", objType)
		}
		_, fieldType, ok := fieldIndex(fields, n.Field)
		if !ok {
			return "", diag.New(diag.UnknownStruct, n.At, "struct %q has no field %q", objType, n.Field)
		}
		return fieldType, nil

	case *ast.StructLiteralExpr:
		return n.Type, nil
	}
	return "", diag.New(diag.Verify, expr.Pos(), "cannot infer type of expression %T", expr)
}
