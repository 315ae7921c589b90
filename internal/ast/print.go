package ast

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes a readable, indented dump of a file's top-level
// declarations to w. It exists purely as a diagnostic aid (spec §1 names
// AST pretty-printing a non-goal for the compiler proper, not a
// prohibition on having one); nothing in the compiler or the CLI calls it.
func Fprint(w io.Writer, f *File) {
	for _, def := range f.Defs {
		fprintStmt(w, def, 0)
	}
}

func indent(w io.Writer, depth int) {
	io.WriteString(w, strings.Repeat("  ", depth))
}

func fprintStmt(w io.Writer, s Stmt, depth int) {
	indent(w, depth)
	switch n := s.(type) {
	case *ImportDecl:
		fmt.Fprintf(w, "import %q\n", n.Path)
	case *StructDecl:
		fmt.Fprintf(w, "struct %s (exported=%v)\n", n.Name, n.Exported)
		for _, field := range n.Fields {
			indent(w, depth+1)
			fmt.Fprintf(w, "%s: %s\n", field.Name, field.Type)
		}
	case *FunDecl:
		fmt.Fprintf(w, "fun %s(", n.Name)
		for i, p := range n.Params {
			if i > 0 {
				io.WriteString(w, ", ")
			}
			fmt.Fprintf(w, "%s: %s", p.Name, p.Type)
		}
		fmt.Fprintf(w, ") -> %s (exported=%v extern=%v)\n", orVoid(n.ReturnType), n.Exported, n.Extern)
		if n.Body != nil {
			fprintStmt(w, n.Body, depth+1)
		}
	case *VarDecl:
		kw := "let"
		if n.Const {
			kw = "const"
		}
		fmt.Fprintf(w, "%s %s: %s\n", kw, n.Name, orDefault(n.Type))
		if n.Init != nil {
			fprintExpr(w, n.Init, depth+1)
		}
	case *ExprStmt:
		io.WriteString(w, "exprstmt\n")
		fprintExpr(w, n.Expr, depth+1)
	case *IfStmt:
		io.WriteString(w, "if\n")
		fprintExpr(w, n.Cond, depth+1)
		fprintStmt(w, n.Then, depth+1)
		if n.Else != nil {
			indent(w, depth)
			io.WriteString(w, "else\n")
			fprintStmt(w, n.Else, depth+1)
		}
	case *WhileStmt:
		io.WriteString(w, "while\n")
		fprintExpr(w, n.Cond, depth+1)
		fprintStmt(w, n.Body, depth+1)
	case *ForStmt:
		io.WriteString(w, "for\n")
		if n.Init != nil {
			fprintStmt(w, n.Init, depth+1)
		}
		if n.Cond != nil {
			fprintExpr(w, n.Cond, depth+1)
		}
		if n.Post != nil {
			fprintExpr(w, n.Post, depth+1)
		}
		fprintStmt(w, n.Body, depth+1)
	case *ReturnStmt:
		io.WriteString(w, "return\n")
		if n.Value != nil {
			fprintExpr(w, n.Value, depth+1)
		}
	case *Block:
		io.WriteString(w, "block\n")
		for _, stmt := range n.Stmts {
			fprintStmt(w, stmt, depth+1)
		}
	default:
		fmt.Fprintf(w, "<unknown stmt %T>\n", s)
	}
}

func fprintExpr(w io.Writer, e Expr, depth int) {
	indent(w, depth)
	switch n := e.(type) {
	case *IntLiteral:
		fmt.Fprintf(w, "int %d\n", n.Value)
	case *FloatLiteral:
		fmt.Fprintf(w, "float %g\n", n.Value)
	case *BoolLiteral:
		fmt.Fprintf(w, "bool %v\n", n.Value)
	case *CharLiteral:
		fmt.Fprintf(w, "char %q\n", n.Value)
	case *StringLiteral:
		fmt.Fprintf(w, "string %q\n", n.Value)
	case *VarRef:
		fmt.Fprintf(w, "var %s\n", n.Name)
	case *UnaryExpr:
		fmt.Fprintf(w, "unary %s\n", unaryOpName(n.Op))
		fprintExpr(w, n.Operand, depth+1)
	case *BinaryExpr:
		fmt.Fprintf(w, "binary %s\n", binaryOpName(n.Op))
		fprintExpr(w, n.Left, depth+1)
		fprintExpr(w, n.Right, depth+1)
	case *CallExpr:
		qualifier := ""
		if n.Module != "" {
			qualifier = n.Module + "."
		}
		fmt.Fprintf(w, "call %s%s<%s>\n", qualifier, n.Callee, n.TypeArg)
		for _, arg := range n.Args {
			fprintExpr(w, arg, depth+1)
		}
	case *MemberExpr:
		fmt.Fprintf(w, "member .%s\n", n.Field)
		fprintExpr(w, n.Object, depth+1)
	case *StructLiteralExpr:
		qualifier := ""
		if n.Module != "" {
			qualifier = n.Module + "."
		}
		fmt.Fprintf(w, "structlit %s%s\n", qualifier, n.Type)
		for _, field := range n.Fields {
			indent(w, depth+1)
			fmt.Fprintf(w, "%s:\n", field.Name)
			fprintExpr(w, field.Value, depth+2)
		}
	default:
		fmt.Fprintf(w, "<unknown expr %T>\n", e)
	}
}

func orVoid(t string) string {
	if t == "" {
		return VoidType
	}
	return t
}

func orDefault(t string) string {
	if t == "" {
		return DefaultType
	}
	return t
}

func unaryOpName(op UnaryOp) string {
	switch op {
	case Negate:
		return "-"
	case Not:
		return "!"
	case AddrOf:
		return "&"
	case Deref:
		return "*"
	}
	return "?"
}

func binaryOpName(op BinaryOp) string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case LogAnd:
		return "&&"
	case LogOr:
		return "||"
	case Assign:
		return "="
	}
	return "?"
}
