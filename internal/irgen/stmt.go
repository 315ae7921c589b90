package irgen

import (
	"racc/internal/ast"
	"racc/internal/diag"
)

// genBlock lowers a block's statements in a fresh scope, returning
// whether the block already ended in a terminator (a return, or two
// branches that each terminate) so the caller knows whether it still
// needs to supply one.
func (g *Generator) genBlock(b *ast.Block) (bool, error) {
	g.pushScope()
	defer g.popScope()

	terminated := false
	for _, stmt := range b.Stmts {
		if terminated {
			break // unreachable code after a terminator is simply not emitted
		}
		t, err := g.genStmt(stmt)
		if err != nil {
			return false, err
		}
		terminated = t
	}
	return terminated, nil
}

func (g *Generator) genStmt(stmt ast.Stmt) (bool, error) {
	switch n := stmt.(type) {
	case *ast.VarDecl:
		return false, g.genLocalVarDecl(n)
	case *ast.ExprStmt:
		_, err := g.genExpr(n.Expr)
		return false, err
	case *ast.Block:
		return g.genBlock(n)
	case *ast.IfStmt:
		return g.genIf(n)
	case *ast.WhileStmt:
		return g.genWhile(n)
	case *ast.ForStmt:
		return g.genFor(n)
	case *ast.ReturnStmt:
		return true, g.genReturn(n)
	case *ast.StructDecl, *ast.FunDecl, *ast.ImportDecl:
		// Nested declarations are a top-level construct; a well-formed
		// unit never reaches here (the parser still accepts them inside a
		// body, per its single unified statement grammar, but they carry
		// no local-scope meaning).
		return false, diag.New(diag.Verify, stmt.Pos(), "declarations are only valid at the top level")
	}
	return false, diag.New(diag.Verify, stmt.Pos(), "cannot lower statement of type %T", stmt)
}

func (g *Generator) genLocalVarDecl(n *ast.VarDecl) error {
	typ := n.Type
	if typ == "" {
		typ = ast.DefaultType
	}
	llvmTy := g.llvmType(typ)
	alloca := g.entryAlloca(llvmTy, n.Name)
	if n.Init != nil {
		val, err := g.genExpr(n.Init)
		if err != nil {
			return err
		}
		g.builder.CreateStore(val, alloca)
	}
	g.bind(n.Name, binding{kind: kindLocal, llvm: alloca, typ: typ, isConst: n.Const})
	return nil
}

func (g *Generator) genReturn(n *ast.ReturnStmt) error {
	if n.Value == nil {
		g.builder.CreateRetVoid()
		return nil
	}
	v, err := g.genExpr(n.Value)
	if err != nil {
		return err
	}
	g.builder.CreateRet(v)
	return nil
}

func (g *Generator) genIf(n *ast.IfStmt) (bool, error) {
	fn := g.builder.GetInsertBlock().Parent()
	thenBlock := g.ctx.AddBasicBlock(fn, "if.then")
	mergeBlock := g.ctx.AddBasicBlock(fn, "if.end")
	elseBlock := mergeBlock
	if n.Else != nil {
		elseBlock = g.ctx.AddBasicBlock(fn, "if.else")
	}

	cond, err := g.genExpr(n.Cond)
	if err != nil {
		return false, err
	}
	g.builder.CreateCondBr(g.truthy(cond), thenBlock, elseBlock)

	g.builder.SetInsertPointAtEnd(thenBlock)
	thenTerminated, err := g.genBlock(n.Then)
	if err != nil {
		return false, err
	}
	if !thenTerminated {
		g.builder.CreateBr(mergeBlock)
	}

	elseTerminated := false
	if n.Else != nil {
		g.builder.SetInsertPointAtEnd(elseBlock)
		switch elseNode := n.Else.(type) {
		case *ast.Block:
			elseTerminated, err = g.genBlock(elseNode)
		case *ast.IfStmt:
			elseTerminated, err = g.genIf(elseNode)
		}
		if err != nil {
			return false, err
		}
		if !elseTerminated {
			g.builder.CreateBr(mergeBlock)
		}
	}

	if thenTerminated && elseTerminated && n.Else != nil {
		mergeBlock.EraseFromParent()
		return true, nil
	}
	g.builder.SetInsertPointAtEnd(mergeBlock)
	return false, nil
}

func (g *Generator) genWhile(n *ast.WhileStmt) (bool, error) {
	fn := g.builder.GetInsertBlock().Parent()
	condBlock := g.ctx.AddBasicBlock(fn, "while.cond")
	bodyBlock := g.ctx.AddBasicBlock(fn, "while.body")
	endBlock := g.ctx.AddBasicBlock(fn, "while.end")

	g.builder.CreateBr(condBlock)
	g.builder.SetInsertPointAtEnd(condBlock)
	cond, err := g.genExpr(n.Cond)
	if err != nil {
		return false, err
	}
	g.builder.CreateCondBr(g.truthy(cond), bodyBlock, endBlock)

	g.builder.SetInsertPointAtEnd(bodyBlock)
	terminated, err := g.genBlock(n.Body)
	if err != nil {
		return false, err
	}
	if !terminated {
		g.builder.CreateBr(condBlock)
	}

	g.builder.SetInsertPointAtEnd(endBlock)
	return false, nil
}

func (g *Generator) genFor(n *ast.ForStmt) (bool, error) {
	g.pushScope()
	defer g.popScope()

	if n.Init != nil {
		if _, err := g.genStmt(n.Init); err != nil {
			return false, err
		}
	}

	fn := g.builder.GetInsertBlock().Parent()
	condBlock := g.ctx.AddBasicBlock(fn, "for.cond")
	bodyBlock := g.ctx.AddBasicBlock(fn, "for.body")
	endBlock := g.ctx.AddBasicBlock(fn, "for.end")

	g.builder.CreateBr(condBlock)
	g.builder.SetInsertPointAtEnd(condBlock)
	if n.Cond != nil {
		cond, err := g.genExpr(n.Cond)
		if err != nil {
			return false, err
		}
		g.builder.CreateCondBr(g.truthy(cond), bodyBlock, endBlock)
	} else {
		g.builder.CreateBr(bodyBlock)
	}

	g.builder.SetInsertPointAtEnd(bodyBlock)
	terminated, err := g.genBlock(n.Body)
	if err != nil {
		return false, err
	}
	if !terminated {
		if n.Post != nil {
			if _, err := g.genExpr(n.Post); err != nil {
				return false, err
			}
		}
		g.builder.CreateBr(condBlock)
	}

	g.builder.SetInsertPointAtEnd(endBlock)
	return false, nil
}
