// Package parser builds an AST from a token stream: recursive descent for
// statements and primary expressions, precedence climbing (Pratt-style) for
// binary operators.
package parser

import (
	"strconv"
	"strings"

	"racc/internal/ast"
	"racc/internal/diag"
	"racc/internal/lexer"
	"racc/internal/token"
)

// Parser consumes a Lexer's token stream and produces a *ast.File. Parse
// errors are accumulated into a Bag rather than aborting immediately: the
// parser skips one token and resumes, per spec §4.2/§7.
type Parser struct {
	lex *lexer.Lexer
	cur token.Token
	bag diag.Bag
}

// New creates a Parser over the given source.
func New(filename string, source []byte) *Parser {
	p := &Parser{lex: lexer.New(filename, source)}
	p.cur, _ = p.lex.Next()
	return p
}

// ParseFile parses an entire translation unit. The returned Bag holds any
// parse errors recorded along the way; a non-empty Bag means the unit must
// not proceed to IR generation (spec §7).
func (p *Parser) ParseFile() (*ast.File, *diag.Bag) {
	var defs []ast.Stmt
	for p.cur.Kind != token.EOF {
		stmt, err := p.parseStmt()
		if err != nil {
			p.recordAndSkip(err)
			continue
		}
		defs = append(defs, stmt)
	}
	return &ast.File{Defs: defs}, &p.bag
}

func (p *Parser) recordAndSkip(err error) {
	if de, ok := err.(diag.Error); ok {
		p.bag.Add(de)
	} else {
		p.bag.Add(diag.New(diag.Parse, p.cur.Pos, "%s", err.Error()))
	}
	p.advance()
}

func (p *Parser) advance() token.Token {
	t := p.cur
	p.cur, _ = p.lex.Next()
	return t
}

func (p *Parser) match(k token.Kind) (token.Token, error) {
	if p.cur.Kind != k {
		return token.Token{}, diag.New(diag.Parse, p.cur.Pos, "expected %s, but got %s", k, describe(p.cur))
	}
	return p.advance(), nil
}

func (p *Parser) matchKeyword(kw string) (token.Token, error) {
	if !p.cur.Is(kw) {
		return token.Token{}, diag.New(diag.Parse, p.cur.Pos, "expected '%s', but got %s", kw, describe(p.cur))
	}
	return p.advance(), nil
}

func describe(t token.Token) string {
	if t.Kind == token.EOF {
		return "end of file"
	}
	return t.String()
}

// ---- Statements -------------------------------------------------------------

func (p *Parser) parseStmt() (ast.Stmt, error) {
	exported := false
	if p.cur.Is("export") {
		p.advance()
		exported = true
	}

	switch {
	case p.cur.Is("extern"):
		return p.parseExternFunDecl()
	case p.cur.Is("fun"):
		return p.parseFunDecl(exported)
	case p.cur.Is("struct"):
		return p.parseStructDecl(exported)
	case p.cur.Is("import"):
		if exported {
			return nil, diag.New(diag.Parse, p.cur.Pos, "import cannot be exported")
		}
		return p.parseImportDecl()
	case p.cur.Is("let"), p.cur.Is("const"):
		if exported {
			return nil, diag.New(diag.Parse, p.cur.Pos, "variable declarations cannot be exported")
		}
		return p.parseVarDecl()
	case p.cur.Is("return"):
		return p.parseReturn()
	case p.cur.Is("if"):
		return p.parseIf()
	case p.cur.Is("while"):
		return p.parseWhile()
	case p.cur.Is("for"):
		return p.parseFor()
	case p.cur.Kind == token.LEFTBRACE:
		return p.parseBlock()
	}
	if exported {
		return nil, diag.New(diag.Parse, p.cur.Pos, "expected 'fun' or 'struct' after 'export'")
	}
	return p.parseExprStmt()
}

func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	kw := p.advance()
	isConst := kw.Lexeme == "const"
	name, err := p.match(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	typeSpelling := ""
	if p.cur.Kind == token.COLON {
		p.advance()
		typeSpelling, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.match(token.EQUAL); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.VarDecl{
		Name:  name.Lexeme,
		Type:  typeSpelling,
		Init:  value,
		Const: isConst,
		At:    kw.Pos,
	}, nil
}

func (p *Parser) parseFunDecl(exported bool) (ast.Stmt, error) {
	kw := p.advance() // 'fun'
	name, err := p.match(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	returnType := ""
	if p.cur.Kind == token.COLON {
		p.advance()
		returnType, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FunDecl{
		Name:       name.Lexeme,
		Params:     params,
		ReturnType: returnType,
		Body:       body,
		Exported:   exported,
		At:         kw.Pos,
	}, nil
}

func (p *Parser) parseExternFunDecl() (ast.Stmt, error) {
	externKw := p.advance() // 'extern'
	if _, err := p.matchKeyword("fun"); err != nil {
		return nil, err
	}
	name, err := p.match(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	returnType := ""
	if p.cur.Kind == token.COLON {
		p.advance()
		returnType, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.match(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.FunDecl{
		Name:       name.Lexeme,
		Params:     params,
		ReturnType: returnType,
		Body:       nil,
		Extern:     true,
		At:         externKw.Pos,
	}, nil
}

func (p *Parser) parseParams() ([]ast.Param, error) {
	if _, err := p.match(token.LEFTPAREN); err != nil {
		return nil, err
	}
	var params []ast.Param
	for p.cur.Kind != token.RIGHTPAREN {
		name, err := p.match(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.match(token.COLON); err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: name.Lexeme, Type: typ})
		if p.cur.Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.match(token.RIGHTPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseType() (string, error) {
	var name token.Token
	if p.cur.Is(ast.VoidType) {
		name = p.advance()
	} else {
		var err error
		if name, err = p.match(token.IDENTIFIER); err != nil {
			return "", err
		}
	}
	var stars strings.Builder
	for p.cur.Kind == token.STAR {
		p.advance()
		stars.WriteByte('*')
	}
	return name.Lexeme + stars.String(), nil
}

func (p *Parser) parseStructDecl(exported bool) (ast.Stmt, error) {
	kw := p.advance() // 'struct'
	name, err := p.match(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.match(token.LEFTBRACE); err != nil {
		return nil, err
	}
	var fields []ast.Field
	for p.cur.Kind != token.RIGHTBRACE {
		fieldName, err := p.match(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.match(token.COLON); err != nil {
			return nil, err
		}
		fieldType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.match(token.SEMICOLON); err != nil {
			return nil, err
		}
		fields = append(fields, ast.Field{Name: fieldName.Lexeme, Type: fieldType})
	}
	if _, err := p.match(token.RIGHTBRACE); err != nil {
		return nil, err
	}
	return &ast.StructDecl{Name: name.Lexeme, Fields: fields, Exported: exported, At: kw.Pos}, nil
}

func (p *Parser) parseImportDecl() (ast.Stmt, error) {
	kw := p.advance() // 'import'
	path, err := p.match(token.STRING)
	if err != nil {
		return nil, err
	}
	if _, err := p.match(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ImportDecl{Path: path.Lexeme, At: kw.Pos}, nil
}

func (p *Parser) parseExprStmt() (ast.Stmt, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Expr: expr}, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	left, err := p.match(token.LEFTBRACE)
	if err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for p.cur.Kind != token.RIGHTBRACE && p.cur.Kind != token.EOF {
		stmt, err := p.parseStmt()
		if err != nil {
			p.recordAndSkip(err)
			continue
		}
		stmts = append(stmts, stmt)
	}
	if _, err := p.match(token.RIGHTBRACE); err != nil {
		return nil, err
	}
	return &ast.Block{Stmts: stmts, At: left.Pos}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	kw := p.advance() // 'if'
	if _, err := p.match(token.LEFTPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(token.RIGHTPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseStmt ast.Stmt
	if p.cur.Is("else") {
		p.advance()
		if p.cur.Is("if") {
			elseStmt, err = p.parseIf()
		} else {
			elseStmt, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: elseStmt, At: kw.Pos}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	kw := p.advance() // 'while'
	if _, err := p.match(token.LEFTPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(token.RIGHTPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body, At: kw.Pos}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	kw := p.advance() // 'for'
	if _, err := p.match(token.LEFTPAREN); err != nil {
		return nil, err
	}

	var init ast.Stmt
	var err error
	if p.cur.Kind != token.SEMICOLON {
		if p.cur.Is("let") || p.cur.Is("const") {
			init, err = p.parseVarDecl()
		} else {
			init, err = p.parseExprStmt()
		}
		if err != nil {
			return nil, err
		}
	} else {
		p.advance()
	}

	var cond ast.Expr
	if p.cur.Kind != token.SEMICOLON {
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.match(token.SEMICOLON); err != nil {
		return nil, err
	}

	var post ast.Expr
	if p.cur.Kind != token.RIGHTPAREN {
		post, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.match(token.RIGHTPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: body, At: kw.Pos}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	kw := p.advance() // 'return'
	if p.cur.Kind == token.SEMICOLON {
		p.advance()
		return &ast.ReturnStmt{At: kw.Pos}, nil
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Value: value, At: kw.Pos}, nil
}

// ---- Expressions: precedence climbing --------------------------------------

func precedenceOf(k token.Kind) int {
	switch k {
	case token.STAR, token.SLASH, token.PERCENT:
		return 30
	case token.PLUS, token.MINUS:
		return 20
	case token.LESS, token.LESSEQUAL, token.GREATER, token.GREATEREQUAL:
		return 10
	case token.DOUBLEEQUAL, token.BANGEQUAL:
		return 9
	case token.ANDAND:
		return 6
	case token.OROR:
		return 5
	case token.EQUAL:
		return 2
	}
	return -1
}

func isRightAssoc(k token.Kind) bool {
	return k == token.EQUAL
}

func binaryOpFor(k token.Kind) ast.BinaryOp {
	switch k {
	case token.PLUS:
		return ast.Add
	case token.MINUS:
		return ast.Sub
	case token.STAR:
		return ast.Mul
	case token.SLASH:
		return ast.Div
	case token.PERCENT:
		return ast.Mod
	case token.DOUBLEEQUAL:
		return ast.Eq
	case token.BANGEQUAL:
		return ast.Ne
	case token.LESS:
		return ast.Lt
	case token.LESSEQUAL:
		return ast.Le
	case token.GREATER:
		return ast.Gt
	case token.GREATEREQUAL:
		return ast.Ge
	case token.ANDAND:
		return ast.LogAnd
	case token.OROR:
		return ast.LogOr
	case token.EQUAL:
		return ast.Assign
	}
	panic("unreachable binary operator")
}

// ParseExpr parses one expression at the lowest precedence.
func (p *Parser) ParseExpr() (ast.Expr, error) {
	return p.parseExpr()
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryRHS(lhs, 0)
}

func (p *Parser) parseBinaryRHS(lhs ast.Expr, minPrec int) (ast.Expr, error) {
	for {
		opTok := p.cur
		prec := precedenceOf(opTok.Kind)
		if prec < minPrec {
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		nextMinPrec := prec + 1
		if isRightAssoc(opTok.Kind) {
			nextMinPrec = prec
		}
		rhs, err = p.parseBinaryRHS(rhs, nextMinPrec)
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinaryExpr{Op: binaryOpFor(opTok.Kind), Left: lhs, Right: rhs, At: opTok.Pos}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur.Kind {
	case token.MINUS:
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.Negate, Operand: operand, At: op.Pos}, nil
	case token.BANG:
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.Not, Operand: operand, At: op.Pos}, nil
	case token.AMPERSAND:
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.AddrOf, Operand: operand, At: op.Pos}, nil
	case token.STAR:
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.Deref, Operand: operand, At: op.Pos}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur
	switch tok.Kind {
	case token.INTEGER:
		p.advance()
		v, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return nil, diag.New(diag.Parse, tok.Pos, "invalid integer literal %q", tok.Lexeme)
		}
		return &ast.IntLiteral{Value: v, At: tok.Pos}, nil
	case token.FLOAT:
		p.advance()
		v, err := strconv.ParseFloat(tok.Lexeme, 32)
		if err != nil {
			return nil, diag.New(diag.Parse, tok.Pos, "invalid float literal %q", tok.Lexeme)
		}
		return &ast.FloatLiteral{Value: float32(v), At: tok.Pos}, nil
	case token.STRING:
		p.advance()
		return &ast.StringLiteral{Value: []byte(unescape(tok.Lexeme)), At: tok.Pos}, nil
	case token.CHAR:
		p.advance()
		return &ast.CharLiteral{Value: charValue(tok.Lexeme), At: tok.Pos}, nil
	case token.LEFTPAREN:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.match(token.RIGHTPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case token.IDENTIFIER:
		return p.parseIdentifierExpr()
	case token.KEYWORD:
		switch tok.Lexeme {
		case "true":
			p.advance()
			return &ast.BoolLiteral{Value: true, At: tok.Pos}, nil
		case "false":
			p.advance()
			return &ast.BoolLiteral{Value: false, At: tok.Pos}, nil
		case "malloc", "free":
			return p.parseIntrinsicCall()
		}
	}
	return nil, diag.New(diag.Parse, tok.Pos, "expected expression, but got %s", describe(tok))
}

func (p *Parser) parseIntrinsicCall() (ast.Expr, error) {
	kw := p.advance() // 'malloc' or 'free'
	typeArg := ""
	if p.cur.Kind == token.LESS {
		p.advance()
		var err error
		typeArg, err = p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.match(token.GREATER); err != nil {
			return nil, err
		}
	}
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	return &ast.CallExpr{Callee: kw.Lexeme, TypeArg: typeArg, Args: args, At: kw.Pos}, nil
}

// parseIdentifierExpr handles the four shapes an identifier-led primary can
// take: a bare variable reference, a (possibly module-qualified) call, a
// (possibly module-qualified) struct literal, or a member-access chain.
func (p *Parser) parseIdentifierExpr() (ast.Expr, error) {
	id1 := p.advance() // IDENTIFIER

	if p.cur.Kind == token.LEFTPAREN {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &ast.CallExpr{Callee: id1.Lexeme, Args: args, At: id1.Pos}, nil
	}

	if p.cur.Kind == token.LEFTBRACE {
		fields, err := p.parseStructLiteralFields()
		if err != nil {
			return nil, err
		}
		return &ast.StructLiteralExpr{Type: id1.Lexeme, Fields: fields, At: id1.Pos}, nil
	}

	if p.cur.Kind == token.DOT {
		p.advance()
		id2, err := p.match(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if p.cur.Kind == token.LEFTPAREN {
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return &ast.CallExpr{Callee: id2.Lexeme, Module: id1.Lexeme, Args: args, At: id1.Pos}, nil
		}
		if p.cur.Kind == token.LEFTBRACE {
			fields, err := p.parseStructLiteralFields()
			if err != nil {
				return nil, err
			}
			return &ast.StructLiteralExpr{Type: id2.Lexeme, Module: id1.Lexeme, Fields: fields, At: id1.Pos}, nil
		}
		var expr ast.Expr = &ast.MemberExpr{
			Object: &ast.VarRef{Name: id1.Lexeme, At: id1.Pos},
			Field:  id2.Lexeme,
			At:     id1.Pos,
		}
		for p.cur.Kind == token.DOT {
			p.advance()
			fieldTok, err := p.match(token.IDENTIFIER)
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{Object: expr, Field: fieldTok.Lexeme, At: id1.Pos}
		}
		return expr, nil
	}

	return &ast.VarRef{Name: id1.Lexeme, At: id1.Pos}, nil
}

func (p *Parser) parseArgList() ([]ast.Expr, error) {
	if _, err := p.match(token.LEFTPAREN); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for p.cur.Kind != token.RIGHTPAREN {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur.Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.match(token.RIGHTPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseStructLiteralFields() ([]ast.StructFieldInit, error) {
	if _, err := p.match(token.LEFTBRACE); err != nil {
		return nil, err
	}
	var fields []ast.StructFieldInit
	for p.cur.Kind != token.RIGHTBRACE {
		name, err := p.match(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.match(token.COLON); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.StructFieldInit{Name: name.Lexeme, Value: value})
		if p.cur.Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.match(token.RIGHTBRACE); err != nil {
		return nil, err
	}
	return fields, nil
}

// unescape interprets the lexer's verbatim `\<any>` copies for a string
// literal body.
func unescape(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		b.WriteByte(escapeByte(raw[i]))
	}
	return b.String()
}

func charValue(raw string) byte {
	if len(raw) == 0 {
		return 0
	}
	if raw[0] == '\\' && len(raw) > 1 {
		return escapeByte(raw[1])
	}
	return raw[0]
}

func escapeByte(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case '\\':
		return '\\'
	case '\'':
		return '\''
	case '"':
		return '"'
	}
	return c
}
