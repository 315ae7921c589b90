// Package irgen lowers an AST into an LLVM module via
// tinygo.org/x/go-llvm, the compiler's IR backend. It owns symbol
// mangling, the scope-frame model, struct layout, and cross-module calls
// resolved through .racm metadata (spec §4.3/§4.4).
package irgen

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"racc/internal/ast"
	"racc/internal/diag"
	"racc/internal/metadata"
	"racc/internal/token"
)

// ImportResolver loads another compilation unit's exported metadata given
// the literal path in an `import "...";` statement. The build driver
// supplies the concrete, filesystem-backed implementation; irgen only
// needs the resolved module stem and signature table.
type ImportResolver interface {
	Resolve(path string) (moduleStem string, meta *metadata.Module, err error)
}

type valueKind int

const (
	kindLocal  valueKind = iota // alloca pointer; load before use
	kindGlobal                  // GlobalVariable pointer; load before use
	kindSSA                     // value usable directly, no load (functions)
)

type binding struct {
	kind    valueKind
	llvm    llvm.Value
	typ     string
	isConst bool
}

// scope is one lexical frame: a block, a function body, or (at the bottom
// of the stack) the file-level frame holding top-level `let`/`const`
// globals. Innermost-to-outermost resolution walks the stack top-down;
// the file-level frame is the sentinel that resolution always bottoms
// out at.
type scope map[string]binding

// Generator lowers one translation unit into an llvm.Module.
type Generator struct {
	ctx     llvm.Context
	module  llvm.Module
	builder llvm.Builder

	moduleStem string
	resolver   ImportResolver

	scopes []scope // scopes[0] is the file-level (globals) frame

	functions        map[string]llvm.Value // source name -> this unit's own function
	localReturnTypes map[string]string     // source name -> declared return type, any visibility
	structTypes      map[string]llvm.Type
	structFields  map[string][]metadata.Field
	externFuncs  map[string]llvm.Value // mangled extern symbol -> declared value, memoized
	importedMods map[string]*metadata.Module

	out metadata.Module

	mallocDecl llvm.Value
	freeDecl   llvm.Value
	haveMalloc bool
	haveFree   bool

	stringCount int
}

// New creates a Generator for one translation unit. moduleStem is the
// import-facing name this unit is known by (its filename, minus
// extension): it is the prefix used when mangling this unit's exported
// functions (spec §4.3).
func New(moduleStem string, resolver ImportResolver) *Generator {
	ctx := llvm.NewContext()
	return &Generator{
		ctx:           ctx,
		module:        ctx.NewModule(moduleStem),
		builder:       ctx.NewBuilder(),
		moduleStem:    moduleStem,
		resolver:      resolver,
		scopes:           []scope{{}},
		functions:        map[string]llvm.Value{},
		localReturnTypes: map[string]string{},
		structTypes:      map[string]llvm.Type{},
		structFields:     map[string][]metadata.Field{},
		externFuncs:      map[string]llvm.Value{},
		importedMods:     map[string]*metadata.Module{},
		out:              metadata.Module{Name: moduleStem},
	}
}

// Generate lowers f's top-level declarations into the Generator's module
// in two passes (decl pass registers every function/struct signature so
// forward references resolve; def pass fills in bodies), mirroring the
// teacher's CodegenFileDecls/CodegenFileDefs split. It returns the
// completed module and the metadata to write to this unit's .racm file.
func (g *Generator) Generate(f *ast.File) (llvm.Module, *metadata.Module, error) {
	for _, def := range f.Defs {
		if err := g.declareTopLevel(def); err != nil {
			return llvm.Module{}, nil, err
		}
	}
	for _, def := range f.Defs {
		if err := g.defineTopLevel(def); err != nil {
			return llvm.Module{}, nil, err
		}
	}
	if ok := llvm.VerifyModule(g.module, llvm.ReturnStatusAction); ok != nil {
		return llvm.Module{}, nil, diag.New(diag.Verify, token.Pos{}, "%s", ok.Error())
	}
	return g.module, &g.out, nil
}

// mangle applies spec §4.3's symbol-mangling rule: an exported
// declaration's LLVM symbol is "<moduleStem>_<name>"; a non-exported
// declaration keeps its source name; structs are never mangled.
func (g *Generator) mangle(name string, exported bool) string {
	if exported {
		return g.moduleStem + "_" + name
	}
	return name
}

func (g *Generator) declareTopLevel(def ast.Stmt) error {
	switch n := def.(type) {
	case *ast.ImportDecl:
		return g.declareImport(n)
	case *ast.StructDecl:
		return g.declareStruct(n)
	case *ast.FunDecl:
		return g.declareFunction(n)
	}
	return nil
}

func (g *Generator) defineTopLevel(def ast.Stmt) error {
	switch n := def.(type) {
	case *ast.FunDecl:
		return g.defineFunction(n)
	case *ast.VarDecl:
		return g.declareGlobalVar(n)
	}
	return nil
}

func (g *Generator) declareImport(n *ast.ImportDecl) error {
	stem, meta, err := g.resolver.Resolve(n.Path)
	if err != nil {
		return diag.New(diag.UnknownModule, n.At, "cannot import %q: %s", n.Path, err)
	}
	g.importedMods[stem] = meta
	for _, st := range meta.Structs {
		if _, exists := g.structTypes[st.Name]; exists {
			continue
		}
		g.registerStructType(st.Name, st.Fields)
	}
	return nil
}

func (g *Generator) declareStruct(n *ast.StructDecl) error {
	var fields []metadata.Field
	for _, field := range n.Fields {
		fields = append(fields, metadata.Field{Name: field.Name, Type: field.Type})
	}
	g.registerStructType(n.Name, fields)
	if n.Exported {
		g.out.Structs = append(g.out.Structs, metadata.Struct{Name: n.Name, Fields: fields})
	}
	return nil
}

func (g *Generator) registerStructType(name string, fields []metadata.Field) {
	var llvmFields []llvm.Type
	for _, field := range fields {
		llvmFields = append(llvmFields, g.llvmType(field.Type))
	}
	g.structTypes[name] = g.ctx.StructType(llvmFields, false)
	g.structFields[name] = fields
}

func (g *Generator) declareFunction(n *ast.FunDecl) error {
	var paramTypes []llvm.Type
	for _, p := range n.Params {
		paramTypes = append(paramTypes, g.llvmType(p.Type))
	}
	retType := g.ctx.VoidType()
	if n.ReturnType != "" && n.ReturnType != ast.VoidType {
		retType = g.llvmType(n.ReturnType)
	}
	fnType := llvm.FunctionType(retType, paramTypes, false)
	symbol := g.mangle(n.Name, n.Exported)
	fn := llvm.AddFunction(g.module, symbol, fnType)
	if n.Extern {
		fn.SetLinkage(llvm.ExternalLinkage)
	}
	g.functions[n.Name] = fn
	g.localReturnTypes[n.Name] = n.ReturnType

	if n.Exported {
		var params []metadata.Param
		for _, p := range n.Params {
			params = append(params, metadata.Param{Name: p.Name, Type: p.Type})
		}
		g.out.Functions = append(g.out.Functions, metadata.Function{
			Name:       n.Name,
			ReturnType: n.ReturnType,
			Params:     params,
		})
	}
	return nil
}

func (g *Generator) defineFunction(n *ast.FunDecl) error {
	if n.Extern || n.Body == nil {
		return nil
	}
	fn := g.functions[n.Name]
	entry := g.ctx.AddBasicBlock(fn, "entry")
	g.builder.SetInsertPointAtEnd(entry)

	g.pushScope()
	defer g.popScope()

	for i, p := range n.Params {
		paramType := g.llvmType(p.Type)
		alloca := g.builder.CreateAlloca(paramType, p.Name)
		g.builder.CreateStore(fn.Param(i), alloca)
		g.bind(p.Name, binding{kind: kindLocal, llvm: alloca, typ: p.Type})
	}

	terminated, err := g.genBlock(n.Body)
	if err != nil {
		return err
	}
	if !terminated {
		if n.ReturnType == "" || n.ReturnType == ast.VoidType {
			g.builder.CreateRetVoid()
		} else {
			g.builder.CreateRet(llvm.ConstNull(g.llvmType(n.ReturnType)))
		}
	}
	return nil
}

func (g *Generator) declareGlobalVar(n *ast.VarDecl) error {
	typ := n.Type
	if typ == "" {
		typ = ast.DefaultType
	}
	llvmTy := g.llvmType(typ)
	global := llvm.AddGlobal(g.module, llvmTy, n.Name)
	global.SetLinkage(llvm.InternalLinkage)
	global.SetInitializer(llvm.ConstNull(llvmTy))
	if n.Init != nil {
		// Global initializers sit outside any function, so they go through
		// genConstExpr rather than genExpr: only the handful of literal
		// forms it accepts can become a global's constant initializer.
		val, typ2, err := g.genConstExpr(n.Init, typ)
		if err != nil {
			return err
		}
		_ = typ2
		global.SetInitializer(val)
	}
	g.bindAt(0, n.Name, binding{kind: kindGlobal, llvm: global, typ: typ, isConst: n.Const})
	return nil
}

func (g *Generator) pushScope() {
	g.scopes = append(g.scopes, scope{})
}

func (g *Generator) popScope() {
	g.scopes = g.scopes[:len(g.scopes)-1]
}

func (g *Generator) bind(name string, b binding) {
	g.scopes[len(g.scopes)-1][name] = b
}

func (g *Generator) bindAt(depth int, name string, b binding) {
	g.scopes[depth][name] = b
}

func (g *Generator) lookup(name string) (binding, bool) {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if b, ok := g.scopes[i][name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// entryAlloca allocates a stack slot at the top of the current
// function's entry block, regardless of the builder's current insertion
// point, then restores that insertion point before returning (spec §4.3:
// "allocate a stack slot at the top of the function's entry block
// regardless of the declaration's textual position"). This keeps a
// `let` or struct literal inside a loop body from re-allocating on every
// iteration, the same reasoning DESIGN.md already applies to parameter
// allocas in defineFunction.
func (g *Generator) entryAlloca(typ llvm.Type, name string) llvm.Value {
	current := g.builder.GetInsertBlock()
	entry := current.Parent().EntryBasicBlock()

	first := entry.FirstInstruction()
	if first.IsNil() {
		g.builder.SetInsertPointAtEnd(entry)
	} else {
		g.builder.SetInsertPointBefore(first)
	}
	alloca := g.builder.CreateAlloca(typ, name)

	g.builder.SetInsertPointAtEnd(current)
	return alloca
}

func (g *Generator) tempName() string {
	g.stringCount++
	return fmt.Sprintf(".t%d", g.stringCount)
}
