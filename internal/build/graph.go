package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"racc/internal/ast"
	"racc/internal/parser"
)

// moduleStem turns an import path (or a source file path) into the module
// name used to key units and mangle symbols: the filename without its
// directory or ".rac" extension.
func moduleStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// discover walks entrySource's import graph, registering a unit for
// every file reached (entry included), and leaves d.order holding a
// dependency-first topological compilation order. It returns the
// entry unit's module stem.
func (d *Driver) discover(entrySource string) (string, error) {
	var visiting, done map[string]bool = map[string]bool{}, map[string]bool{}

	var visit func(sourcePath string) error
	visit = func(sourcePath string) error {
		stem := moduleStem(sourcePath)
		if done[stem] {
			return nil
		}
		if visiting[stem] {
			return fmt.Errorf("import cycle involving %q", stem)
		}
		visiting[stem] = true

		src, err := os.ReadFile(sourcePath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", sourcePath, err)
		}
		p := parser.New(sourcePath, src)
		f, bag := p.ParseFile()
		if bag.HasErrors() {
			// Parse errors are reported in full once compileUnit actually
			// lowers this file; at discovery time we only need its import
			// list, which a partially-recovered AST still carries.
		}

		dir := filepath.Dir(sourcePath)
		var imports []string
		for _, def := range f.Defs {
			imp, ok := def.(*ast.ImportDecl)
			if !ok {
				continue
			}
			depPath := resolveImportPath(dir, imp.Path)
			if err := visit(depPath); err != nil {
				return err
			}
			imports = append(imports, moduleStem(depPath))
		}

		d.units[stem] = &unit{
			stem:       stem,
			sourcePath: sourcePath,
			objectPath: objectPathFor(sourcePath),
			metaPath:   metaPathFor(sourcePath),
			imports:    imports,
		}
		d.order = append(d.order, stem)

		visiting[stem] = false
		done[stem] = true
		return nil
	}

	if err := visit(entrySource); err != nil {
		return "", err
	}
	return moduleStem(entrySource), nil
}

// resolveImportPath turns an `import "...";` literal into a source path
// on disk, relative to the importing file's directory, appending the
// ".rac" extension when the literal omits it.
func resolveImportPath(fromDir, literal string) string {
	path := literal
	if filepath.Ext(path) != ".rac" {
		path += ".rac"
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(fromDir, path)
	}
	return path
}

func objectPathFor(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".o"
}

func metaPathFor(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".racm"
}
