// Package build drives a whole compilation: discovering a translation
// unit's import graph, compiling each unit only when its source is newer
// than its outputs, emitting object files through the IR backend, and
// invoking an external linker (spec §5/§6).
package build

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"racc/internal/config"
	"racc/internal/diag"
	"racc/internal/irgen"
	"racc/internal/metadata"
	"racc/internal/parser"
	"racc/internal/token"
)

// Options controls one invocation of the build driver; it is the
// flattened form of the CLI flags (cmd/racc) plus any rac.properties
// overrides (internal/config) the CLI layer has already merged in.
type Options struct {
	Output     string
	Target     string // "" selects the host triple; "x86_64-bios" enables bare-metal mode
	OptLevel   int     // 0..3, or -1 if unset (LoadProjectDefaults/optLevel treat -1 as "use the default")
	DebugInfo  bool
	EmitLLVM   bool // write a .ll text dump alongside the object
	EmitObject bool // stop after object emission; do not link
	Force      bool // ignore mtimes, recompile everything
	Linker     string
}

// BareMetal reports whether the configured target skips linking against
// the host C runtime entirely (spec §6's "x86_64-bios" target).
func (o Options) BareMetal() bool {
	return o.Target == "x86_64-bios"
}

// Driver compiles one entry translation unit and everything it
// transitively imports.
type Driver struct {
	opts     Options
	reporter *diag.Reporter

	// units, once discovered, are keyed by module stem (filename minus
	// extension) so cross-unit imports resolve by name, matching the
	// .racm metadata's own module-name keying.
	units map[string]*unit
	order []string // dependency-first compilation order
}

type unit struct {
	stem       string
	sourcePath string
	objectPath string
	metaPath   string
	imports    []string // stems of the units it imports
	meta       *metadata.Module
}

// Units returns the compiled units' module stems in dependency-first
// order, once Build has run. Used by cmd/racc to render a build report.
func (d *Driver) Units() []string {
	return d.order
}

// Output returns the resolved output path Build picked (CLI flag,
// rac.properties default, or the entry unit's own stem), valid after
// Build has run.
func (d *Driver) Output() string {
	return d.opts.Output
}

// NewDriver builds a Driver for one invocation.
func NewDriver(opts Options, reporter *diag.Reporter) *Driver {
	return &Driver{
		opts:     opts,
		reporter: reporter,
		units:    map[string]*unit{},
	}
}

// LoadProjectDefaults merges a project's rac.properties over any Options
// field the caller left unset, CLI flags always winning where given.
func (o Options) LoadProjectDefaults(dir string) (Options, error) {
	proj, err := config.Load(filepath.Join(dir, config.DefaultFilename))
	if err != nil {
		return o, err
	}
	if o.Output == "" {
		o.Output = proj.Output
	}
	if o.Target == "" {
		o.Target = proj.Target
	}
	if o.Linker == "" {
		o.Linker = proj.Linker
	}
	if o.OptLevel < 0 && proj.Opt >= 0 {
		o.OptLevel = proj.Opt
	}
	return o, nil
}

// Build compiles entrySource and every unit it transitively imports, in
// dependency order, then links the resulting objects unless the driver
// is configured for object-only or bare-metal output.
func (d *Driver) Build(entrySource string) error {
	d.reporter.BeginPhase("discover")
	entryStem, err := d.discover(entrySource)
	d.reporter.EndPhase(err == nil)
	if err != nil {
		return err
	}

	for _, stem := range d.order {
		u := d.units[stem]
		stale := d.opts.Force || isStale(u.sourcePath, u.objectPath, u.metaPath)
		if !stale {
			meta, err := metadata.ReadFile(u.metaPath)
			if err != nil {
				return diag.New(diag.IO, token.Pos{}, "reading cached metadata for %s: %s", u.stem, err)
			}
			u.meta = meta
			d.reporter.Info("%s up to date", u.stem)
			continue
		}
		d.reporter.BeginPhase("compile " + u.stem)
		err := d.compileUnit(u)
		d.reporter.EndPhase(err == nil)
		if err != nil {
			return err
		}
	}

	if d.opts.EmitObject || d.opts.BareMetal() {
		return nil
	}

	if d.opts.Output == "" {
		d.opts.Output = entryStem
	}

	d.reporter.BeginPhase("link")
	err = d.link()
	d.reporter.EndPhase(err == nil)
	return err
}

func isStale(sourcePath, objectPath, metaPath string) bool {
	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		return true
	}
	for _, out := range []string{objectPath, metaPath} {
		outInfo, err := os.Stat(out)
		if err != nil {
			return true
		}
		if outInfo.ModTime().Before(srcInfo.ModTime()) {
			return true
		}
	}
	return false
}

// compileUnit parses, lowers, and emits object code and metadata for one
// unit. It implements irgen.ImportResolver against the units already
// discovered (and, transitively, already compiled earlier in d.order).
func (d *Driver) compileUnit(u *unit) error {
	src, err := os.ReadFile(u.sourcePath)
	if err != nil {
		return diag.New(diag.IO, token.Pos{}, "reading %s: %s", u.sourcePath, err)
	}

	p := parser.New(u.sourcePath, src)
	f, bag := p.ParseFile()
	if bag.HasErrors() {
		for _, e := range bag.Errors() {
			d.reporter.Error(e)
		}
		return fmt.Errorf("%s: %d parse error(s)", u.stem, len(bag.Errors()))
	}

	gen := irgen.New(u.stem, &driverResolver{d: d})
	mod, meta, err := gen.Generate(f)
	if err != nil {
		return err
	}
	u.meta = meta

	if err := metadata.WriteFile(u.metaPath, meta); err != nil {
		return diag.New(diag.IO, token.Pos{}, "writing %s: %s", u.metaPath, err)
	}

	if d.opts.EmitLLVM {
		if err := os.WriteFile(strings.TrimSuffix(u.objectPath, filepath.Ext(u.objectPath))+".ll", []byte(mod.String()), 0o644); err != nil {
			return diag.New(diag.IO, token.Pos{}, "writing LLVM IR dump: %s", err)
		}
	}

	return emitObject(mod, u.objectPath, d.opts)
}

// driverResolver adapts the Driver's already-discovered unit table to
// irgen.ImportResolver.
type driverResolver struct {
	d *Driver
}

func (r *driverResolver) Resolve(path string) (string, *metadata.Module, error) {
	stem := moduleStem(path)
	u, ok := r.d.units[stem]
	if !ok {
		return "", nil, fmt.Errorf("module %q was not discovered", path)
	}
	if u.meta == nil {
		return "", nil, fmt.Errorf("module %q has not been compiled yet", path)
	}
	return stem, u.meta, nil
}

func (d *Driver) link() error {
	var objects []string
	for _, stem := range d.order {
		objects = append(objects, d.units[stem].objectPath)
	}
	linker := d.opts.Linker
	if linker == "" {
		linker = "cc"
	}
	output := d.opts.Output
	if output == "" {
		output = "a.out"
	}
	args := append(append([]string{}, objects...), "-o", output)
	cmd := exec.Command(linker, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return diag.New(diag.Link, token.Pos{}, "%s: %s", linker, err)
	}
	return nil
}
