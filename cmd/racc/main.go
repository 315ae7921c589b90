// Command racc is the command-line front end for the compiler: it parses
// flags, loads any rac.properties project defaults, and drives
// internal/build over the given source file.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"racc/internal/build"
	"racc/internal/diag"
)

type cliOptions struct {
	Output    string `short:"o" long:"output" description:"output path for the linked executable or object file"`
	EmitLLVM  bool   `long:"emit-llvm" description:"write a .ll LLVM IR text dump alongside each object file"`
	NoLink    bool   `long:"no-link" description:"stop after emitting object files; do not invoke the linker"`
	OptLevel  string `short:"O" long:"opt" choice:"0" choice:"1" choice:"2" choice:"3" description:"optimization level (default: 0, or rac.properties' opt)"`
	DebugInfo bool   `short:"g" long:"debug" description:"emit debug information"`
	Verbose   bool   `short:"v" long:"verbose" description:"print a spinner and timing for every build phase"`
	Quiet     bool   `short:"q" long:"quiet" description:"suppress all non-error output"`
	Force     bool   `short:"f" long:"force" description:"ignore cached outputs and recompile everything"`
	Target    string `long:"target" description:"LLVM target triple, or \"x86_64-bios\" for the freestanding bare-metal target"`
	Linker    string `long:"linker" description:"external linker driver to invoke (default: cc)"`
	Report    string `long:"report" description:"write a YAML build summary to this path"`

	Args struct {
		Source string `positional-arg-name:"source" description:"entry .rac source file"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(argv); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}

	level := diag.Normal
	switch {
	case opts.Quiet:
		level = diag.Quiet
	case opts.Verbose:
		level = diag.Verbose
	}
	reporter := diag.NewReporter(level)

	buildOpts := build.Options{
		Output:     opts.Output,
		Target:     opts.Target,
		OptLevel:   optLevelInt(opts.OptLevel),
		DebugInfo:  opts.DebugInfo,
		EmitLLVM:   opts.EmitLLVM,
		EmitObject: opts.NoLink,
		Force:      opts.Force,
		Linker:     opts.Linker,
	}
	buildOpts, err := buildOpts.LoadProjectDefaults(".")
	if err != nil {
		reporter.Error(fmt.Errorf("reading rac.properties: %w", err))
		return 1
	}

	driver := build.NewDriver(buildOpts, reporter)
	buildErr := driver.Build(opts.Args.Source)
	if buildErr != nil {
		reporter.Error(buildErr)
		var diagErr diag.Error
		if errors.As(buildErr, &diagErr) && diagErr.Pos.Filename != "" {
			reporter.Excerpt(diagErr.Pos.Filename, diagErr.Pos.Line, diagErr.Pos.Column)
		}
	}

	if opts.Report != "" {
		if err := writeReport(opts.Report, opts.Args.Source, buildOpts, driver, reporter); err != nil {
			reporter.Warn("writing build report: %s", err)
		}
	}

	reporter.Summary()
	if buildErr != nil || reporter.ErrorCount() > 0 {
		return 1
	}
	return 0
}

// optLevelInt converts the -O flag's string form to build.Options'
// integer form. An omitted flag parses to -1, the "unset" sentinel
// LoadProjectDefaults and internal/build/emit.go's optLevel both
// recognize, so a project's rac.properties "opt" key can still apply.
func optLevelInt(s string) int {
	switch s {
	case "0":
		return 0
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	default:
		return -1
	}
}
