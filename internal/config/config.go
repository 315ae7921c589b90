// Package config reads the optional rac.properties project file (spec
// §A.3 of the expanded specification): a flat key/value file giving
// project-wide defaults for the flags cmd/racc otherwise takes on the
// command line.
package config

import (
	"os"

	"github.com/magiconair/properties"
)

// Project holds the project-wide defaults read from rac.properties.
// Output or Target left at "" and Opt left at -1 was not set in the
// file, and the CLI's own flag default applies instead. Linker is "cc"
// when the file exists but has no "linker" key.
type Project struct {
	Output string // "output" - default object/executable path
	Target string // "target" - LLVM target triple, e.g. x86_64-bios
	Opt    int    // "opt" - 0..3, -1 if unset
	Linker string // "linker" - external linker driver, e.g. cc, clang
}

// DefaultFilename is the conventional project config filename looked up
// in the current working directory.
const DefaultFilename = "rac.properties"

// Load reads path if it exists. A missing file is not an error: it
// simply yields an empty Project with Opt -1, meaning "no overrides".
func Load(path string) (Project, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Project{Opt: -1}, nil
	}
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return Project{Opt: -1}, err
	}
	return Project{
		Output: p.GetString("output", ""),
		Target: p.GetString("target", ""),
		Opt:    p.GetInt("opt", -1),
		Linker: p.GetString("linker", "cc"),
	}, nil
}
