package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"racc/internal/build"
	"racc/internal/diag"
)

// report is the shape written to the --report YAML summary: enough to
// tell a CI job what was built and whether it was clean, without
// parsing the human-oriented console output.
type report struct {
	Source   string   `yaml:"source"`
	Output   string   `yaml:"output"`
	Target   string   `yaml:"target"`
	OptLevel int      `yaml:"opt_level"`
	Units    []string `yaml:"units"`
	Errors   int      `yaml:"errors"`
	Warnings int      `yaml:"warnings"`
}

func writeReport(path string, source string, opts build.Options, driver *build.Driver, reporter *diag.Reporter) error {
	r := report{
		Source:   source,
		Output:   driver.Output(),
		Target:   opts.Target,
		OptLevel: opts.OptLevel,
		Units:    driver.Units(),
		Errors:   reporter.ErrorCount(),
		Warnings: reporter.WarnCount(),
	}
	out, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
