package diag

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

// Level controls how much a Reporter prints.
type Level int

const (
	Quiet Level = iota
	Normal
	Verbose
)

var (
	errorStyle = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	warnStyle  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	infoColor  = pterm.FgLightCyan
	errorColor = pterm.FgRed
	warnColor  = pterm.FgYellow
)

// Reporter is the process-wide console front end for build diagnostics. It
// mirrors the spinner-per-phase, colorized-banner style of
// ComedicChimera-chai's logging package, scaled down to this compiler's
// flag surface (-v/--verbose, -q/--quiet).
type Reporter struct {
	Level Level

	spinner   *pterm.SpinnerPrinter
	phase     string
	phaseTime time.Time

	errorCount int
	warnCount  int
}

// NewReporter builds a Reporter at the given verbosity level.
func NewReporter(level Level) *Reporter {
	return &Reporter{Level: level}
}

// Error prints a fatal or batched diagnostic. Errors print regardless of
// verbosity level.
func (r *Reporter) Error(err error) {
	r.errorCount++
	errorStyle.Print(" error ")
	errorColor.Println(" " + err.Error())
}

// Warn prints a non-fatal diagnostic; suppressed at Quiet.
func (r *Reporter) Warn(format string, args ...interface{}) {
	r.warnCount++
	if r.Level == Quiet {
		return
	}
	warnStyle.Print(" warn ")
	warnColor.Println(" " + fmt.Sprintf(format, args...))
}

// Info prints an informational message; suppressed below Normal.
func (r *Reporter) Info(format string, args ...interface{}) {
	if r.Level == Quiet {
		return
	}
	infoColor.Println(fmt.Sprintf(format, args...))
}

// BeginPhase starts a named phase (the build driver uses "discover",
// "compile <unit>" and "link") and, at Verbose, shows a spinner for it.
func (r *Reporter) BeginPhase(name string) {
	r.phase = name
	r.phaseTime = time.Now()
	if r.Level != Verbose {
		return
	}
	r.spinner, _ = pterm.DefaultSpinner.WithStyle(pterm.NewStyle(infoColor)).Start(name + "...")
}

// EndPhase closes out the current phase, reporting success or failure.
func (r *Reporter) EndPhase(ok bool) {
	if r.spinner == nil {
		return
	}
	elapsed := time.Since(r.phaseTime)
	if ok {
		r.spinner.Success(fmt.Sprintf("%s (%.3fs)", r.phase, elapsed.Seconds()))
	} else {
		r.spinner.Fail(r.phase)
	}
	r.spinner = nil
}

// Excerpt prints the source line a fatal error occurred on, with a caret
// under the offending column, in the manner of displayCodeSelection.
func (r *Reporter) Excerpt(filename string, line, column int) {
	f, err := os.Open(filename)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanLines)
	text := ""
	for n := 1; sc.Scan(); n++ {
		if n == line {
			text = sc.Text()
			break
		}
	}
	if text == "" {
		return
	}
	fmt.Println(text)
	col := column - 1
	if col < 0 {
		col = 0
	}
	fmt.Println(strings.Repeat(" ", col) + "^")
}

// Summary prints the final error/warning counts, as a compilation finishes.
func (r *Reporter) Summary() {
	if r.Level == Quiet {
		return
	}
	if r.errorCount == 0 {
		pterm.FgLightGreen.Print("build succeeded ")
	} else {
		errorColor.Print("build failed ")
	}
	fmt.Printf("(%d error(s), %d warning(s))\n", r.errorCount, r.warnCount)
}

// ErrorCount reports how many errors have been reported so far.
func (r *Reporter) ErrorCount() int {
	return r.errorCount
}

// WarnCount reports how many warnings have been reported so far.
func (r *Reporter) WarnCount() int {
	return r.warnCount
}
