package build

import (
	"fmt"
	"os"
	"runtime"

	"github.com/cznic/mathutil"
	"tinygo.org/x/go-llvm"
)

var nativeTargetInitialized bool

func ensureNativeTarget() error {
	if nativeTargetInitialized {
		return nil
	}
	llvm.InitializeNativeTarget()
	llvm.InitializeNativeAsmPrinter()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmPrinters()
	nativeTargetInitialized = true
	return nil
}

// triple resolves the opts.Target field to a concrete LLVM target triple.
// An empty Target uses the host triple; "x86_64-bios" selects the
// freestanding bare-metal target used by the BIOS/bootloader scenario
// (spec §6), which never links against a host libc.
func triple(opts Options) string {
	switch opts.Target {
	case "":
		return llvm.DefaultTargetTriple()
	case "x86_64-bios":
		return "x86_64-unknown-none-elf"
	default:
		return opts.Target
	}
}

// optLevel maps a requested -O level to its LLVM counterpart, clamping
// to the supported [0,3] range first (a caller-supplied rac.properties
// "opt" value is never validated before reaching here).
func optLevel(n int) llvm.CodeGenOptLevel {
	switch mathutil.Clamp(n, 0, 3) {
	case 1:
		return llvm.CodeGenLevelLess
	case 2:
		return llvm.CodeGenLevelDefault
	case 3:
		return llvm.CodeGenLevelAggressive
	default:
		return llvm.CodeGenLevelNone
	}
}

// emitObject lowers an already-verified llvm.Module to a native object
// file on disk via a target machine, honoring the requested optimization
// level and target triple.
func emitObject(mod llvm.Module, objectPath string, opts Options) error {
	if err := ensureNativeTarget(); err != nil {
		return err
	}

	tt := triple(opts)
	target, err := llvm.GetTargetFromTriple(tt)
	if err != nil {
		return fmt.Errorf("resolving target %q: %w", tt, err)
	}

	cpu := "generic"
	features := ""
	if tt == llvm.DefaultTargetTriple() && runtime.GOARCH != "" {
		cpu = "" // let the backend pick the host CPU
	}

	machine := target.CreateTargetMachine(
		tt,
		cpu,
		features,
		optLevel(opts.OptLevel),
		llvm.RelocDefault,
		llvm.CodeModelDefault,
	)
	defer machine.Dispose()

	mod.SetTarget(tt)

	buf, err := machine.EmitToMemoryBuffer(mod, llvm.ObjectFile)
	if err != nil {
		return fmt.Errorf("emitting object for %s: %w", objectPath, err)
	}
	defer buf.Dispose()

	if err := os.WriteFile(objectPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("emitting object for %s: %w", objectPath, err)
	}
	return nil
}
