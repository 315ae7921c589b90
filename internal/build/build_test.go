package build

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racc/internal/diag"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscoverOrdersDependenciesBeforeDependents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "math.rac"), `
		export fun square(x: i32): i32 {
			return x * x;
		}
	`)
	writeFile(t, filepath.Join(dir, "main.rac"), `
		import "math";
		fun main(): i32 {
			return math.square(3);
		}
	`)

	d := NewDriver(Options{}, diag.NewReporter(diag.Quiet))
	entryStem, err := d.discover(filepath.Join(dir, "main.rac"))
	require.NoError(t, err)
	assert.Equal(t, "main", entryStem)
	require.Equal(t, []string{"math", "main"}, d.order)
}

func TestDiscoverRejectsImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rac"), `import "b";`)
	writeFile(t, filepath.Join(dir, "b.rac"), `import "a";`)

	d := NewDriver(Options{}, diag.NewReporter(diag.Quiet))
	_, err := d.discover(filepath.Join(dir, "a.rac"))
	assert.Error(t, err)
}

func TestIsStaleWhenObjectMissing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "m.rac")
	writeFile(t, src, `fun f(): void {}`)
	assert.True(t, isStale(src, filepath.Join(dir, "m.o"), filepath.Join(dir, "m.racm")))
}

func TestIsStaleWhenSourceNewerThanOutputs(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "m.o")
	meta := filepath.Join(dir, "m.racm")
	writeFile(t, obj, "stale-object")
	writeFile(t, meta, "stale-meta")

	src := filepath.Join(dir, "m.rac")
	writeFile(t, src, `fun f(): void {}`)
	newer := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(src, newer, newer))

	assert.True(t, isStale(src, obj, meta))
}

func TestIsStaleFalseWhenOutputsNewer(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "m.rac")
	writeFile(t, src, `fun f(): void {}`)

	obj := filepath.Join(dir, "m.o")
	meta := filepath.Join(dir, "m.racm")
	writeFile(t, obj, "object")
	writeFile(t, meta, "meta")
	newer := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(obj, newer, newer))
	require.NoError(t, os.Chtimes(meta, newer, newer))

	assert.False(t, isStale(src, obj, meta))
}

func TestResolveImportPathAppendsExtensionAndJoinsDir(t *testing.T) {
	assert.Equal(t, filepath.Join("src", "math.rac"), resolveImportPath("src", "math"))
	assert.Equal(t, filepath.Join("src", "math.rac"), resolveImportPath("src", "math.rac"))
}

func TestModuleStemStripsDirAndExtension(t *testing.T) {
	assert.Equal(t, "main", moduleStem("/a/b/main.rac"))
	assert.Equal(t, "main", moduleStem("main.rac"))
}
