package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racc/internal/config"
)

func TestLoadMissingFileYieldsNoOverrides(t *testing.T) {
	p, err := config.Load(filepath.Join(t.TempDir(), "nope.properties"))
	require.NoError(t, err)
	assert.Equal(t, config.Project{Opt: -1}, p)
}

func TestLoadReadsKnownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rac.properties")
	content := "output = build/out\ntarget = x86_64-bios\nopt = 2\nlinker = clang\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build/out", p.Output)
	assert.Equal(t, "x86_64-bios", p.Target)
	assert.Equal(t, 2, p.Opt)
	assert.Equal(t, "clang", p.Linker)
}

func TestLoadOptDefaultsToUnsetSentinel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rac.properties")
	require.NoError(t, os.WriteFile(path, []byte("output = build/out\n"), 0o644))

	p, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, p.Opt)
}
