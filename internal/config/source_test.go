package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  main_key: first\n"), 0644))

	src, err := NewFileSource(path)
	require.NoError(t, err)

	cfg, err := src.Current()
	require.NoError(t, err)
	assert.Equal(t, "first", cfg.Session.MainKey)
	firstPrint := cfg.Fingerprint

	require.NoError(t, os.WriteFile(path, []byte("session:\n  main_key: second-key\n"), 0644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	cfg, err = src.Current()
	require.NoError(t, err)
	assert.Equal(t, "second-key", cfg.Session.MainKey)
	assert.NotEqual(t, firstPrint, cfg.Fingerprint)
}

func TestFileSource_KeepsLastGoodConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  main_key: good\n"), 0644))

	src, err := NewFileSource(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("session:\n  scope: nonsense\n"), 0644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	cfg, err := src.Current()
	require.NoError(t, err)
	assert.Equal(t, "good", cfg.Session.MainKey)
}

func TestStaticSource(t *testing.T) {
	_, err := StaticSource{}.Current()
	assert.Error(t, err)

	want := Defaults()
	got, err := StaticSource{Config: want}.Current()
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestFingerprint_MatchesFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	data := []byte("service:\n  name: x\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	fromFile, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(data), fromFile)
	assert.Len(t, fromFile, 64)
}
