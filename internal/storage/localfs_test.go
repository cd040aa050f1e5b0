package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeReturning(name string, seen *string) fsProbe {
	return func(dir string) (string, error) {
		if seen != nil {
			*seen = dir
		}
		return name, nil
	}
}

func TestCheckLocalFilesystem(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	require.NoError(t, checkLocalFilesystem(dbPath, probeReturning("apfs", nil)))
	require.NoError(t, checkLocalFilesystem(dbPath, probeReturning("local", nil)))

	err := checkLocalFilesystem(dbPath, probeReturning("NFS", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkFilesystem)
	assert.Contains(t, err.Error(), "state.path")
}

func TestCheckLocalFilesystem_ProbesNearestExistingDir(t *testing.T) {
	root := t.TempDir()
	var seen string
	require.NoError(t, checkLocalFilesystem(filepath.Join(root, "a", "b", "state.db"), probeReturning("ext4", &seen)))
	assert.Equal(t, root, seen)
}

func TestCheckLocalFilesystem_ProbeError(t *testing.T) {
	err := checkLocalFilesystem(filepath.Join(t.TempDir(), "state.db"), func(string) (string, error) {
		return "", errors.New("statfs failed")
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNetworkFilesystem)
	assert.Contains(t, err.Error(), "statfs failed")
}

func TestIsRemoteFilesystem(t *testing.T) {
	for _, name := range []string{"nfs", " smbfs ", "CIFS", "9p", "ceph"} {
		assert.True(t, isRemoteFilesystem(name), name)
	}
	for _, name := range []string{"apfs", "ext4", "local", "unknown", ""} {
		assert.False(t, isRemoteFilesystem(name), name)
	}
}

func TestRequireLocalFilesystem_TempDir(t *testing.T) {
	require.NoError(t, requireLocalFilesystem(filepath.Join(t.TempDir(), "state.db")))
}
