package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNetworkFilesystem is returned when the state database would live on a
// network mount, where SQLite file locking is unreliable.
var ErrNetworkFilesystem = errors.New("sqlite database must be on a local filesystem")

// fsProbe names the filesystem holding dir.
type fsProbe func(dir string) (string, error)

var remoteFilesystems = []string{"9p", "afpfs", "ceph", "cifs", "nfs", "nfs4", "smb2", "smbfs", "webdav"}

func requireLocalFilesystem(dbPath string) error {
	return checkLocalFilesystem(dbPath, filesystemName)
}

func checkLocalFilesystem(dbPath string, probe fsProbe) error {
	dir, err := existingAncestor(dbPath)
	if err != nil {
		return fmt.Errorf("resolve state path %q: %w", dbPath, err)
	}
	name, err := probe(dir)
	if err != nil {
		return fmt.Errorf("probe filesystem of %q: %w", dir, err)
	}
	if isRemoteFilesystem(name) {
		return fmt.Errorf("%w: %q is on %s; point state.path at a local disk", ErrNetworkFilesystem, dbPath, name)
	}
	return nil
}

// existingAncestor returns the deepest existing directory on the way to path.
// The database file itself usually does not exist before the first start.
func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		info, err := os.Stat(dir)
		switch {
		case err == nil && info.IsDir():
			return dir, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		if dir == filepath.Dir(dir) {
			return "", fmt.Errorf("no existing directory above %q", abs)
		}
	}
}

func isRemoteFilesystem(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, remote := range remoteFilesystems {
		if name == remote {
			return true
		}
	}
	return false
}
