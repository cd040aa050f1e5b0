//go:build linux

package storage

import "golang.org/x/sys/unix"

// statfs f_type values of the remote filesystems we refuse.
var linuxMagicNames = map[uint32]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smbfs",
	0xFE534D42: "smb2",
	0x01021997: "9p",
	0x00C36400: "ceph",
}

func filesystemName(dir string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return "", err
	}
	if name, ok := linuxMagicNames[uint32(st.Type)]; ok {
		return name, nil
	}
	return "local", nil
}
