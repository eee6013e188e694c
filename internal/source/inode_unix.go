//go:build unix

package source

import (
	"os"
	"syscall"
)

func inode(info os.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return 0, false
	}
	return uint64(st.Ino), true
}
