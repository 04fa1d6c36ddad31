//go:build linux

package timestamps

import (
	"os"
	"syscall"
)

// fileTimes extracts change and modification time in nanoseconds. Linux has
// no portable birth time; ctime is the closest analogue to what the
// application recorded on its original host.
func fileTimes(info os.FileInfo) (ctimeNS, mtimeNS int64) {
	mtimeNS = info.ModTime().UnixNano()
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		ctimeNS = st.Ctim.Sec*1e9 + st.Ctim.Nsec
		return ctimeNS, mtimeNS
	}
	return mtimeNS, mtimeNS
}
