//go:build !linux

package timestamps

import "os"

// fileTimes falls back to the modification time for both fields on
// platforms where the change time is not exposed through os.FileInfo.
func fileTimes(info os.FileInfo) (ctimeNS, mtimeNS int64) {
	mtimeNS = info.ModTime().UnixNano()
	return mtimeNS, mtimeNS
}
