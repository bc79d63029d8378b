//go:build linux

package resource

import "golang.org/x/sys/unix"

func freePhysicalMemory() (int64, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	unit := int64(info.Unit)
	if unit == 0 {
		unit = 1
	}

	return (int64(info.Freeram) + int64(info.Bufferram)) * unit, true //nolint: gosec
}
