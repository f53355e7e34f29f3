//go:build linux

package system

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// meminfoPath is where MemAvailable is read from; Sysinfo has no field for
// reclaimable page cache.
var meminfoPath = "/proc/meminfo"

// Memory returns available and total physical memory. Available prefers
// the kernel's MemAvailable estimate and falls back to free plus buffers.
func (MemoryProbe) Memory() (available, total uint64, err error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, 0, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total = uint64(info.Totalram) * unit

	if avail, ok := memAvailable(meminfoPath); ok {
		return min(avail, total), total, nil
	}
	return (uint64(info.Freeram) + uint64(info.Bufferram)) * unit, total, nil
}

// memAvailable reads MemAvailable in bytes from a meminfo file.
func memAvailable(path string) (uint64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "MemAvailable:" {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}
