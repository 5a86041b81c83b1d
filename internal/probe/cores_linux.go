//go:build linux

package probe

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// coreCount returns the number of CPUs in the process affinity set.
func coreCount() uint32 {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return uint32(runtime.NumCPU())
	}
	return uint32(set.Count())
}
