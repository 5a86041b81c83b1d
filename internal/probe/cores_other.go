//go:build !linux

package probe

import "runtime"

// coreCount returns the number of logical CPUs usable by the process.
func coreCount() uint32 {
	return uint32(runtime.NumCPU())
}
