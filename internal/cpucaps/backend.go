package cpucaps

import (
	"fmt"
	"sort"
	"sync"
)

// Buffer sizes the facade hands to backends.
const (
	VendorBufferSize = 13
	BrandBufferSize  = 48
)

// Architecture identifies the backend variant that answers queries.
type Architecture uint32

const (
	ArchX86 Architecture = 0x1
	ArchX64 Architecture = 0x2
)

func (a Architecture) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchX64:
		return "x64"
	default:
		return fmt.Sprintf("Architecture(0x%x)", uint32(a))
	}
}

// Bits returns the address width served by the variant, or 0.
func (a Architecture) Bits() int {
	switch a {
	case ArchX86:
		return 32
	case ArchX64:
		return 64
	default:
		return 0
	}
}

// ArchitectureForWidth maps a process address width to the backend
// variant that serves it.
func ArchitectureForWidth(bits int) (Architecture, bool) {
	switch bits {
	case 32:
		return ArchX86, true
	case 64:
		return ArchX64, true
	default:
		return 0, false
	}
}

// Backend is the raw data source for one process address width. Both
// variants expose the same contract. Boolean results report whether the
// backend could determine the attribute at all; a true result with an
// empty buffer is a legitimate empty value.
type Backend interface {
	Architecture() uint32
	CoreCount() uint32
	// VendorString fills buf (VendorBufferSize bytes).
	VendorString(buf []byte) bool
	Identification() (RawIdentification, bool)
	Capabilities() uint64
	// BrandString fills buf (BrandBufferSize bytes).
	BrandString(buf []byte) bool
	// LibraryVersion returns the interface version packed as
	// (major<<16)|minor.
	LibraryVersion() uint32
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[Architecture]Backend)
)

// Register makes a backend available for the given variant. It is meant
// to be called from the init function of a backend package and panics if
// called twice for the same variant or with a nil backend.
func Register(arch Architecture, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if b == nil {
		panic("cpucaps: Register backend is nil")
	}
	if _, dup := backends[arch]; dup {
		panic("cpucaps: Register called twice for " + arch.String())
	}
	backends[arch] = b
}

// Registered lists the variants with a registered backend.
func Registered() []Architecture {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	list := make([]Architecture, 0, len(backends))
	for arch := range backends {
		list = append(list, arch)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

func lookupBackend(arch Architecture) Backend {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return backends[arch]
}

// selectBackend picks the variant for the address width once. A missing
// variant is an error, never a fallback to the other one.
func selectBackend(narrow, wide Backend, bits int) (Backend, bool, error) {
	arch, ok := ArchitectureForWidth(bits)
	if !ok {
		return nil, false, fmt.Errorf("%w: unsupported address width %d", ErrBackendUnavailable, bits)
	}

	b := narrow
	if arch == ArchX64 {
		b = wide
	}
	if b == nil {
		return nil, false, fmt.Errorf("%w: no %s backend", ErrBackendUnavailable, arch)
	}
	return b, arch == ArchX64, nil
}
