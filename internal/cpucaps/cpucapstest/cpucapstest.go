// Package cpucapstest provides a fixed in-memory cpucaps backend for tests
// of packages built on the facade.
package cpucapstest

import (
	"testing"

	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
)

// Backend reports the values in its fields. Fail lists attribute names
// (cpucaps.Attr*) whose query reports failure; only vendor, brand and
// identification can fail this way.
type Backend struct {
	Arch    cpucaps.Architecture
	Cores   uint32
	Vendor  string
	Brand   string
	Raw     cpucaps.RawIdentification
	Caps    cpucaps.Capabilities
	Version cpucaps.Version
	Fail    map[string]bool
}

// Intel returns a backend describing a Coffee Lake desktop part.
func Intel() *Backend {
	return &Backend{
		Arch:    cpucaps.ArchX64,
		Cores:   12,
		Vendor:  "GenuineIntel",
		Brand:   "Intel(R) Core(TM) i7-8700K CPU @ 3.70GHz",
		Raw:     cpucaps.RawIdentification{Family: 6, Model: 0xE, ModelExt: 0x9, Stepping: 10},
		Caps:    cpucaps.CapSSE | cpucaps.CapSSE2 | cpucaps.CapSSE41 | cpucaps.CapAVX | cpucaps.CapAVX2 | cpucaps.CapAES,
		Version: cpucaps.Version{Major: 2, Minor: 1},
	}
}

// CPU returns a facade over b for both address widths.
func (b *Backend) CPU(tb testing.TB) *cpucaps.CPU {
	tb.Helper()
	cpu, err := cpucaps.New(cpucaps.WithBackends(b, b))
	if err != nil {
		tb.Fatalf("cpucaps.New: %v", err)
	}
	return cpu
}

func (b *Backend) Architecture() uint32 { return uint32(b.Arch) }

func (b *Backend) CoreCount() uint32 { return b.Cores }

func (b *Backend) VendorString(buf []byte) bool {
	return b.fill(cpucaps.AttrVendor, buf, b.Vendor)
}

func (b *Backend) Identification() (cpucaps.RawIdentification, bool) {
	return b.Raw, !b.Fail[cpucaps.AttrIdentification]
}

func (b *Backend) Capabilities() uint64 { return uint64(b.Caps) }

func (b *Backend) BrandString(buf []byte) bool {
	return b.fill(cpucaps.AttrBrand, buf, b.Brand)
}

func (b *Backend) LibraryVersion() uint32 { return b.Version.Pack() }

func (b *Backend) fill(attr string, buf []byte, s string) bool {
	clear(buf)
	if b.Fail[attr] {
		return false
	}
	copy(buf[:len(buf)-1], s)
	return true
}
