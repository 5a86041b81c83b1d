// Package probe provides the narrow (32-bit) and wide (64-bit) cpucaps
// backends. Importing it registers both variants with cpucaps:
//
//	import _ "github.com/go-tangra/go-tangra-cpucaps/internal/probe"
//
// Identification data comes from github.com/klauspost/cpuid/v2 and is
// handed to cpucaps in raw base/extended form, so cpucaps stays the only
// place that composes family and model.
package probe

import (
	"github.com/klauspost/cpuid/v2"

	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
)

// Interface version implemented by this package.
const (
	VersionMajor = 2
	VersionMinor = 1
)

func init() {
	cpucaps.Register(cpucaps.ArchX86, Narrow())
	cpucaps.Register(cpucaps.ArchX64, Wide())
}

// Narrow returns the backend serving 32-bit processes.
func Narrow() cpucaps.Backend {
	return newBackend(cpucaps.ArchX86, &cpuid.CPU, coreCount)
}

// Wide returns the backend serving 64-bit processes.
func Wide() cpucaps.Backend {
	return newBackend(cpucaps.ArchX64, &cpuid.CPU, coreCount)
}

type backend struct {
	arch  cpucaps.Architecture
	info  *cpuid.CPUInfo
	cores func() uint32
}

func newBackend(arch cpucaps.Architecture, info *cpuid.CPUInfo, cores func() uint32) *backend {
	return &backend{arch: arch, info: info, cores: cores}
}

func (b *backend) LibraryVersion() uint32 {
	return cpucaps.Version{Major: VersionMajor, Minor: VersionMinor}.Pack()
}

func (b *backend) Architecture() uint32 {
	return uint32(b.arch)
}

func (b *backend) CoreCount() uint32 {
	return b.cores()
}

func (b *backend) VendorString(buf []byte) bool {
	return fillString(buf, cpucaps.VendorBufferSize, b.info.VendorString)
}

func (b *backend) BrandString(buf []byte) bool {
	return fillString(buf, cpucaps.BrandBufferSize, b.info.BrandName)
}

func (b *backend) Identification() (cpucaps.RawIdentification, bool) {
	return rawIdentification(b.info.Family, b.info.Model, b.info.Stepping)
}

func (b *backend) Capabilities() uint64 {
	return uint64(capabilitiesOf(b.info.Has))
}

// fillString writes s into buf with a terminating NUL. A buffer smaller
// than size, or an empty s, reports failure with buf[0] cleared.
func fillString(buf []byte, size int, s string) bool {
	if len(buf) < size || s == "" {
		if len(buf) != 0 {
			buf[0] = 0
		}
		return false
	}

	clear(buf[:size])
	copy(buf[:size-1], s)
	return true
}

// rawIdentification splits a composed family/model back into base and
// extended fields. The probe library reports the composed values; the
// split is exact for every value it can produce.
func rawIdentification(family, model, stepping int) (cpucaps.RawIdentification, bool) {
	if family <= 0 {
		return cpucaps.RawIdentification{}, false
	}

	var raw cpucaps.RawIdentification
	if family >= 0xF {
		raw.Family = 0xF
		raw.FamilyExt = uint8(min(family-0xF, 0xFF))
	} else {
		raw.Family = uint8(family)
	}

	if raw.Family == 0x6 || raw.Family == 0xF {
		raw.Model = uint8(model & 0xF)
		raw.ModelExt = uint8((model >> 4) & 0xF)
	} else {
		raw.Model = uint8(model & 0xF)
	}
	raw.Stepping = uint8(stepping & 0xF)
	return raw, true
}
