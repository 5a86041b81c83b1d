package cpucaps

import (
	"fmt"
	"math/bits"
	"strings"
)

// Capabilities is a bitmask over the instruction-set catalog below. The
// catalog is append-only: a bit position, once assigned, keeps its meaning
// in every later backend version.
type Capabilities uint64

// Catalog generation 2.0.
const (
	Cap3DNow Capabilities = 1 << iota
	Cap3DNowExt
	CapAES
	CapAVX
	CapAVX2
	CapAVX512BW
	CapAVX512CD
	CapAVX512DQ
	CapAVX512ER
	CapAVX512F
	CapAVX512IFMA
	CapAVX512PF
	CapAVX512VL
	CapBMI1
	CapBMI2
	CapFMA3
	CapFMA4
	CapLZCNT
	CapMMX
	CapMMXExt
	CapPOPCNT
	CapRDRND
	CapRDSEED
	CapSHA
	CapSSE
	CapSSE2
	CapSSE3
	CapSSE41
	CapSSE42
	CapSSE4a
	CapSSSE3
	CapXOP

	// Catalog generation 2.1.
	CapADX
	CapAVX512VBMI
	CapAVX512VBMI2
	CapAVX512VNNI
	CapAVX512BITALG
	CapAVX512VPOPCNTDQ
	CapAVX512BF16
	CapAVX512FP16
	CapAVXVNNI
	CapAMXTile
	CapAMXBF16
	CapAMXINT8
	CapCX16
	CapF16C
	CapGFNI
	CapMOVBE
	CapPCLMULQDQ
	CapVAES
	CapVPCLMULQDQ
)

var catalog = []struct {
	cap  Capabilities
	name string
}{
	{Cap3DNow, "3DNOW"},
	{Cap3DNowExt, "3DNOWEXT"},
	{CapAES, "AES"},
	{CapAVX, "AVX"},
	{CapAVX2, "AVX2"},
	{CapAVX512BW, "AVX512_BW"},
	{CapAVX512CD, "AVX512_CD"},
	{CapAVX512DQ, "AVX512_DQ"},
	{CapAVX512ER, "AVX512_ER"},
	{CapAVX512F, "AVX512_F"},
	{CapAVX512IFMA, "AVX512_IFMA"},
	{CapAVX512PF, "AVX512_PF"},
	{CapAVX512VL, "AVX512_VL"},
	{CapBMI1, "BMI1"},
	{CapBMI2, "BMI2"},
	{CapFMA3, "FMA3"},
	{CapFMA4, "FMA4"},
	{CapLZCNT, "LZCNT"},
	{CapMMX, "MMX"},
	{CapMMXExt, "MMXEXT"},
	{CapPOPCNT, "POPCNT"},
	{CapRDRND, "RDRND"},
	{CapRDSEED, "RDSEED"},
	{CapSHA, "SHA"},
	{CapSSE, "SSE"},
	{CapSSE2, "SSE2"},
	{CapSSE3, "SSE3"},
	{CapSSE41, "SSE41"},
	{CapSSE42, "SSE42"},
	{CapSSE4a, "SSE4a"},
	{CapSSSE3, "SSSE3"},
	{CapXOP, "XOP"},
	{CapADX, "ADX"},
	{CapAVX512VBMI, "AVX512_VBMI"},
	{CapAVX512VBMI2, "AVX512_VBMI2"},
	{CapAVX512VNNI, "AVX512_VNNI"},
	{CapAVX512BITALG, "AVX512_BITALG"},
	{CapAVX512VPOPCNTDQ, "AVX512_VPOPCNTDQ"},
	{CapAVX512BF16, "AVX512_BF16"},
	{CapAVX512FP16, "AVX512_FP16"},
	{CapAVXVNNI, "AVX_VNNI"},
	{CapAMXTile, "AMX_TILE"},
	{CapAMXBF16, "AMX_BF16"},
	{CapAMXINT8, "AMX_INT8"},
	{CapCX16, "CX16"},
	{CapF16C, "F16C"},
	{CapGFNI, "GFNI"},
	{CapMOVBE, "MOVBE"},
	{CapPCLMULQDQ, "PCLMULQDQ"},
	{CapVAES, "VAES"},
	{CapVPCLMULQDQ, "VPCLMULQDQ"},
}

// catalogGenerations maps a backend minor version (major 2) to the highest
// bit that generation defines.
var catalogGenerations = map[uint16]Capabilities{
	0: CapXOP,
	1: CapVPCLMULQDQ,
}

// Has reports whether every bit of want is set.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// Count returns the number of set bits.
func (c Capabilities) Count() int {
	return bits.OnesCount64(uint64(c))
}

// Names returns the catalog names of the set bits in catalog order. Bits
// the catalog does not know yet are omitted.
func (c Capabilities) Names() []string {
	var names []string
	for _, e := range catalog {
		if c&e.cap != 0 {
			names = append(names, e.name)
		}
	}
	return names
}

// Unknown returns the set bits that have no catalog entry, as reported by a
// backend newer than this package.
func (c Capabilities) Unknown() Capabilities {
	known := Capabilities(0)
	for _, e := range catalog {
		known |= e.cap
	}
	return c &^ known
}

func (c Capabilities) String() string {
	if c == 0 {
		return "0"
	}
	parts := c.Names()
	if unknown := c.Unknown(); unknown != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(unknown)))
	}
	return strings.Join(parts, "|")
}

// CatalogMask returns the bits a backend at v may set. A 2.0 backend
// reports a 32-bit mask, so anything above bit 31 is discarded. Minor
// versions newer than this package know about keep every bit.
func CatalogMask(v Version) Capabilities {
	if v.Major != requiredVersion.Major {
		return ^Capabilities(0)
	}
	highest, ok := catalogGenerations[v.Minor]
	if !ok {
		return ^Capabilities(0)
	}
	return highest<<1 - 1
}

// ParseCapability looks up a catalog entry by name. Matching ignores case,
// underscores, dots and an optional "CPU_" prefix, so "avx512f",
// "AVX512_F" and "CPU_AVX512_F" are equivalent.
func ParseCapability(name string) (Capabilities, error) {
	want := canonicalName(name)
	for _, e := range catalog {
		if canonicalName(e.name) == want {
			return e.cap, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", name)
}

func canonicalName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "CPU_")
	return strings.NewReplacer("_", "", ".", "", "-", "").Replace(name)
}
