package probe

import (
	"github.com/klauspost/cpuid/v2"

	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
)

var featureBits = []struct {
	id  cpuid.FeatureID
	cap cpucaps.Capabilities
}{
	{cpuid.AMD3DNOW, cpucaps.Cap3DNow},
	{cpuid.AMD3DNOWEXT, cpucaps.Cap3DNowExt},
	{cpuid.AESNI, cpucaps.CapAES},
	{cpuid.AVX, cpucaps.CapAVX},
	{cpuid.AVX2, cpucaps.CapAVX2},
	{cpuid.AVX512BW, cpucaps.CapAVX512BW},
	{cpuid.AVX512CD, cpucaps.CapAVX512CD},
	{cpuid.AVX512DQ, cpucaps.CapAVX512DQ},
	{cpuid.AVX512ER, cpucaps.CapAVX512ER},
	{cpuid.AVX512F, cpucaps.CapAVX512F},
	{cpuid.AVX512IFMA, cpucaps.CapAVX512IFMA},
	{cpuid.AVX512PF, cpucaps.CapAVX512PF},
	{cpuid.AVX512VL, cpucaps.CapAVX512VL},
	{cpuid.BMI1, cpucaps.CapBMI1},
	{cpuid.BMI2, cpucaps.CapBMI2},
	{cpuid.FMA3, cpucaps.CapFMA3},
	{cpuid.FMA4, cpucaps.CapFMA4},
	{cpuid.LZCNT, cpucaps.CapLZCNT},
	{cpuid.MMX, cpucaps.CapMMX},
	{cpuid.MMXEXT, cpucaps.CapMMXExt},
	{cpuid.POPCNT, cpucaps.CapPOPCNT},
	{cpuid.RDRAND, cpucaps.CapRDRND},
	{cpuid.RDSEED, cpucaps.CapRDSEED},
	{cpuid.SHA, cpucaps.CapSHA},
	{cpuid.SSE, cpucaps.CapSSE},
	{cpuid.SSE2, cpucaps.CapSSE2},
	{cpuid.SSE3, cpucaps.CapSSE3},
	{cpuid.SSE4, cpucaps.CapSSE41},
	{cpuid.SSE42, cpucaps.CapSSE42},
	{cpuid.SSE4A, cpucaps.CapSSE4a},
	{cpuid.SSSE3, cpucaps.CapSSSE3},
	{cpuid.XOP, cpucaps.CapXOP},
	{cpuid.ADX, cpucaps.CapADX},
	{cpuid.AVX512VBMI, cpucaps.CapAVX512VBMI},
	{cpuid.AVX512VBMI2, cpucaps.CapAVX512VBMI2},
	{cpuid.AVX512VNNI, cpucaps.CapAVX512VNNI},
	{cpuid.AVX512BITALG, cpucaps.CapAVX512BITALG},
	{cpuid.AVX512VPOPCNTDQ, cpucaps.CapAVX512VPOPCNTDQ},
	{cpuid.AVX512BF16, cpucaps.CapAVX512BF16},
	{cpuid.AVX512FP16, cpucaps.CapAVX512FP16},
	{cpuid.AVXVNNI, cpucaps.CapAVXVNNI},
	{cpuid.AMXTILE, cpucaps.CapAMXTile},
	{cpuid.AMXBF16, cpucaps.CapAMXBF16},
	{cpuid.AMXINT8, cpucaps.CapAMXINT8},
	{cpuid.CX16, cpucaps.CapCX16},
	{cpuid.F16C, cpucaps.CapF16C},
	{cpuid.GFNI, cpucaps.CapGFNI},
	{cpuid.MOVBE, cpucaps.CapMOVBE},
	{cpuid.CLMUL, cpucaps.CapPCLMULQDQ},
	{cpuid.VAES, cpucaps.CapVAES},
	{cpuid.VPCLMULQDQ, cpucaps.CapVPCLMULQDQ},
}

// capabilitiesOf maps detected features to catalog bits.
func capabilitiesOf(has func(cpuid.FeatureID) bool) cpucaps.Capabilities {
	var caps cpucaps.Capabilities
	for _, f := range featureBits {
		if has(f.id) {
			caps |= f.cap
		}
	}
	return caps
}
