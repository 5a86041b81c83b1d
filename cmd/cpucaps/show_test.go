package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
	"github.com/go-tangra/go-tangra-cpucaps/internal/platform"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
)

func TestPrinterComplete(t *testing.T) {
	snap := &snapshot.Snapshot{
		WideProcess:    true,
		Architecture:   "x64",
		CoreCount:      12,
		Vendor:         "GenuineIntel",
		Brand:          "Intel(R) Core(TM) i7-8700K CPU @ 3.70GHz",
		Identification: &snapshot.Identification{Family: 6, Model: 158, Stepping: 10},
		Capabilities:   uint64(cpucaps.CapAVX | cpucaps.CapSSE2),
		BackendVersion: "2.1",
	}

	var out, errOut bytes.Buffer
	newPrinter(&out, &errOut, false).snapshot(snap)

	want := `[CPUCapabilities]
Architecture: x64
Count: 12
VendorString: "GenuineIntel"
BrandString: "Intel(R) Core(TM) i7-8700K CPU @ 3.70GHz"
FamilyAndModel: Family=6, Model=158, Stepping=10
Capabilities: AVX|SSE2

[Debug]
IsX64Process: true
BackendVersion: 2.1

`
	if got := out.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
	if errOut.Len() != 0 {
		t.Errorf("stderr = %q, want empty", errOut.String())
	}
}

func TestPrinterFailuresAndEmpty(t *testing.T) {
	snap := &snapshot.Snapshot{
		Architecture: "x86",
		CoreCount:    4,
		Errors: map[string]string{
			cpucaps.AttrVendor:         "determine cpu vendor string: backend query failed",
			cpucaps.AttrIdentification: "determine cpu family and model: backend query failed",
		},
	}

	var out, errOut bytes.Buffer
	newPrinter(&out, &errOut, false).snapshot(snap)

	if strings.Contains(out.String(), "VendorString") || strings.Contains(out.String(), "FamilyAndModel") {
		t.Errorf("failed attributes printed on stdout:\n%s", out.String())
	}
	if !strings.Contains(out.String(), `BrandString: "N/A"`) {
		t.Errorf("empty brand not shown as N/A:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Capabilities: 0") {
		t.Errorf("empty capabilities not shown as 0:\n%s", out.String())
	}
	for _, label := range []string{"Error: VendorString: ", "Error: FamilyAndModel: "} {
		if !strings.Contains(errOut.String(), label) {
			t.Errorf("stderr missing %q:\n%s", label, errOut.String())
		}
	}
}

func TestPrinterPlatform(t *testing.T) {
	snap := &snapshot.Snapshot{
		Processors: []platform.Processor{
			{Socket: "CPU0", Version: "Intel(R) Xeon(R) Gold 6338 ", Populated: true, CoreCount: 32, ThreadCount: 64, MaxSpeedMHz: 3200},
			{Socket: "CPU1"},
		},
	}

	var out, errOut bytes.Buffer
	newPrinter(&out, &errOut, false).snapshot(snap)

	for _, want := range []string{
		"[Platform]",
		"Sockets: 2",
		"CPU0: Intel(R) Xeon(R) Gold 6338 (32 cores, 64 threads, 3200 MHz max)",
		"CPU1: empty",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
