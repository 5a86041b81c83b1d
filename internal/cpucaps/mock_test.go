package cpucaps

import (
	"sync/atomic"
	"time"
)

// mockBackend is a configurable Backend that counts every call.
type mockBackend struct {
	arch     uint32
	cores    uint32
	vendor   []byte
	vendorOK bool
	raw      RawIdentification
	rawOK    bool
	caps     uint64
	brand    []byte
	brandOK  bool
	version  uint32
	delay    time.Duration
	panicOn  string

	archCalls    atomic.Int32
	coreCalls    atomic.Int32
	vendorCalls  atomic.Int32
	identCalls   atomic.Int32
	capsCalls    atomic.Int32
	brandCalls   atomic.Int32
	versionCalls atomic.Int32
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		arch:     uint32(ArchX64),
		cores:    16,
		vendor:   []byte("GenuineIntel\x00"),
		vendorOK: true,
		raw:      RawIdentification{Family: 6, Model: 0xE, ModelExt: 0x9, Stepping: 10},
		rawOK:    true,
		caps:     uint64(CapSSE | CapSSE2 | CapAVX | CapAVX2),
		brand:    []byte("Intel(R) Core(TM) i7-8700K CPU @ 3.70GHz\x00"),
		brandOK:  true,
		version:  Version{Major: 2, Minor: 1}.Pack(),
	}
}

func (m *mockBackend) maybePanic(attr string) {
	if m.panicOn == attr {
		panic("backend fault in " + attr)
	}
}

func (m *mockBackend) Architecture() uint32 {
	m.archCalls.Add(1)
	m.maybePanic(AttrArchitecture)
	return m.arch
}

func (m *mockBackend) CoreCount() uint32 {
	m.coreCalls.Add(1)
	m.maybePanic(AttrCoreCount)
	return m.cores
}

func (m *mockBackend) VendorString(buf []byte) bool {
	m.vendorCalls.Add(1)
	m.maybePanic(AttrVendor)
	copy(buf, m.vendor)
	return m.vendorOK
}

func (m *mockBackend) Identification() (RawIdentification, bool) {
	m.identCalls.Add(1)
	m.maybePanic(AttrIdentification)
	return m.raw, m.rawOK
}

func (m *mockBackend) Capabilities() uint64 {
	m.capsCalls.Add(1)
	m.maybePanic(AttrCapabilities)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.caps
}

func (m *mockBackend) BrandString(buf []byte) bool {
	m.brandCalls.Add(1)
	m.maybePanic(AttrBrand)
	copy(buf, m.brand)
	return m.brandOK
}

func (m *mockBackend) LibraryVersion() uint32 {
	m.versionCalls.Add(1)
	m.maybePanic(AttrVersion)
	return m.version
}
