package cpucaps

import (
	"fmt"
	"strconv"
)

// Attribute names used in errors.
const (
	AttrArchitecture   = "architecture"
	AttrCoreCount      = "core count"
	AttrVendor         = "vendor string"
	AttrIdentification = "family and model"
	AttrCapabilities   = "capabilities"
	AttrBrand          = "brand string"
	AttrVersion        = "library version"
)

// CPU is the capability facade. Each attribute is fetched from the backend
// on first use and cached for the lifetime of the CPU value. All methods
// are safe for concurrent use.
type CPU struct {
	backend  Backend
	wide     bool
	required Version

	version        cell[Version]
	architecture   cell[Architecture]
	coreCount      cell[uint32]
	vendor         cell[string]
	identification cell[Identification]
	capabilities   cell[Capabilities]
	brand          cell[string]
}

type options struct {
	narrow, wide Backend
	explicit     bool
	bits         int
	required     Version
}

// Option configures New.
type Option func(*options)

// WithBackends supplies the narrow (32-bit) and wide (64-bit) backends
// instead of the registered ones. Either may be nil.
func WithBackends(narrow, wide Backend) Option {
	return func(o *options) {
		o.narrow, o.wide = narrow, wide
		o.explicit = true
	}
}

// WithAddressWidth overrides the process address width used to select the
// backend variant.
func WithAddressWidth(bits int) Option {
	return func(o *options) { o.bits = bits }
}

// WithRequiredVersion overrides RequiredVersion for this facade.
func WithRequiredVersion(v Version) Option {
	return func(o *options) { o.required = v }
}

// New selects the backend for the process address width and returns a
// facade over it. No backend call is made until an attribute is queried.
func New(opts ...Option) (*CPU, error) {
	o := options{bits: strconv.IntSize, required: requiredVersion}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.explicit {
		o.narrow, o.wide = lookupBackend(ArchX86), lookupBackend(ArchX64)
	}

	b, wide, err := selectBackend(o.narrow, o.wide, o.bits)
	if err != nil {
		return nil, err
	}
	return &CPU{backend: b, wide: wide, required: o.required}, nil
}

// IsWideProcess reports whether the 64-bit backend variant was selected.
func (c *CPU) IsWideProcess() bool { return c.wide }

// RequiredVersion returns the backend version this facade requires.
func (c *CPU) RequiredVersion() Version { return c.required }

// BackendVersion returns the backend's interface version. It is not gated,
// so a mismatch can always be diagnosed.
func (c *CPU) BackendVersion() (Version, error) {
	v, err := c.version.get(func() (Version, error) {
		var packed uint32
		if err := c.call(AttrVersion, func() { packed = c.backend.LibraryVersion() }); err != nil {
			return Version{}, err
		}
		return UnpackVersion(packed), nil
	})
	if err != nil {
		return Version{}, fmt.Errorf("determine cpu %s: %w", AttrVersion, err)
	}
	return v, nil
}

// Architecture returns the variant reported by the backend.
func (c *CPU) Architecture() (Architecture, error) {
	v, err := c.architecture.get(func() (Architecture, error) {
		if _, err := c.verify(); err != nil {
			return 0, err
		}
		var arch uint32
		if err := c.call(AttrArchitecture, func() { arch = c.backend.Architecture() }); err != nil {
			return 0, err
		}
		return Architecture(arch), nil
	})
	if err != nil {
		return 0, fmt.Errorf("determine cpu %s: %w", AttrArchitecture, err)
	}
	return v, nil
}

// CoreCount returns the number of logical processors available.
func (c *CPU) CoreCount() (uint32, error) {
	v, err := c.coreCount.get(func() (uint32, error) {
		if _, err := c.verify(); err != nil {
			return 0, err
		}
		var n uint32
		if err := c.call(AttrCoreCount, func() { n = c.backend.CoreCount() }); err != nil {
			return 0, err
		}
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("determine cpu %s: %w", AttrCoreCount, err)
	}
	return v, nil
}

// Vendor returns the vendor identification string, e.g. "GenuineIntel".
func (c *CPU) Vendor() (string, error) {
	v, err := c.vendor.get(func() (string, error) {
		return c.text(AttrVendor, VendorBufferSize, c.backend.VendorString)
	})
	if err != nil {
		return "", fmt.Errorf("determine cpu %s: %w", AttrVendor, err)
	}
	return v, nil
}

// Brand returns the processor brand string.
func (c *CPU) Brand() (string, error) {
	v, err := c.brand.get(func() (string, error) {
		return c.text(AttrBrand, BrandBufferSize, c.backend.BrandString)
	})
	if err != nil {
		return "", fmt.Errorf("determine cpu %s: %w", AttrBrand, err)
	}
	return v, nil
}

// Identification returns the normalized family, model and stepping.
func (c *CPU) Identification() (Identification, error) {
	v, err := c.identification.get(func() (Identification, error) {
		if _, err := c.verify(); err != nil {
			return Identification{}, err
		}
		var (
			raw RawIdentification
			ok  bool
		)
		if err := c.call(AttrIdentification, func() { raw, ok = c.backend.Identification() }); err != nil {
			return Identification{}, err
		}
		if !ok {
			return Identification{}, &QueryFailedError{Attribute: AttrIdentification}
		}
		return NewIdentification(raw), nil
	})
	if err != nil {
		return Identification{}, fmt.Errorf("determine cpu %s: %w", AttrIdentification, err)
	}
	return v, nil
}

// Capabilities returns the supported instruction-set extensions, limited to
// the bits the backend's catalog generation defines.
func (c *CPU) Capabilities() (Capabilities, error) {
	v, err := c.capabilities.get(func() (Capabilities, error) {
		actual, err := c.verify()
		if err != nil {
			return 0, err
		}
		var mask uint64
		if err := c.call(AttrCapabilities, func() { mask = c.backend.Capabilities() }); err != nil {
			return 0, err
		}
		return Capabilities(mask) & CatalogMask(actual), nil
	})
	if err != nil {
		return 0, fmt.Errorf("determine cpu %s: %w", AttrCapabilities, err)
	}
	return v, nil
}

// verify runs the version gate and returns the version it checked.
func (c *CPU) verify() (Version, error) {
	actual, err := c.BackendVersion()
	if err != nil {
		return Version{}, err
	}
	if !Compatible(c.required, actual) {
		return Version{}, &VersionMismatchError{Required: c.required, Actual: actual}
	}
	return actual, nil
}

func (c *CPU) text(attr string, size int, fill func([]byte) bool) (string, error) {
	if _, err := c.verify(); err != nil {
		return "", err
	}
	buf := make([]byte, size)
	var ok bool
	if err := c.call(attr, func() { ok = fill(buf) }); err != nil {
		return "", err
	}
	if !ok {
		return "", &QueryFailedError{Attribute: attr}
	}
	return DecodeText(buf), nil
}

// call invokes fn, converting a backend panic into a *QueryFailedError.
func (c *CPU) call(attr string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			err = &QueryFailedError{Attribute: attr, Err: cause}
		}
	}()
	fn()
	return nil
}
