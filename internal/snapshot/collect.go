// Package snapshot gathers all cpucaps attributes into one serializable
// value for printing, storage and the HTTP API.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
	"github.com/go-tangra/go-tangra-cpucaps/internal/platform"
)

// Source is the read-only facade surface a snapshot is taken from.
// *cpucaps.CPU implements it.
type Source interface {
	IsWideProcess() bool
	Architecture() (cpucaps.Architecture, error)
	CoreCount() (uint32, error)
	Vendor() (string, error)
	Brand() (string, error)
	Identification() (cpucaps.Identification, error)
	Capabilities() (cpucaps.Capabilities, error)
	BackendVersion() (cpucaps.Version, error)
}

// Options controls optional parts of a snapshot.
type Options struct {
	// Processors, when set, is called to add SMBIOS socket information.
	// Its failure is recorded like any other attribute failure.
	Processors func() ([]platform.Processor, error)
}

// WithPlatform returns Options that read SMBIOS through package platform.
func WithPlatform() Options {
	return Options{Processors: platform.Processors}
}

// Collect queries every attribute of src. It always returns a snapshot;
// attributes that failed are listed in Snapshot.Errors and the joined
// errors are returned alongside.
func Collect(src Source, opts Options) (*Snapshot, error) {
	hostname, _ := os.Hostname()

	snap := &Snapshot{
		ID:          uuid.NewString(),
		CollectedAt: time.Now().UTC(),
		Hostname:    hostname,
		WideProcess: src.IsWideProcess(),
	}

	var errs []error
	record := func(attr string, err error) {
		if snap.Errors == nil {
			snap.Errors = make(map[string]string)
		}
		snap.Errors[attr] = err.Error()
		errs = append(errs, err)
	}

	if v, err := src.BackendVersion(); err != nil {
		record(cpucaps.AttrVersion, err)
	} else {
		snap.BackendVersion = v.String()
	}

	if arch, err := src.Architecture(); err != nil {
		record(cpucaps.AttrArchitecture, err)
	} else {
		snap.Architecture = arch.String()
	}

	if n, err := src.CoreCount(); err != nil {
		record(cpucaps.AttrCoreCount, err)
	} else {
		snap.CoreCount = n
	}

	if v, err := src.Vendor(); err != nil {
		record(cpucaps.AttrVendor, err)
	} else {
		snap.Vendor = v
	}

	if v, err := src.Brand(); err != nil {
		record(cpucaps.AttrBrand, err)
	} else {
		snap.Brand = v
	}

	if id, err := src.Identification(); err != nil {
		record(cpucaps.AttrIdentification, err)
	} else {
		snap.Identification = fromIdentification(id)
	}

	if caps, err := src.Capabilities(); err != nil {
		record(cpucaps.AttrCapabilities, err)
	} else {
		snap.Capabilities = uint64(caps)
		snap.CapabilityNames = caps.Names()
	}

	if opts.Processors != nil {
		procs, err := opts.Processors()
		if err != nil {
			record("processors", err)
		}
		snap.Processors = procs
	}

	if len(errs) > 0 {
		return snap, fmt.Errorf("collect cpu snapshot: %w", errors.Join(errs...))
	}
	return snap, nil
}

func fromIdentification(id cpucaps.Identification) *Identification {
	raw := id.Raw()
	return &Identification{
		Type:      raw.Type,
		Family:    id.Family(),
		Model:     id.Model(),
		Stepping:  raw.Stepping,
		FamilyRaw: raw.Family,
		FamilyExt: raw.FamilyExt,
		ModelRaw:  raw.Model,
		ModelExt:  raw.ModelExt,
	}
}

// Identification rebuilds the cpucaps view from the stored raw fields.
func (i *Identification) Identification() cpucaps.Identification {
	return cpucaps.NewIdentification(cpucaps.RawIdentification{
		Type:      i.Type,
		Family:    i.FamilyRaw,
		FamilyExt: i.FamilyExt,
		Model:     i.ModelRaw,
		ModelExt:  i.ModelExt,
		Stepping:  i.Stepping,
	})
}
