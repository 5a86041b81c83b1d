package snapshot

import (
	"time"

	"github.com/go-tangra/go-tangra-cpucaps/internal/platform"
)

// Snapshot holds every facade attribute of one host at one point in time.
// Attributes that could not be determined keep their zero value and have
// an entry in Errors keyed by attribute name.
type Snapshot struct {
	ID              string               `json:"id" cbor:"id"`
	CollectedAt     time.Time            `json:"collected_at" cbor:"collected_at"`
	Hostname        string               `json:"hostname" cbor:"hostname"`
	WideProcess     bool                 `json:"wide_process" cbor:"wide_process"`
	Architecture    string               `json:"architecture" cbor:"architecture"`
	CoreCount       uint32               `json:"core_count" cbor:"core_count"`
	Vendor          string               `json:"vendor" cbor:"vendor"`
	Brand           string               `json:"brand" cbor:"brand"`
	Identification  *Identification      `json:"identification,omitempty" cbor:"identification,omitempty"`
	Capabilities    uint64               `json:"capabilities" cbor:"capabilities"`
	CapabilityNames []string             `json:"capability_names" cbor:"capability_names"`
	BackendVersion  string               `json:"backend_version" cbor:"backend_version"`
	Processors      []platform.Processor `json:"processors,omitempty" cbor:"processors,omitempty"`
	Errors          map[string]string    `json:"errors,omitempty" cbor:"errors,omitempty"`
}

// Identification is the serialized form of cpucaps.Identification,
// carrying both the composed and the raw fields.
type Identification struct {
	Type      uint8  `json:"type" cbor:"type"`
	Family    uint32 `json:"family" cbor:"family"`
	Model     uint32 `json:"model" cbor:"model"`
	Stepping  uint8  `json:"stepping" cbor:"stepping"`
	FamilyRaw uint8  `json:"family_raw" cbor:"family_raw"`
	FamilyExt uint8  `json:"family_ext" cbor:"family_ext"`
	ModelRaw  uint8  `json:"model_raw" cbor:"model_raw"`
	ModelExt  uint8  `json:"model_ext" cbor:"model_ext"`
}

// Complete reports whether every attribute was determined.
func (s *Snapshot) Complete() bool {
	return len(s.Errors) == 0
}
