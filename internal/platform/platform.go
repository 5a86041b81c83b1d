// Package platform reads processor socket information from the SMBIOS
// tables. It complements the instruction-level view of cpucaps with what
// the firmware reports about each physical package.
package platform

import (
	"fmt"
	"strings"

	"github.com/siderolabs/go-smbios/smbios"
)

// Processor describes one SMBIOS type 4 structure.
type Processor struct {
	Socket          string `json:"socket" cbor:"socket"`
	Manufacturer    string `json:"manufacturer" cbor:"manufacturer"`
	Version         string `json:"version" cbor:"version"`
	MaxSpeedMHz     uint16 `json:"max_speed_mhz" cbor:"max_speed_mhz"`
	CurrentSpeedMHz uint16 `json:"current_speed_mhz" cbor:"current_speed_mhz"`
	Populated       bool   `json:"populated" cbor:"populated"`
	CoreCount       uint8  `json:"core_count" cbor:"core_count"`
	CoreEnabled     uint8  `json:"core_enabled" cbor:"core_enabled"`
	ThreadCount     uint8  `json:"thread_count" cbor:"thread_count"`
}

// Processors decodes the host SMBIOS tables. Reading them usually requires
// elevated privileges; the error is returned as is.
func Processors() ([]Processor, error) {
	s, err := smbios.New()
	if err != nil {
		return nil, fmt.Errorf("read smbios: %w", err)
	}
	return fromSMBIOS(s.ProcessorInformation), nil
}

func fromSMBIOS(infos []smbios.ProcessorInformation) []Processor {
	result := make([]Processor, 0, len(infos))
	for _, p := range infos {
		result = append(result, Processor{
			Socket:          strings.TrimSpace(p.SocketDesignation),
			Manufacturer:    strings.TrimSpace(p.ProcessorManufacturer),
			Version:         strings.TrimSpace(p.ProcessorVersion),
			MaxSpeedMHz:     p.MaxSpeed,
			CurrentSpeedMHz: p.CurrentSpeed,
			Populated:       p.Status.SocketPopulated(),
			CoreCount:       p.CoreCount,
			CoreEnabled:     p.CoreEnabled,
			ThreadCount:     p.ThreadCount,
		})
	}
	return result
}
