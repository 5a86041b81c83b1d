package cpucaps

import "fmt"

// RawIdentification holds the processor signature fields exactly as the
// backend reported them, before extended-field composition.
type RawIdentification struct {
	Type      uint8
	Family    uint8
	FamilyExt uint8
	Model     uint8
	ModelExt  uint8
	Stepping  uint8
}

// Normalize composes the displayed family and model from the base and
// extended fields. The extended family is added only for base family 0xF;
// the extended model is prepended only for base families 0x6 and 0xF.
func Normalize(raw RawIdentification) (family, model uint32) {
	family = uint32(raw.Family)
	if raw.Family == 0xF {
		family += uint32(raw.FamilyExt)
	}

	model = uint32(raw.Model)
	if raw.Family == 0x6 || raw.Family == 0xF {
		model += uint32(raw.ModelExt) << 4
	}
	return family, model
}

// Identification is the normalized, read-only view of a RawIdentification.
type Identification struct {
	raw    RawIdentification
	family uint32
	model  uint32
}

// NewIdentification normalizes raw once and keeps both views.
func NewIdentification(raw RawIdentification) Identification {
	family, model := Normalize(raw)
	return Identification{raw: raw, family: family, model: model}
}

func (i Identification) Raw() RawIdentification { return i.raw }
func (i Identification) Type() uint8            { return i.raw.Type }
func (i Identification) Family() uint32         { return i.family }
func (i Identification) Model() uint32          { return i.model }
func (i Identification) Stepping() uint8        { return i.raw.Stepping }

func (i Identification) String() string {
	return fmt.Sprintf("Type=%d, Family=%d, Model=%d, Stepping=%d", i.raw.Type, i.family, i.model, i.raw.Stepping)
}
