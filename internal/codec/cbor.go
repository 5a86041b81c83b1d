// Package codec holds the binary encoding used for stored snapshots and
// registers it with kratos so HTTP clients can ask for
// "Accept: application/cbor".
package codec

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/go-kratos/kratos/v2/encoding"
)

// Name is the kratos codec name, matched against the content subtype.
const Name = "cbor"

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// snapshot always produces identical bytes. Times are RFC 3339 strings.
var encMode cbor.EncMode

// decMode ignores unknown fields so older binaries can read snapshots
// written by newer ones.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}

	encoding.RegisterCodec(cborCodec{})
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error)      { return Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return Unmarshal(data, v) }
func (cborCodec) Name() string                       { return Name }
