package cpucaps

import "testing"

func TestNormalizeFamily(t *testing.T) {
	for f := 0; f < 16; f++ {
		for _, ext := range []uint8{0, 1, 0x0A, 0xFF} {
			raw := RawIdentification{Family: uint8(f), FamilyExt: ext}
			family, _ := Normalize(raw)

			want := uint32(f)
			if f == 0xF {
				want = uint32(ext) + 0xF
			}
			if family != want {
				t.Errorf("Family(family=%d, ext=%d) = %d, want %d", f, ext, family, want)
			}
		}
	}
}

func TestNormalizeModel(t *testing.T) {
	for f := 0; f < 16; f++ {
		for _, model := range []uint8{0, 5, 0xE} {
			for _, ext := range []uint8{0, 3, 0xF} {
				raw := RawIdentification{Family: uint8(f), Model: model, ModelExt: ext}
				_, got := Normalize(raw)

				want := uint32(model)
				if f == 6 || f == 0xF {
					want = uint32(ext)<<4 + uint32(model)
				}
				if got != want {
					t.Errorf("Model(family=%d, model=%d, ext=%d) = %d, want %d", f, model, ext, got, want)
				}
			}
		}
	}
}

func TestIdentificationKnownProcessors(t *testing.T) {
	tests := []struct {
		name          string
		raw           RawIdentification
		family, model uint32
		stepping      uint8
	}{
		{
			name:   "coffee lake",
			raw:    RawIdentification{Family: 6, Model: 0xE, ModelExt: 0x9, Stepping: 10},
			family: 6, model: 158, stepping: 10,
		},
		{
			name:   "zen 3",
			raw:    RawIdentification{Family: 0xF, FamilyExt: 0xA, Model: 0x1, ModelExt: 0x2, Stepping: 0},
			family: 25, model: 33, stepping: 0,
		},
		{
			name:   "pentium",
			raw:    RawIdentification{Family: 5, Model: 2, ModelExt: 7, Stepping: 12},
			family: 5, model: 2, stepping: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := NewIdentification(tt.raw)
			if id.Family() != tt.family {
				t.Errorf("Family() = %d, want %d", id.Family(), tt.family)
			}
			if id.Model() != tt.model {
				t.Errorf("Model() = %d, want %d", id.Model(), tt.model)
			}
			if id.Stepping() != tt.stepping {
				t.Errorf("Stepping() = %d, want %d", id.Stepping(), tt.stepping)
			}
			if id.Raw() != tt.raw {
				t.Errorf("Raw() = %+v, want %+v", id.Raw(), tt.raw)
			}
		})
	}
}

func TestIdentificationString(t *testing.T) {
	id := NewIdentification(RawIdentification{Type: 0, Family: 6, Model: 0xE, ModelExt: 0x9, Stepping: 10})
	want := "Type=0, Family=6, Model=158, Stepping=10"
	if got := id.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
