package fit

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// FIT base type tags. The high bit marks types whose size must match the
// declared width exactly.
const (
	baseEnum    byte = 0x00
	baseUint8   byte = 0x02
	baseString  byte = 0x07
	baseSint16  byte = 0x83
	baseUint16  byte = 0x84
	baseUint32  byte = 0x86
	baseUint32z byte = 0x8C
)

var (
	// ErrUnknownField is returned when a field name has no entry in the
	// registry. This is a programming error, not bad input.
	ErrUnknownField = errors.New("unknown field name")

	// ErrValueOutOfRange is returned when a scaled value does not fit the
	// field's declared byte width. Truncating instead would silently corrupt
	// the reading, so encoding fails.
	ErrValueOutOfRange = errors.New("scaled value out of range for field width")
)

// FieldSpec describes how one logical field is laid out on the wire.
type FieldSpec struct {
	// Num is the field number from the FIT profile for the owning message.
	Num byte
	// Size is the encoded width in bytes.
	Size byte
	// Base is the FIT base type tag written into definition records.
	Base byte
	// Scale and Offset map a measurement value to its raw integer form:
	// raw = round(value*Scale + Offset).
	Scale  float64
	Offset float64
	// Invalid is the reserved bit pattern meaning "no value", truncated to
	// Size bytes on the wire.
	Invalid uint32
}

// fieldSpecs is the single source of truth for field layout. Field numbers,
// sizes and scales follow the published FIT profile for the file_id,
// device_info, weight_scale and blood_pressure messages.
var fieldSpecs = map[string]FieldSpec{
	// file_id
	"file_type":     {Num: 0, Size: 1, Base: baseEnum, Scale: 1, Invalid: 0xFF},
	"manufacturer":  {Num: 1, Size: 2, Base: baseUint16, Scale: 1, Invalid: 0xFFFF},
	"product":       {Num: 2, Size: 2, Base: baseUint16, Scale: 1, Invalid: 0xFFFF},
	"serial_number": {Num: 3, Size: 4, Base: baseUint32z, Scale: 1, Invalid: 0x00000000},
	"time_created":  {Num: 4, Size: 4, Base: baseUint32, Scale: 1, Invalid: 0xFFFFFFFF},

	// device_info (manufacturer/product shapes shared with file_id above)
	"timestamp":        {Num: 253, Size: 4, Base: baseUint32, Scale: 1, Invalid: 0xFFFFFFFF},
	"device_index":     {Num: 0, Size: 1, Base: baseUint8, Scale: 1, Invalid: 0xFF},
	"device_type":      {Num: 1, Size: 1, Base: baseUint8, Scale: 1, Invalid: 0xFF},
	"device_mfr":       {Num: 2, Size: 2, Base: baseUint16, Scale: 1, Invalid: 0xFFFF},
	"device_product":   {Num: 4, Size: 2, Base: baseUint16, Scale: 1, Invalid: 0xFFFF},
	"software_version": {Num: 5, Size: 2, Base: baseUint16, Scale: 1, Invalid: 0xFFFF},

	// weight_scale
	"weight":            {Num: 0, Size: 2, Base: baseUint16, Scale: 100, Invalid: 0xFFFF},
	"percent_fat":       {Num: 1, Size: 2, Base: baseUint16, Scale: 100, Invalid: 0xFFFF},
	"percent_hydration": {Num: 2, Size: 2, Base: baseUint16, Scale: 100, Invalid: 0xFFFF},
	"bmi":               {Num: 3, Size: 2, Base: baseUint16, Scale: 10, Invalid: 0xFFFF},
	"bone_mass":         {Num: 4, Size: 2, Base: baseUint16, Scale: 100, Invalid: 0xFFFF},
	"muscle_mass":       {Num: 5, Size: 2, Base: baseUint16, Scale: 100, Invalid: 0xFFFF},

	// blood_pressure
	"systolic_pressure":  {Num: 0, Size: 2, Base: baseUint16, Scale: 1, Invalid: 0xFFFF},
	"diastolic_pressure": {Num: 1, Size: 2, Base: baseUint16, Scale: 1, Invalid: 0xFFFF},
	"heart_rate":         {Num: 6, Size: 1, Base: baseUint8, Scale: 1, Invalid: 0xFF},
}

// specFor looks a field up in the registry. It never guesses a layout for a
// name it does not know.
func specFor(name string) (FieldSpec, error) {
	spec, ok := fieldSpecs[name]
	if !ok {
		return FieldSpec{}, errors.Wrap(ErrUnknownField, name)
	}
	return spec, nil
}

// encodeValue returns the little-endian wire bytes for one field. A nil
// value encodes as the spec's invalid sentinel, exactly Size bytes wide.
func encodeValue(spec FieldSpec, value *float64) ([]byte, error) {
	if value == nil {
		return rawBytes(uint64(spec.Invalid), spec.Size), nil
	}

	raw := int64(math.Round(*value*spec.Scale + spec.Offset))
	lo, hi := rawRange(spec)
	if raw < lo || raw > hi {
		return nil, errors.Wrapf(ErrValueOutOfRange, "raw %d not in [%d, %d]", raw, lo, hi)
	}
	return rawBytes(uint64(raw), spec.Size), nil
}

// rawRange returns the representable raw range for a spec's width. Only
// sint16 is signed among the base types the registry uses.
func rawRange(spec FieldSpec) (int64, int64) {
	if spec.Base == baseSint16 {
		return math.MinInt16, math.MaxInt16
	}
	return 0, int64(1)<<(8*int(spec.Size)) - 1
}

func rawBytes(raw uint64, size byte) []byte {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], raw)
	out := make([]byte, size)
	copy(out, scratch[:size])
	return out
}
