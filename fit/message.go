package fit

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MessageKind identifies one of the global FIT messages this encoder emits.
type MessageKind byte

const (
	// KindFileID is the mandatory first message of every FIT file.
	KindFileID MessageKind = iota
	// KindDeviceInfo describes the device a reading came from.
	KindDeviceInfo
	// KindWeightScale is a body weight / body composition reading.
	KindWeightScale
	// KindBloodPressure is a blood pressure reading.
	KindBloodPressure
)

func (k MessageKind) String() string {
	switch k {
	case KindFileID:
		return "file_id"
	case KindDeviceInfo:
		return "device_info"
	case KindWeightScale:
		return "weight_scale"
	case KindBloodPressure:
		return "blood_pressure"
	}
	return "unknown"
}

// globalNumbers maps each kind to its global message number from the FIT
// profile.
var globalNumbers = map[MessageKind]uint16{
	KindFileID:        0,
	KindDeviceInfo:    23,
	KindWeightScale:   30,
	KindBloodPressure: 51,
}

// messageFields lists each kind's fields by registry name. Declaration order
// here is the order data bytes are written, so it must not change without a
// matching change to the encoder's value ordering.
var messageFields = map[MessageKind][]string{
	KindFileID:        {"file_type", "manufacturer", "product", "serial_number", "time_created"},
	KindDeviceInfo:    {"timestamp", "device_index", "device_type", "device_mfr", "device_product", "software_version"},
	KindWeightScale:   {"timestamp", "weight", "percent_fat", "muscle_mass", "bone_mass", "percent_hydration", "bmi"},
	KindBloodPressure: {"timestamp", "systolic_pressure", "diastolic_pressure", "heart_rate"},
}

// maxLocalTypes is the size of the local message type pool. The record
// header byte only has four bits for it; this is a protocol limit.
const maxLocalTypes = 16

// ErrTooManyLocalTypes is returned when more distinct message kinds are
// encoded into one file than the local type pool can name.
var ErrTooManyLocalTypes = errors.New("local message type pool exhausted")

// MessageDefinition is the shape of one message kind as declared on the
// wire: its local type, global number, and ordered field layout.
type MessageDefinition struct {
	Kind      MessageKind
	LocalType byte
	GlobalNum uint16
	Fields    []FieldSpec
}

// definitionFor builds the definition for kind using the registry. The
// result is deterministic for a given kind and local type.
func definitionFor(kind MessageKind, localType byte) (*MessageDefinition, error) {
	names, ok := messageFields[kind]
	if !ok {
		return nil, errors.Errorf("no field set for message kind %d", kind)
	}

	fields := make([]FieldSpec, 0, len(names))
	for _, name := range names {
		spec, err := specFor(name)
		if err != nil {
			return nil, errors.Wrapf(err, "building %s definition", kind)
		}
		fields = append(fields, spec)
	}

	return &MessageDefinition{
		Kind:      kind,
		LocalType: localType,
		GlobalNum: globalNumbers[kind],
		Fields:    fields,
	}, nil
}

// recordSize is the byte width of a data record body matching this
// definition, excluding the record header byte.
func (d *MessageDefinition) recordSize() int {
	size := 0
	for _, f := range d.Fields {
		size += int(f.Size)
	}
	return size
}

// serialize produces the definition record bytes: header byte with the
// definition flag and local type, reserved byte, little-endian architecture
// byte, global message number, field count, then one (number, size, base
// type) triple per field in declaration order.
func (d *MessageDefinition) serialize() []byte {
	out := make([]byte, 0, 6+3*len(d.Fields))
	out = append(out, 0x40|d.LocalType, 0x00, 0x00)
	out = binary.LittleEndian.AppendUint16(out, d.GlobalNum)
	out = append(out, byte(len(d.Fields)))
	for _, f := range d.Fields {
		out = append(out, f.Num, f.Size, f.Base)
	}
	return out
}

// localTypeTable hands out local message types in first-seen order. A kind
// keeps its local type for the life of the file even when its definition is
// re-emitted after a kind switch.
type localTypeTable struct {
	assigned map[MessageKind]byte
}

func newLocalTypeTable() *localTypeTable {
	return &localTypeTable{assigned: make(map[MessageKind]byte)}
}

func (lt *localTypeTable) localFor(kind MessageKind) (byte, error) {
	if local, ok := lt.assigned[kind]; ok {
		return local, nil
	}
	if len(lt.assigned) >= maxLocalTypes {
		return 0, errors.Wrapf(ErrTooManyLocalTypes, "cannot assign %s", kind)
	}
	local := byte(len(lt.assigned))
	lt.assigned[kind] = local
	return local, nil
}
