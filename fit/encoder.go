package fit

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/wgsync/wgsync/measurement"
)

const (
	fileHeaderSize  = 14
	protocolVersion = 16
	profileVersion  = 108
	fileSignature   = ".FIT"

	// fitEpochOffset converts Unix seconds to FIT seconds. The FIT epoch is
	// 1989-12-31T00:00:00Z.
	fitEpochOffset = 631065600

	fileTypeWeight     = 9
	manufacturerGarmin = 1
	deviceTypeScale    = 119
	softwareVersion    = 100
)

type encoderState int

const (
	stateEmpty encoderState = iota
	stateHeaderWritten
	stateDefinitionWritten
	stateDataWritten
	stateFinalized
)

// Encoder assembles one FIT file. It is single use: construct, append
// messages in timestamp order, finalize. It owns its output buffer; nothing
// else appends to it. A fresh Encoder is required per file, and a single
// Encoder must not be shared across goroutines.
type Encoder struct {
	buf      []byte
	state    encoderState
	locals   *localTypeTable
	defs     map[MessageKind]*MessageDefinition
	prevKind MessageKind

	// err poisons the encoder after the first failure so a partial file can
	// never be handed out.
	err error
}

// NewEncoder returns an encoder with the file header already written. The
// header's data size is a placeholder patched during Finalize.
func NewEncoder() *Encoder {
	e := &Encoder{
		state:  stateEmpty,
		locals: newLocalTypeTable(),
		defs:   make(map[MessageKind]*MessageDefinition),
	}
	e.writeHeader()
	return e
}

func (e *Encoder) writeHeader() {
	e.buf = append(e.buf, fileHeaderSize, protocolVersion)
	e.buf = binary.LittleEndian.AppendUint16(e.buf, profileVersion)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, 0) // data size, patched later
	e.buf = append(e.buf, fileSignature...)
	e.buf = binary.LittleEndian.AppendUint16(e.buf, 0) // header CRC, patched later
	e.state = stateHeaderWritten
}

// WriteFileID writes the file_id message that must open every FIT file,
// marking it as a weight file created at the given time. The serial number
// is left unset.
func (e *Encoder) WriteFileID(created time.Time) error {
	return e.writeMessage(KindFileID, []*float64{
		fptr(fileTypeWeight),
		fptr(manufacturerGarmin),
		fptr(0), // product
		nil,     // serial_number
		fptr(fitTime(created)),
	})
}

// WriteDeviceInfo writes a device_info message describing the reporting
// scale at the given time.
func (e *Encoder) WriteDeviceInfo(at time.Time) error {
	return e.writeMessage(KindDeviceInfo, []*float64{
		fptr(fitTime(at)),
		fptr(0), // device_index
		fptr(deviceTypeScale),
		fptr(manufacturerGarmin),
		fptr(0), // product
		fptr(softwareVersion),
	})
}

// WriteWeight writes a weight_scale message. bmi is the derived body mass
// index, nil when no height is known to derive it from.
func (e *Encoder) WriteWeight(sample measurement.Weight, bmi *float64) error {
	return e.writeMessage(KindWeightScale, []*float64{
		fptr(fitTime(sample.Timestamp)),
		fptr(sample.Kg),
		sample.FatPercent,
		sample.MuscleMassKg,
		sample.BoneMassKg,
		sample.HydrationPercent,
		bmi,
	})
}

// WriteBloodPressure writes a blood_pressure message.
func (e *Encoder) WriteBloodPressure(sample measurement.BloodPressure) error {
	return e.writeMessage(KindBloodPressure, []*float64{
		fptr(fitTime(sample.Timestamp)),
		fptr(sample.Systolic),
		fptr(sample.Diastolic),
		sample.HeartRate,
	})
}

// writeMessage appends one data message, preceded by its definition whenever
// the message kind differs from the previous record's kind. values must be
// ordered exactly as the kind's field declaration.
func (e *Encoder) writeMessage(kind MessageKind, values []*float64) error {
	if e.err != nil {
		return e.err
	}
	if e.state == stateFinalized {
		return errors.New("encoder already finalized")
	}

	def, err := e.definition(kind)
	if err != nil {
		return e.fail(err)
	}

	if e.state != stateDataWritten || kind != e.prevKind {
		e.buf = append(e.buf, def.serialize()...)
		e.state = stateDefinitionWritten
	}

	record, err := encodeRecord(def, values)
	if err != nil {
		return e.fail(errors.Wrapf(err, "encoding %s message", kind))
	}
	e.buf = append(e.buf, record...)
	e.state = stateDataWritten
	e.prevKind = kind
	return nil
}

func (e *Encoder) definition(kind MessageKind) (*MessageDefinition, error) {
	if def, ok := e.defs[kind]; ok {
		return def, nil
	}
	local, err := e.locals.localFor(kind)
	if err != nil {
		return nil, err
	}
	def, err := definitionFor(kind, local)
	if err != nil {
		return nil, err
	}
	e.defs[kind] = def
	return def, nil
}

func (e *Encoder) fail(err error) error {
	e.err = err
	return err
}

// Finalize patches the header's data size, appends the trailing CRC, and
// returns the completed file. It may be called exactly once; the encoder is
// unusable afterwards.
func (e *Encoder) Finalize() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.state == stateFinalized {
		return nil, errors.New("encoder already finalized")
	}

	dataSize := len(e.buf) - fileHeaderSize
	binary.LittleEndian.PutUint32(e.buf[4:8], uint32(dataSize))
	binary.LittleEndian.PutUint16(e.buf[12:14], Checksum(0, e.buf[:12]))

	e.buf = binary.LittleEndian.AppendUint16(e.buf, Checksum(0, e.buf))
	e.state = stateFinalized
	return e.buf, nil
}

// encodeRecord serializes one data message: the record header byte carrying
// the local type, then each field in declaration order.
func encodeRecord(def *MessageDefinition, values []*float64) ([]byte, error) {
	if len(values) != len(def.Fields) {
		panic(fmt.Sprintf("fit: %s message given %d values for %d fields",
			def.Kind, len(values), len(def.Fields)))
	}

	record := make([]byte, 0, 1+def.recordSize())
	record = append(record, def.LocalType)
	for i, spec := range def.Fields {
		encoded, err := encodeValue(spec, values[i])
		if err != nil {
			return nil, errors.Wrapf(err, "field %d", spec.Num)
		}
		record = append(record, encoded...)
	}

	// A mismatch here means the registry and the definition builder disagree
	// about field widths, which is a bug, not bad input.
	if len(record) != 1+def.recordSize() {
		panic(fmt.Sprintf("fit: %s record is %d bytes, definition declares %d",
			def.Kind, len(record), 1+def.recordSize()))
	}
	return record, nil
}

// fitTime converts a wall clock time to FIT epoch seconds.
func fitTime(t time.Time) float64 {
	return float64(t.Unix() - fitEpochOffset)
}

func fptr(v float64) *float64 { return &v }
