package fit

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// DecodedField is one field of a decoded data message. Value is nil when the
// wire bytes were the field's invalid sentinel.
type DecodedField struct {
	Num   byte
	Value *float64
}

// DecodedMessage is one data message read back from a file.
type DecodedMessage struct {
	GlobalNum uint16
	LocalType byte
	Fields    []DecodedField
}

// decodedDef is a definition as read off the wire, before matching fields
// back to the registry.
type decodedDef struct {
	globalNum uint16
	fields    []struct{ num, size byte }
}

// globalSpecs maps (global message number, field number) back to registry
// entries so decoded raw integers can be unscaled.
var globalSpecs = buildGlobalSpecs()

func buildGlobalSpecs() map[uint16]map[byte]FieldSpec {
	out := make(map[uint16]map[byte]FieldSpec)
	for kind, names := range messageFields {
		global := globalNumbers[kind]
		byNum := make(map[byte]FieldSpec, len(names))
		for _, name := range names {
			spec, err := specFor(name)
			if err != nil {
				panic(err) // registry and field lists are fixed tables
			}
			byNum[spec.Num] = spec
		}
		out[global] = byNum
	}
	return out
}

// Decode reads a complete FIT file back into its data messages, verifying
// the header, the trailing CRC, and that every data record is covered by the
// most recent definition for its local type. It understands the message
// kinds this package writes.
func Decode(data []byte) ([]DecodedMessage, error) {
	if len(data) < fileHeaderSize+2 {
		return nil, errors.Errorf("file too short: %d bytes", len(data))
	}

	headerSize := int(data[0])
	if headerSize != 12 && headerSize != fileHeaderSize {
		return nil, errors.Errorf("bad header size %d", headerSize)
	}
	if string(data[8:12]) != fileSignature {
		return nil, errors.Errorf("bad signature %q", data[8:12])
	}

	dataSize := int(binary.LittleEndian.Uint32(data[4:8]))
	if headerSize+dataSize+2 != len(data) {
		return nil, errors.Errorf("declared data size %d does not match %d file bytes",
			dataSize, len(data))
	}

	trailer := binary.LittleEndian.Uint16(data[len(data)-2:])
	if computed := Checksum(0, data[:len(data)-2]); computed != trailer {
		return nil, errors.Errorf("file CRC mismatch: trailer %#04x, computed %#04x",
			trailer, computed)
	}

	var out []DecodedMessage
	defs := make(map[byte]*decodedDef)
	pos := headerSize
	end := headerSize + dataSize
	for pos < end {
		header := data[pos]
		local := header & 0x0F
		pos++

		if header&0x40 != 0 {
			def, n, err := decodeDefinition(data[pos:end])
			if err != nil {
				return nil, err
			}
			defs[local] = def
			pos += n
			continue
		}

		def, ok := defs[local]
		if !ok {
			return nil, errors.Errorf("data record for local type %d before its definition", local)
		}
		msg, n, err := decodeData(data[pos:end], local, def)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
		pos += n
	}

	return out, nil
}

func decodeDefinition(data []byte) (*decodedDef, int, error) {
	if len(data) < 5 {
		return nil, 0, errors.New("truncated definition record")
	}
	def := &decodedDef{globalNum: binary.LittleEndian.Uint16(data[2:4])}
	count := int(data[4])
	if len(data) < 5+3*count {
		return nil, 0, errors.New("truncated definition field list")
	}
	for i := 0; i < count; i++ {
		triple := data[5+3*i:]
		def.fields = append(def.fields, struct{ num, size byte }{triple[0], triple[1]})
	}
	return def, 5 + 3*count, nil
}

func decodeData(data []byte, local byte, def *decodedDef) (DecodedMessage, int, error) {
	msg := DecodedMessage{GlobalNum: def.globalNum, LocalType: local}
	specs, ok := globalSpecs[def.globalNum]
	if !ok {
		return msg, 0, errors.Errorf("unknown global message number %d", def.globalNum)
	}

	pos := 0
	for _, f := range def.fields {
		if len(data) < pos+int(f.size) {
			return msg, 0, errors.New("truncated data record")
		}
		spec, ok := specs[f.num]
		if !ok {
			return msg, 0, errors.Wrapf(ErrUnknownField,
				"global %d field %d", def.globalNum, f.num)
		}

		var raw uint64
		for i := int(f.size) - 1; i >= 0; i-- {
			raw = raw<<8 | uint64(data[pos+i])
		}
		pos += int(f.size)

		field := DecodedField{Num: f.num}
		if raw != uint64(spec.Invalid) {
			field.Value = fptr((float64(raw) - spec.Offset) / spec.Scale)
		}
		msg.Fields = append(msg.Fields, field)
	}

	return msg, pos, nil
}
