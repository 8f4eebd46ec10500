// Package fit writes health measurements as a FIT activity file suitable for
// upload to Garmin Connect.
//
// FIT is a binary, self-describing record format. Every data record in the
// file is preceded by a definition record declaring its shape: the global
// message number, the number of fields, and each field's (number, size, base
// type) triple. The definition also claims a "local message type", a number
// 0-15 carried in the low bits of every record header byte, which is how a
// data record is matched back to its definition.
//
// Using a pseudo EBNF notation, a FIT file is:
//
//	file = header record* crc
//
//	header =
//	  size             : byte, 14
//	  protocol version : byte
//	  profile version  : uint16, little-endian
//	  data size        : uint32, little-endian, byte count of all records
//	  signature        : ".FIT"
//	  header crc       : uint16, CRC-16 of the preceding 12 bytes
//
//	record = definition | data
//
//	definition =
//	  record header : 0x40 | local type
//	  reserved      : 0x00
//	  architecture  : 0x00 (little-endian)
//	  global number : uint16
//	  field count   : byte
//	  fields        : (number byte, size byte, base type byte)*
//
//	data =
//	  record header : local type
//	  values        : raw field bytes, widths and order per the definition
//
// Field values are stored as scaled integers: raw = round(value*scale +
// offset), written little-endian. A field with no reading is written as its
// base type's invalid sentinel (0xFF for a uint8, 0xFFFF for a uint16, and
// so on), never as zero, so readers can distinguish "absent" from a real
// zero measurement.
//
// The file ends with a CRC-16 over every preceding byte, header included.
// The checksum uses the nibble-table variant published in the FIT SDK; a
// file whose trailer does not match is rejected by consumers outright.
//
// The encoder in this package is a single-use state machine: construct it,
// append messages in timestamp order, then call Finalize exactly once to
// obtain the completed byte buffer. A definition record is re-emitted every
// time the message kind changes, even when switching back to a kind seen
// earlier in the stream.
package fit
