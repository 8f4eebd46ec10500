package fit

// crcTable is the 16-entry nibble lookup table from the FIT SDK's reference
// checksum implementation. The file trailer must match that implementation
// bit for bit, so the table is a fixed constant rather than derived from a
// polynomial at runtime.
var crcTable = [16]uint16{
	0x0000, 0xCC01, 0xD801, 0x1400,
	0xF001, 0x3C00, 0x2800, 0xE401,
	0xA001, 0x6C00, 0x7800, 0xB401,
	0x5000, 0x9C01, 0x8801, 0x4400,
}

// updateCRC feeds a single byte into the running checksum, one nibble at a
// time. The zero value of uint16 is the correct initial state.
func updateCRC(crc uint16, b byte) uint16 {
	tmp := crcTable[crc&0xF]
	crc = (crc >> 4) & 0x0FFF
	crc = crc ^ tmp ^ crcTable[b&0xF]

	tmp = crcTable[crc&0xF]
	crc = (crc >> 4) & 0x0FFF
	crc = crc ^ tmp ^ crcTable[(b>>4)&0xF]

	return crc
}

// Checksum runs the FIT CRC-16 over data starting from crc. Running it once
// over a whole buffer and accumulating it incrementally byte by byte yield
// the same result.
func Checksum(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = updateCRC(crc, b)
	}
	return crc
}
