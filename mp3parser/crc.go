package mp3parser

const crcPolynomial = 0x8005

func crcUpdate(value byte, crc uint32) uint32 {
	v := uint32(value) << 8
	for i := 0; i < 8; i++ {
		v <<= 1
		crc <<= 1
		if (crc^v)&0x10000 != 0 {
			crc ^= crcPolynomial
		}
	}
	return crc & 0xFFFF
}

// CRC16 computes the Layer III frame checksum: header bytes 2 and 3 followed
// by the side information. frame must hold the header, CRC and side info.
func CRC16(h *MP3FrameHeader, frame []byte) uint16 {
	crc := uint32(0xFFFF)
	crc = crcUpdate(frame[2], crc)
	crc = crcUpdate(frame[3], crc)
	for i := headerSize + 2; i < h.SideInfoEnd(); i++ {
		crc = crcUpdate(frame[i], crc)
	}
	return uint16(crc)
}
