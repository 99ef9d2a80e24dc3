package packet

// crcFold contains the CRC-8 contribution of each input bit [RCN-218 B]
var crcFold = [8]byte{0x5e, 0xbc, 0x61, 0xc2, 0x9d, 0x23, 0x46, 0x8c}

// crcByte folds a single byte into the running CRC-8 value
func crcByte(data byte) byte {
	var result byte
	for i := 0; i < 8; i++ {
		if data&(1<<i) != 0 {
			result ^= crcFold[i]
		}
	}
	return result
}

// CRC computes the CRC-8 over all packet bytes except the CRC byte itself
// and the trailing checksum.
func CRC(data []byte) byte {
	var crc byte
	for i := 0; i+2 < len(data); i++ {
		crc = crcByte(data[i] ^ crc)
	}
	return crc
}

// Checksum computes the XOR over all bytes; a well-formed packet carries the
// XOR of all preceding bytes in its final byte [RCN-211 2].
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}
