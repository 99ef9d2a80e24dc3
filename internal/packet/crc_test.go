package packet

import "testing"

func TestCRC(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		// only bytes before the CRC and checksum positions contribute
		{"single byte", []byte{0x01, 0xAA, 0xBB}, 0x5e},
		{"two bytes", []byte{0x01, 0x01, 0xAA, 0xBB}, 0x9a},
		{"zero input", []byte{0x00, 0x00, 0x00, 0x00}, 0x00},
		{"too short", []byte{0xAA, 0xBB}, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC(tt.data); got != tt.want {
				t.Errorf("CRC(%v) = %#x, want %#x", tt.data, got, tt.want)
			}
		})
	}
}

func TestCRC_TrailerExcluded(t *testing.T) {
	a := CRC([]byte{0x12, 0x34, 0x56, 0x00, 0x00})
	b := CRC([]byte{0x12, 0x34, 0x56, 0xFF, 0xFF})
	if a != b {
		t.Errorf("CRC depends on its own trailer bytes: %#x != %#x", a, b)
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{"empty", nil, 0},
		{"idle packet body", []byte{0xFF, 0x00}, 0xFF},
		{"self cancelling", []byte{0x55, 0x55}, 0},
		{"three bytes", []byte{0x03, 0x78}, 0x7B},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum(%v) = %#x, want %#x", tt.data, got, tt.want)
			}
		})
	}
}
