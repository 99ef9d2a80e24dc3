package frame

// ByteRecord is one assembled data byte together with the sample positions
// of its bits: the start of each of the eight data bits plus the trailing
// edge of the last one. Immutable once the ninth position is recorded.
type ByteRecord struct {
	Value  byte
	BitPos [9]uint64
}

// Start returns the sample index where the byte begins
func (b ByteRecord) Start() uint64 { return b.BitPos[0] }

// End returns the sample index where the byte ends
func (b ByteRecord) End() uint64 { return b.BitPos[8] }
