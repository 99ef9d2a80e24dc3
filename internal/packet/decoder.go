// Package packet maps completed DCC byte sequences to annotated fields,
// addresses and integrity verdicts. Decoding is best-effort: a malformed
// packet is annotated as far as its bytes allow and never aborts the stream.
//
// Used norms: RCN-210 through RCN-218 and NMRA S-9.1/S-9.2.
package packet

import (
	"fmt"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/frame"
)

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
var weekdaysShort = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}
var months = []string{"?", "Jan. ", "Feb. ", "Mar. ", "Apr. ", "Mai ", "Jun. ", "Jul. ", "Aug. ", "Sep. ", "Oct. ", "Nov. ", "Dec. "}

// Decoder turns one completed packet at a time into annotations. It is
// stateless per invocation apart from the configured mode flags and the
// search criteria.
type Decoder struct {
	// Speed14 selects the 14-speed-step interpretation of the basic
	// speed instruction (CV#29 bit 1 = 0).
	Speed14 bool
	// ServiceMode interprets first bytes 112-127 as service packets
	ServiceMode bool
	// AddrOffset shifts reported accessory addresses
	AddrOffset int
	// Search holds the user's filter criteria
	Search Criteria

	sink annotation.Sink

	// per-packet extraction, -1 when absent
	decAddr int
	accAddr int
	cvAddr  int

	// command label texts gathered for the command search
	commandLabels []string
}

// NewDecoder builds a packet decoder emitting into sink
func NewDecoder(sink annotation.Sink) *Decoder {
	return &Decoder{sink: sink, Search: NewCriteria()}
}

func (d *Decoder) putx(start, end uint64, cat annotation.Category, labels ...string) {
	if cat == annotation.Command {
		d.commandLabels = append(d.commandLabels, labels...)
	}
	d.sink.Put(annotation.Annotation{Start: start, End: end, Category: cat, Labels: labels})
}

// noteCommand records label texts that count as command names for the
// search even though they are emitted under a data category.
func (d *Decoder) noteCommand(labels ...string) {
	d.commandLabels = append(d.commandLabels, labels...)
}

func (d *Decoder) putByte(pkt []frame.ByteRecord, pos int, cat annotation.Category, labels ...string) {
	d.putx(pkt[pos].BitPos[0], pkt[pos].BitPos[8], cat, labels...)
}

func (d *Decoder) putBytes(pkt []frame.ByteRecord, start, end int, cat annotation.Category, labels ...string) {
	d.putx(pkt[start].BitPos[0], pkt[end].BitPos[8], cat, labels...)
}

// incPos advances to the next byte of the packet. When no byte is left it
// annotates the missing position and reports false; the caller abandons the
// rest of this packet but the stream continues.
func (d *Decoder) incPos(pkt []frame.ByteRecord, pos int) (int, bool) {
	if pos+1 < len(pkt) {
		return pos + 1, true
	}
	d.putByte(pkt, pos, annotation.Error, fmt.Sprintf("Byte missing at next position: %d", pos+2), "Error", "E")
	return pos, false
}

func hexdec(v byte) string { return fmt.Sprintf("%#x/%d", v, v) }

// Handle decodes one completed packet. Implements frame.PacketHandler.
func (d *Decoder) Handle(pkt []frame.ByteRecord) {
	d.decAddr, d.accAddr, d.cvAddr = -1, -1, -1
	d.commandLabels = d.commandLabels[:0]

	if len(pkt) < 3 {
		if len(pkt) > 0 {
			d.putBytes(pkt, 0, len(pkt)-1, annotation.Error,
				fmt.Sprintf("Paket too short: %d Byte only", len(pkt)), "Error", "E")
		}
		return
	}

	id := pkt[0].Value
	pos := 0
	valid := false
	ok := true

	if d.ServiceMode && id >= 112 && id <= 127 {
		pos, valid, ok = d.decodeServiceMode(pkt)
	} else {
		pos, valid, ok = d.decodeOperation(pkt)
	}
	if !ok {
		return
	}

	d.annotateRemaining(pkt, pos, valid, id)
	d.verifyChecksum(pkt, pos)
	d.applySearch(pkt)
}

// decodeServiceMode handles first bytes 112-127 when service mode is
// configured: register/page mode and direct CV access [RCN-214 2, 5].
func (d *Decoder) decodeServiceMode(pkt []frame.ByteRecord) (int, bool, bool) {
	pos := 0
	b0 := pkt[0].Value

	switch {
	case b0>>4 == 0b0111 && len(pkt) == 3:
		// [RCN-214 5] Register/Page Mode packet
		var long, short string
		if (b0>>3)&1 == 0 {
			long, short = "Verify, Register:", "v, R:"
		} else {
			long, short = "Write, Register:", "w, R:"
		}
		reg := int(b0&0b111) + 1
		d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%s%d", long, reg), fmt.Sprintf("%s%d", short, reg))
		var ok bool
		pos, ok = d.incPos(pkt, pos)
		if !ok {
			return pos, false, false
		}
		if pkt[pos-1].Value == 0b01111101 && pkt[pos].Value == 1 {
			// [RCN-216 4.2]
			d.putByte(pkt, pos, annotation.Data, "Register/Page Mode (outdated): Page Preset")
		} else {
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
		}
		d.putBytes(pkt, pos-1, pos, annotation.Command, "Register/Page Mode (outdated)")
		return pos, true, true

	case b0>>4 == 0b0111 && len(pkt) == 4:
		// [RCN-214 2]
		d.putByte(pkt, pos, annotation.Command, "Service Mode", "Service")
		switch (b0 >> 2) & 0b11 {
		case 0b01:
			d.putByte(pkt, pos, annotation.Data, "Verify byte", "v")
			var ok bool
			if pos, ok = d.serviceCV(pkt, pos); !ok {
				return pos, false, false
			}
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			d.putByte(pkt, pos, annotation.Command, "Value")
		case 0b11:
			d.putByte(pkt, pos, annotation.Data, "Write byte", "w")
			var ok bool
			if pos, ok = d.serviceCV(pkt, pos); !ok {
				return pos, false, false
			}
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Command, "Value")
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
		case 0b10:
			d.putByte(pkt, pos, annotation.Data, "Bit manipulation", "bit")
			var ok bool
			if pos, ok = d.serviceCV(pkt, pos); !ok {
				return pos, false, false
			}
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			long, short := bitManipulationText(pkt[pos].Value)
			d.putByte(pkt, pos, annotation.Data, long, short)
			d.putByte(pkt, pos, annotation.Command, "Operation, Position, Value", "Op.,Pos,Value", "O,P,V")
		default:
			d.putByte(pkt, pos, annotation.Data, "Reserved for future use", "Res.")
		}
		return pos, true, true
	}
	return pos, false, true
}

// serviceCV consumes the low CV address byte and annotates the 10-bit CV
// number formed with the two low bits of the preceding byte.
func (d *Decoder) serviceCV(pkt []frame.ByteRecord, pos int) (int, bool) {
	pos, ok := d.incPos(pkt, pos)
	if !ok {
		return pos, false
	}
	d.cvAddr = int(pkt[pos-1].Value&0b00000011)*256 + int(pkt[pos].Value) + 1
	d.putByte(pkt, pos, annotation.DataCV, fmt.Sprintf("%d", d.cvAddr))
	d.putByte(pkt, pos, annotation.Command, "CV")
	return pos, true
}

// bitManipulationText renders the operation/position/value byte of a CV bit
// manipulation [RCN-214 2].
func bitManipulationText(v byte) (string, string) {
	var long, short string
	if v&0b00010000 != 0 {
		long, short = "Write, ", "w,"
	} else {
		long, short = "Verify, ", "v,"
	}
	long += fmt.Sprintf("%d", v&0b00000111)
	short += fmt.Sprintf("%d", v&0b00000111)
	if v&0b00001000 != 0 {
		long += ", 1"
		short += ",1"
	} else {
		long += ", 0"
		short += ",0"
	}
	return long, short
}

// decodeOperation dispatches on the address partition of the first byte
// [RCN-211 3].
func (d *Decoder) decodeOperation(pkt []frame.ByteRecord) (int, bool, bool) {
	id := pkt[0].Value
	switch {
	case id <= 127 || (id >= 192 && id <= 231):
		return d.decodeMultiFunction(pkt)
	case id >= 128 && id <= 191:
		return d.decodeAccessory(pkt)
	case id >= 232 && id <= 252:
		d.putByte(pkt, 0, annotation.Command, "Reserved")
		return 0, false, true
	case id == 253:
		return d.decodeAdvancedExtended(pkt)
	case id == 254:
		return d.decodeDCCA(pkt)
	default:
		return d.decodeIdleOrSystem(pkt)
	}
}

// annotateRemaining marks every byte between the last consumed position and
// the checksum as undecoded.
func (d *Decoder) annotateRemaining(pkt []frame.ByteRecord, pos int, valid bool, id byte) {
	for x := pos + 1; x < len(pkt)-1; x++ {
		label := "?:" + hexdec(pkt[x].Value)
		d.putByte(pkt, x, annotation.Data, label)
		if valid {
			continue
		}
		d.putByte(pkt, x, annotation.Command, label)
		if !d.ServiceMode && id >= 112 && id <= 127 {
			d.putByte(pkt, x, annotation.Info, "Unknown (maybe service mode packet)", "Unknown")
		} else if d.ServiceMode {
			d.putByte(pkt, x, annotation.Info, "Unknown (maybe operation mode packet)", "Unknown")
		} else {
			d.putByte(pkt, x, annotation.Info, "Unknown")
		}
	}
}

// verifyChecksum checks the XOR of all preceding bytes against the final
// byte [RCN-211 2]. A mismatch is reported but decoded fields stand.
func (d *Decoder) verifyChecksum(pkt []frame.ByteRecord, pos int) {
	last := len(pkt) - 1
	if pos+1 >= len(pkt) {
		d.putBytes(pkt, 0, last, annotation.Error, "Checksum missing", "Error", "E")
		return
	}
	var sum byte
	for x := 0; x < last; x++ {
		sum ^= pkt[x].Value
	}
	if sum == pkt[last].Value {
		d.putByte(pkt, last, annotation.Frame, "Checksum: OK", "OK")
	} else {
		diff := fmt.Sprintf("%#x<>%#x", sum, pkt[last].Value)
		d.putBytes(pkt, 0, last, annotation.Error, "Checksum", "Error", "E")
		d.putByte(pkt, last, annotation.FrameOther, "Checksum: "+diff, diff)
	}
}

// processCRC consumes and verifies the CRC-8 byte preceding the checksum
// [RCN-218].
func (d *Decoder) processCRC(pkt []frame.ByteRecord, pos int) (int, bool) {
	if pos+1 >= len(pkt)-1 {
		d.putBytes(pkt, 0, len(pkt)-1, annotation.Error, "CRC or Checksum missing", "Error", "E")
		return pos, true
	}
	pos, ok := d.incPos(pkt, pos)
	if !ok {
		return pos, false
	}
	d.putByte(pkt, pos, annotation.Command, "CRC")
	crc := pkt[pos].Value
	d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%#x", crc))
	values := make([]byte, len(pkt))
	for i, b := range pkt {
		values[i] = b.Value
	}
	calculated := CRC(values)
	if crc == calculated {
		d.putByte(pkt, pos, annotation.Frame, "CRC: OK", "OK")
	} else {
		diff := fmt.Sprintf("%#x<>%#x", crc, calculated)
		d.putBytes(pkt, 0, len(pkt)-2, annotation.Error, "CRC false", "Error", "E")
		d.putByte(pkt, pos, annotation.FrameOther, "CRC: "+diff, diff)
	}
	return pos, true
}
