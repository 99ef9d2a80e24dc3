package packet

import (
	"fmt"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/frame"
)

// decodeMultiFunction handles packets addressed to multi function decoders:
// broadcast, 7 bit and 14 bit addresses [RCN-211 3].
func (d *Decoder) decodeMultiFunction(pkt []frame.ByteRecord) (int, bool, bool) {
	pos := 0
	id := pkt[0].Value
	valid := false
	var ok bool

	switch {
	case id == 0:
		d.decAddr = 0
		d.putByte(pkt, pos, annotation.DataDecoder, "Broadcast")
		d.putByte(pkt, pos, annotation.Command, "Broadcast")
	case id >= 1 && id <= 127:
		d.decAddr = int(id & 0b01111111)
		d.putByte(pkt, pos, annotation.DataDecoder, fmt.Sprintf("%d", d.decAddr))
		d.putByte(pkt, pos, annotation.Command,
			"Multi Function Decoder with 7 bit address", "Decoder with 7 bit address", "7 bit addr.")
	default: // 192..231
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, valid, false
		}
		d.decAddr = int(pkt[pos-1].Value&0b00111111)*256 + int(pkt[pos].Value)
		d.putBytes(pkt, pos-1, pos, annotation.DataDecoder, fmt.Sprintf("%d", d.decAddr))
		d.putBytes(pkt, pos-1, pos, annotation.Command,
			"Multi Function Decoder with 14 bit address", "Decoder with 14 bit address", "14 bit addr.")
	}

	if pos, ok = d.incPos(pkt, pos); !ok {
		return pos, valid, false
	}
	cmd := (pkt[pos].Value & 0b11100000) >> 5
	subcmd := pkt[pos].Value & 0b00011111

	switch cmd {
	case 0b000:
		return d.decodeDecoderControl(pkt, pos, subcmd)
	case 0b001:
		return d.decodeAdvancedOperations(pkt, pos, subcmd)
	case 0b010, 0b011:
		d.decodeBasicSpeed(pkt, pos, cmd, subcmd)
		return pos, valid, true
	case 0b100:
		d.decodeFunctionGroupOne(pkt, pos, subcmd)
		return pos, valid, true
	case 0b101:
		d.decodeFunctionGroupTwo(pkt, pos, subcmd)
		return pos, valid, true
	case 0b110:
		return d.decodeFutureExpansion(pkt, pos, subcmd)
	default:
		return d.decodeCVAccess(pkt, pos, subcmd)
	}
}

// decodeDecoderControl handles instruction group 000 [RCN-212 2.1]
func (d *Decoder) decodeDecoderControl(pkt []frame.ByteRecord, pos int, subcmd byte) (int, bool, bool) {
	switch {
	case subcmd == 0b00000:
		if d.decAddr == 0 {
			// [RCN-211 4.1]
			d.putByte(pkt, pos, annotation.Command, "Decoder Reset packet", "Dec. Reset", "Reset")
		} else {
			// [RCN-212 2.5.1]
			d.putByte(pkt, pos, annotation.Command, "Decoder Reset", "Dec. Reset", "Reset")
		}
	case subcmd == 0b00001:
		// [RCN-212 2.5.2]
		d.putByte(pkt, pos, annotation.Command, "Decoder Hard Reset", "Hard Reset", "Reset")
	case subcmd&0b11110 == 0b00010:
		// [RCN-212 2.5.3]
		d.putByte(pkt, pos, annotation.Command, "Factory Test Instruction", "Fac. Test", "Test")
		return pos, true, true
	case subcmd&0b11110 == 0b01010:
		// [RCN-212 2.5.4]
		d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value&0b00000001))
		d.putByte(pkt, pos, annotation.Command,
			"Set Advanced Addressing (CV #29 Bit 5)", "Set advanced addressing", "Set adv. addr.")
	case subcmd == 0b01111:
		// [RCN-212 2.5.5]
		d.putByte(pkt, pos, annotation.Command, "Decoder Acknowledgment Request", "Dec. Ack Req.", "Ack Req.")
	case subcmd&0b10000 == 0b10000:
		// [RCN-212 2.4.1]
		d.putByte(pkt, pos, annotation.Command, "Consist Control")
		var ok bool
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		if subcmd&0b11110 == 0b10010 {
			value := "normal"
			if pkt[pos-1].Value&1 != 0 {
				value = "reverse"
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d, dir:%s", pkt[pos].Value&0b01111111, value))
			d.putByte(pkt, pos, annotation.Command, "Set consist address", "Set")
		} else {
			d.putByte(pkt, pos, annotation.Command, "Reserved")
		}
	default:
		d.putByte(pkt, pos, annotation.Command, "Reserved")
	}
	return pos, false, true
}

// speed126Text renders a 126 step speed byte including the stop and
// emergency stop escapes [RCN-212 2.2.2].
func (d *Decoder) speed126Text(value byte) (string, string) {
	var long, short string
	if d.decAddr == 0 {
		long, short = "Broadcast", "B"
	} else if value>>7 == 1 {
		long, short = "Forward", "F"
	} else {
		long, short = "Reverse", "R"
	}
	switch value & 0b01111111 {
	case 0b00000000:
		return "STOP (" + long + ")", "STOP (" + short + ")"
	case 0b00000001:
		return "EMERGENCY STOP (HALT) (" + long + ")", "ESTOP (" + short + ")"
	default:
		speed := fmt.Sprintf("%d", (value&0b01111111)-1)
		return long + " Speed: " + speed + " / 126", short + ":" + speed
	}
}

// functionBitsText renders eight consecutive function states starting at Ff
func functionBitsText(f int, value byte) (string, string) {
	long := ""
	short := fmt.Sprintf("F%d:", f)
	for i := 0; i < 8; i++ {
		long += fmt.Sprintf("F%d:%d", f+i, value&1)
		short += fmt.Sprintf("%d", value&1)
		if i < 7 {
			long += ", "
			short += ","
		}
		value >>= 1
	}
	return long, short
}

// decodeAdvancedOperations handles instruction group 001 [RCN-212 2.1]
func (d *Decoder) decodeAdvancedOperations(pkt []frame.ByteRecord, pos int, subcmd byte) (int, bool, bool) {
	var ok bool
	switch subcmd {
	case 0b11111:
		// [RCN-212 2.2.2]
		d.putByte(pkt, pos, annotation.Command, "128 Speed Step Control - Instruction", "128 Speed Step")
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		long, short := d.speed126Text(pkt[pos].Value)
		d.putByte(pkt, pos, annotation.Data, long, short)

	case 0b11110:
		// [RCN-212 2.2.3]
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putBytes(pkt, pos-1, pos, annotation.Command,
			"Special operation mode (unless received via consist address in CV#19)", "Special operation mode")
		v := pkt[pos].Value
		out := ""
		switch (v >> 2) & 0b11 {
		case 0b00:
			out += "Not part of a multiple traction"
		case 0b10:
			out += "Leading loco of multiple traction"
		case 0b01:
			out += "Middle loco in a multiple traction"
		case 0b11:
			out += "Final loco of a multiple traction"
		}
		out += fmt.Sprintf(", shunting key:%d", (v>>4)&1)
		out += fmt.Sprintf(", west-bit:%d", (v>>5)&1)
		out += fmt.Sprintf(", east-bit:%d", (v>>6)&1)
		out += fmt.Sprintf(", MAN-bit:%d", (v>>7)&1)
		d.putBytes(pkt, pos-1, pos, annotation.Data, out)

	case 0b11101:
		// [RCN-212 2.3.8]
		d.putByte(pkt, pos, annotation.Command, "Analog Function Group")
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		v := pkt[pos].Value
		switch {
		case v == 0b00000001:
			d.putByte(pkt, pos, annotation.Command, "Volume control")
		case v >= 0b00010000 && v <= 0b00011111:
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", v&0b00001111))
			d.putByte(pkt, pos, annotation.Command, "Position control")
		case v >= 0b10000000:
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", v&0b01111111))
			d.putByte(pkt, pos, annotation.Command, "Any control")
		default:
			d.putByte(pkt, pos, annotation.Command, "Reserved")
		}
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
		d.putByte(pkt, pos, annotation.Command, "Data")

	case 0b11100:
		// [RCN-212 2.3.7]
		d.putByte(pkt, pos, annotation.Command, "Speed, Direction, Function")
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		long, short := d.speed126Text(pkt[pos].Value)
		d.putByte(pkt, pos, annotation.Data, long, short)
		for _, f := range []int{0, 8, 16, 24} {
			if len(pkt) <= pos+2 {
				break
			}
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			fl, fs := functionBitsText(f, pkt[pos].Value)
			d.putByte(pkt, pos, annotation.Data, fl, fs)
		}

	default:
		d.putByte(pkt, pos, annotation.Command, "Reserved")
	}
	return pos, false, true
}

// decodeBasicSpeed handles instruction groups 010 and 011 [RCN-212 2.2.1].
// The byte carries both a 14 and a 28 step reading; the configured speed
// step mode selects which one is reported.
func (d *Decoder) decodeBasicSpeed(pkt []frame.ByteRecord, pos int, cmd, subcmd byte) {
	if d.Speed14 {
		d.putByte(pkt, pos, annotation.Command,
			"Basis Speed and Direction Instruction 14 speed step mode (CV#29=0)", "Speed + Dir. 14 step", "Speed 14")
	} else {
		d.putByte(pkt, pos, annotation.Command,
			"Basis Speed and Direction Instruction 28 speed step mode (CV#29=1)", "Speed + Dir. 28 step", "Speed 28")
	}
	bit5 := (subcmd & 0b10000) >> 4
	var long14, short14 string
	if d.decAddr == 0 {
		long14, short14 = "Broadcast", "B"
	} else if cmd&0b001 == 0b001 {
		long14, short14 = "Forward", "F"
	} else {
		long14, short14 = "Reverse", "R"
	}
	long28, short28 := long14, short14
	switch subcmd & 0b01111 {
	case 0b00000:
		long14, short14 = "STOP ("+long14+")", "STOP ("+short14+")"
		long28, short28 = "STOP ("+long28+")", "STOP ("+short28+")"
	case 0b00001:
		long14, short14 = "EMERGENCY STOP (HALT) ("+long14+")", "ESTOP ("+short14+")"
		long28, short28 = "EMERGENCY STOP (HALT) ("+long28+")", "ESTOP ("+short28+")"
	default:
		speed14 := int(subcmd&0b1111) - 1
		speed28 := ((int(subcmd&0b01111)-1)*2 - 1) + int(bit5)
		long14 += fmt.Sprintf(" Speed: %d / 14", speed14)
		short14 += fmt.Sprintf(":%d", speed14)
		long28 += fmt.Sprintf(" Speed: %d / 28", speed28)
		short28 += fmt.Sprintf(":%d", speed28)
	}
	if d.decAddr > 0 {
		long14 += fmt.Sprintf(", F0=%d", bit5)
		short14 += fmt.Sprintf(", F0=%d", bit5)
	}
	if d.Speed14 {
		d.putByte(pkt, pos, annotation.Data, long14, short14)
	} else {
		d.putByte(pkt, pos, annotation.Data, long28, short28)
	}
}

// decodeFunctionGroupOne handles instruction group 100 [RCN-212 2.3.1]
func (d *Decoder) decodeFunctionGroupOne(pkt []frame.ByteRecord, pos int, subcmd byte) {
	if d.Speed14 {
		d.putByte(pkt, pos, annotation.Command,
			"Function Group One Instruction 14 speed step mode (CV#29=0)", "FG1 14 step", "FG1")
	} else {
		d.putByte(pkt, pos, annotation.Command,
			"Function Group One Instruction 28/128 speed step mode (CV#29=1)", "FG1 28/128 step", "FG1")
	}
	long, short := "", ""
	value := subcmd
	for i, f := 0, 1; i < 4; i, f = i+1, f+1 {
		long += fmt.Sprintf("F%d:%d", f, value&1)
		short += fmt.Sprintf("%d", value&1)
		if i < 3 {
			long += ", "
			short += ","
		}
		value >>= 1
	}
	if d.Speed14 {
		short = "F1:" + short
	} else {
		// F0 rides in bit 4 in 28/128 step mode
		long = fmt.Sprintf("F0:%d, ", subcmd>>4) + long
		short = fmt.Sprintf("F0:%d,", subcmd>>4) + short
	}
	d.putByte(pkt, pos, annotation.Data, long, short)
}

// decodeFunctionGroupTwo handles instruction group 101, F5-F8 or F9-F12
// [RCN-212 2.3.2, 2.3.3].
func (d *Decoder) decodeFunctionGroupTwo(pkt []frame.ByteRecord, pos int, subcmd byte) {
	d.putByte(pkt, pos, annotation.Command, "Function Group Two Instruction", "FG2")
	f := 9
	if subcmd&0b10000 == 0b10000 {
		f = 5
	}
	long := ""
	short := fmt.Sprintf("F%d:", f)
	value := subcmd
	for i := 0; i < 4; i++ {
		long += fmt.Sprintf("F%d:%d", f, value&1)
		short += fmt.Sprintf("%d", value&1)
		if i < 3 {
			long += ", "
			short += ","
		}
		value >>= 1
		f++
	}
	d.putByte(pkt, pos, annotation.Data, long, short)
}

// futureExpansionF maps the sub command of a function state instruction to
// its first function number [RCN-212 2.3.4].
var futureExpansionF = map[byte]int{
	0b11110: 13,
	0b11111: 21,
	0b11000: 29,
	0b11001: 37,
	0b11010: 45,
	0b11011: 53,
	0b11100: 61,
}

// decodeFutureExpansion handles instruction group 110 [RCN-212 2.3.4]
func (d *Decoder) decodeFutureExpansion(pkt []frame.ByteRecord, pos int, subcmd byte) (int, bool, bool) {
	pos, ok := d.incPos(pkt, pos)
	if !ok {
		return pos, false, false
	}
	d.putByte(pkt, pos-1, annotation.Command, "Future Expansion Instruction")

	if f, isFunc := futureExpansionF[subcmd]; isFunc {
		long, short := functionBitsText(f, pkt[pos].Value)
		d.putByte(pkt, pos, annotation.Data, long, short)
		return pos, false, true
	}

	switch subcmd {
	case 0b11101:
		// [RCN-212 2.3.5] [RCN-217 4.3.1]
		address := pkt[pos].Value & 0b01111111
		d.noteCommand("Binary State Control Instruction short form", "Binarystate short")
		d.putByte(pkt, pos-1, annotation.Data, "Binary State Control Instruction short form", "Binarystate short")
		switch {
		case address == 0:
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value>>7))
			d.putByte(pkt, pos, annotation.Command, "Broadcast F29-F127")
		case address >= 1 && address <= 15:
			var long, short string
			switch address {
			case 1:
				// [RCN-217 5.3.1]
				long = "XF=1"
				if pkt[pos].Value>>7 == 0 {
					long = "XF=1 (Requesting the location information)"
				}
				short = "XF=1"
			case 2:
				// [RCN-217 5.2.2]
				long = "XF=2"
				if pkt[pos].Value>>7 == 0 {
					long = "XF=2 (Rerail search)"
				}
				short = "XF=2"
			default:
				long = fmt.Sprintf("XF=%d (Reserved)", address)
				short = fmt.Sprintf("XF=%d (Res.)", address)
			}
			if pkt[pos].Value>>7 == 0 {
				long += ":off"
				short += ":off"
			} else {
				long += ":on"
				short += ":on"
			}
			d.putByte(pkt, pos, annotation.Data, long, short)
			d.putByte(pkt, pos, annotation.Command, "RailCom")
		case address >= 16 && address <= 28:
			d.putByte(pkt, pos, annotation.Data, hexdec(pkt[pos].Value))
			d.putByte(pkt, pos, annotation.Command, "Special uses")
		default:
			state := "on"
			if pkt[pos-1].Value>>7 == 0 {
				state = "off"
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("F%d:%s", address, state))
		}

	case 0b00000:
		// [RCN-212 2.3.6]
		d.noteCommand("Binary State Control Instruction long form", "Binarystate long")
		d.putByte(pkt, pos-1, annotation.Data, "Binary State Control Instruction long form", "Binarystate long")
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		address := int(pkt[pos].Value)*128 + int(pkt[pos-1].Value&0b01111111)
		state := "on"
		if pkt[pos-1].Value>>7 == 0 {
			state = "off"
		}
		switch {
		case address == 0:
			d.putBytes(pkt, pos-1, pos, annotation.Data, state)
			d.putBytes(pkt, pos-1, pos, annotation.Command, "Broadcast F29-F32767")
		case pkt[pos-1].Value&0b01111111 == 0:
			d.putBytes(pkt, pos-1, pos, annotation.Error, "Use binarystate short", "Error", "E")
		default:
			d.putBytes(pkt, pos-1, pos, annotation.Data, fmt.Sprintf("F%d:%s", address, state))
		}

	case 0b00001:
		return d.decodeModelTime(pkt, pos)

	case 0b00010:
		return d.decodeSystemTime(pkt, pos)

	default:
		d.putByte(pkt, pos, annotation.Command, "Reserved")
	}
	return pos, false, true
}

// decodeModelTime handles the model time and date broadcast [RCN-212 2.3.9]
func (d *Decoder) decodeModelTime(pkt []frame.ByteRecord, pos int) (int, bool, bool) {
	if d.decAddr != 0 {
		d.putBytes(pkt, 0, len(pkt)-2, annotation.Error, "Only Broadcast allowed", "Error", "E")
	}
	var ok bool
	var long, short string
	switch (pkt[pos].Value >> 6) & 0b11 {
	case 0b00:
		d.noteCommand("Model-Time")
		d.putByte(pkt, pos-1, annotation.Data, "Model-Time")
		d.putByte(pkt, pos, annotation.Command, "00MMMMMM")
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "WWWHHHHH")
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "U0BBBBBB")
		long = fmt.Sprintf("%s %02d:%02d hrs, Update:%d, Acceleration:%d",
			weekdays[pkt[pos-1].Value>>5], pkt[pos-1].Value&0b00011111,
			pkt[pos-2].Value&0b00111111, pkt[pos].Value>>7, pkt[pos].Value&0b00111111)
		short = fmt.Sprintf("%s %02d:%02d, U:%d, Acc:%d",
			weekdaysShort[pkt[pos-1].Value>>5], pkt[pos-1].Value&0b00011111,
			pkt[pos-2].Value&0b00111111, pkt[pos].Value>>7, pkt[pos].Value&0b00111111)
	case 0b01:
		d.noteCommand("Model-Date")
		d.putByte(pkt, pos-1, annotation.Data, "Model-Date")
		d.putByte(pkt, pos, annotation.Command, "010TTTTT")
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "MMMMYYYY")
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "YYYYYYYY")
		year := int(pkt[pos-1].Value&0b00001111)<<8 + int(pkt[pos].Value)
		long = fmt.Sprintf("%d. %s%d", pkt[pos-2].Value&0b00011111, months[pkt[pos-1].Value>>4], year)
		short = fmt.Sprintf("%d.%d.%d", pkt[pos-2].Value&0b00011111, pkt[pos-1].Value>>4, year)
	default:
		long, short = "Reserved", "Res."
		d.putByte(pkt, pos-1, annotation.Data, "Reserved")
	}
	d.putBytes(pkt, pos-2, pos, annotation.Data, long, short)
	return pos, false, true
}

// decodeSystemTime handles the system time broadcast, two or four counter
// bytes of milliseconds since system start [RCN-212 2.3.10].
func (d *Decoder) decodeSystemTime(pkt []frame.ByteRecord, pos int) (int, bool, bool) {
	if d.decAddr != 0 {
		d.putBytes(pkt, 0, len(pkt)-2, annotation.Error, "Only Broadcast allowed", "Error", "E")
	}
	if len(pkt) == 5 || len(pkt) == 6 {
		d.noteCommand("Systemtime")
		d.putByte(pkt, pos-1, annotation.Data, "Systemtime")
	}
	if len(pkt) == 7 || len(pkt) == 8 {
		d.noteCommand("Systemtime (deprecated)")
		d.putByte(pkt, pos-1, annotation.Data, "Systemtime (deprecated)")
	}
	d.putByte(pkt, pos, annotation.Command, "MMMMMMMM")
	value := uint64(pkt[pos].Value)
	var ok bool
	if pos, ok = d.incPos(pkt, pos); !ok {
		return pos, false, false
	}
	d.putByte(pkt, pos, annotation.Command, "MMMMMMMM")
	value = value*256 + uint64(pkt[pos].Value)
	if len(pkt) == 5 || len(pkt) == 6 {
		d.putBytes(pkt, pos-1, pos, annotation.Data,
			fmt.Sprintf("%d ms since systemstart (%.0f seconds)", value, float64(value)/1000),
			fmt.Sprintf("%d ms since systemstart", value),
			fmt.Sprintf("%d", value))
	}
	if len(pkt) == 7 || len(pkt) == 8 {
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "MMMMMMMM")
		value = value*256 + uint64(pkt[pos].Value)
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "MMMMMMMM")
		value = value*256 + uint64(pkt[pos].Value)
		d.putBytes(pkt, pos-3, pos, annotation.Data,
			fmt.Sprintf("%d ms since systemstart (%.0f minutes = %.1f hours)", value, float64(value)/60000, float64(value)/3600000),
			fmt.Sprintf("%d ms since systemstart", value),
			fmt.Sprintf("%d", value))
	}
	return pos, false, true
}

// decodeCVAccess handles instruction group 111: the short form, the long
// form for programming on the main and XPOM [RCN-214 2, 3, 4].
func (d *Decoder) decodeCVAccess(pkt []frame.ByteRecord, pos int, subcmd byte) (int, bool, bool) {
	var ok bool
	switch {
	case subcmd&0b10000 == 0b10000:
		// [RCN-214 3] [RCN-217 4.3.2] Short Form
		d.putByte(pkt, pos, annotation.Command,
			"Configuration Variable Access Instruction - Short Form", "CV Access Instruction short", "CV short")
		switch subcmd & 0b1111 {
		case 0b0000:
			d.putByte(pkt, pos, annotation.Data, "Not available for use", "Not av.")
		case 0b0010:
			d.putByte(pkt, pos, annotation.Data, "Acceleration Value (CV#23)", "CV#23")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			d.putByte(pkt, pos, annotation.Command, "Data")
		case 0b0011:
			d.putByte(pkt, pos, annotation.Data, "Deceleration Value (CV#24)", "CV#24")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			d.putByte(pkt, pos, annotation.Command, "Data")
		case 0b0100:
			d.putByte(pkt, pos, annotation.Data, "Write CV#17 + CV#18", "w CV#17+18")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			d.putByte(pkt, pos, annotation.Command, "CV17")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			d.putByte(pkt, pos, annotation.Command, "CV18")
		case 0b0101:
			d.putByte(pkt, pos, annotation.Data, "Write CV#31 + CV#32", "w CV#31+32")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			d.putByte(pkt, pos, annotation.Command, "CV31")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			d.putByte(pkt, pos, annotation.Command, "CV32")
		case 0b1001:
			d.putByte(pkt, pos, annotation.Data,
				"Reserved (outdated: Service Mode Decoder Lock Instruction)", "Res. (old: Dec. Lock)", "Res.")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value&0b01111111))
			d.putByte(pkt, pos, annotation.Command, "Short address", "Addr.")
		default:
			d.putByte(pkt, pos, annotation.Data, "Reserved (maybe service mode packet)", "Reserved", "Res.")
		}

	case (pos == 1 && len(pkt) == 5) || (pos == 2 && len(pkt) == 6):
		// [RCN-214 2] [RCN-217 5.1] Long Form (POM)
		d.putByte(pkt, pos, annotation.Command,
			"Configuration Variable Access Instruction - Long Form (POM)", "CV Access Instruction long (POM)", "CV long (POM)")
		op := (subcmd >> 2) & 0b11
		if op == 0b01 || op == 0b11 || op == 0b10 {
			switch op {
			case 0b01:
				d.putByte(pkt, pos, annotation.Data, "Read/Verify byte", "r/v")
			case 0b11:
				d.putByte(pkt, pos, annotation.Data, "Write byte", "w")
			default:
				d.putByte(pkt, pos, annotation.Data, "Bit manipulation", "Bit")
			}
			if pos, ok = d.serviceCV(pkt, pos); !ok {
				return pos, false, false
			}
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			if op != 0b10 {
				d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
				d.putByte(pkt, pos, annotation.Command, "Value")
			} else {
				long, short := bitManipulationText(pkt[pos].Value)
				d.putByte(pkt, pos, annotation.Data, long, short)
				d.putByte(pkt, pos, annotation.Command, "Operation, Position, Value", "Op.,Pos,Value", "O,P,V")
			}
		} else {
			d.putByte(pkt, pos, annotation.Data, "Reserved for future use", "Res.")
		}

	case (pos == 1 && len(pkt) >= 6) || (pos == 2 && len(pkt) >= 7):
		// [RCN-214 4] [RCN-217 5.5] XPOM
		d.putByte(pkt, pos, annotation.Command, "XPOM")
		op := (subcmd >> 2) & 0b11
		if op != 0b01 && op != 0b11 && op != 0b10 {
			d.putByte(pkt, pos, annotation.Data, "Reserved for future use", "Res.")
			break
		}
		var long, short string
		switch op {
		case 0b01:
			long, short = "Read bytes", "r"
		case 0b11:
			long, short = "Write byte(s)", "w"
		default:
			long, short = "Bit write", "bit"
		}
		long += fmt.Sprintf(", SS:%d", pkt[pos].Value&0b11)
		short += fmt.Sprintf(",SS:%d", pkt[pos].Value&0b11)
		d.putByte(pkt, pos, annotation.Data, long, short)
		for i := 0; i < 3; i++ {
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
		}
		d.cvAddr = (int(pkt[pos-2].Value)*256+int(pkt[pos-1].Value))*256 + int(pkt[pos].Value) + 1
		d.putBytes(pkt, pos-2, pos, annotation.DataCV, fmt.Sprintf("%d", d.cvAddr))
		d.putBytes(pkt, pos-2, pos, annotation.Command, "CV")
		if op == 0b01 {
			break // read command carries no data bytes
		}
		// [RCN-217 6.7]
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		if op == 0b10 && pkt[pos].Value>>4 == 0b1111 {
			bl := fmt.Sprintf("%d", pkt[pos].Value&0b00000111)
			bs := bl
			if pkt[pos].Value&0b1000 == 0b1000 {
				bl += ", 1"
				bs += ",1"
			} else {
				bl += ", 0"
				bs += ",0"
			}
			d.putByte(pkt, pos, annotation.Data, bl, bs)
			d.putByte(pkt, pos, annotation.Command, "Position, Value", "Pos, Value", "P,V")
		} else if op == 0b11 {
			d.putByte(pkt, pos, annotation.Command, "Data-1")
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			for n := 2; n <= 4; n++ {
				if len(pkt) <= pos+2 {
					break
				}
				if pos, ok = d.incPos(pkt, pos); !ok {
					return pos, false, false
				}
				d.putByte(pkt, pos, annotation.Command, fmt.Sprintf("Data-%d", n))
				d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			}
		}
	}
	return pos, false, true
}
