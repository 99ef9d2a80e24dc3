package packet

import (
	"fmt"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/frame"
)

// decodeAdvancedExtended handles first byte 253 [S-9.2.1.1]. The format is
// still in definition, so the payload is dumped byte-wise; longer packets
// carry a CRC before the checksum.
func (d *Decoder) decodeAdvancedExtended(pkt []frame.ByteRecord) (int, bool, bool) {
	pos := 0
	d.putByte(pkt, pos, annotation.Command, "Advanced Extended Packet", "Adv. Ext. Packet", "Adv. Ext.")
	var ok bool
	if len(pkt) <= 6 {
		for i := pos; i < len(pkt)-2; i++ {
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, "?:"+hexdec(pkt[pos].Value))
			d.putBytes(pkt, 1, pos, annotation.Command, "S-9.1.1 in definition phase")
		}
	} else {
		for i := pos; i < len(pkt)-3; i++ {
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Data, "?:"+hexdec(pkt[pos].Value))
		}
		if pos, ok = d.processCRC(pkt, pos); !ok {
			return pos, false, false
		}
		d.putBytes(pkt, 1, pos-1, annotation.Command, "S-9.1.1 in definition phase")
	}
	return pos, false, true
}

// decodeID consumes the 12 bit manufacturer ID sharing the low nibble of
// the command byte plus the 32 bit decoder ID [RCN-218 3].
func (d *Decoder) decodeID(pkt []frame.ByteRecord, pos int, commandByte byte) (int, bool) {
	pos, ok := d.incPos(pkt, pos)
	if !ok {
		return pos, false
	}
	manufacturer := int(commandByte&0b00001111)<<8 + int(pkt[pos].Value)
	d.putx(pkt[pos-1].BitPos[4], pkt[pos].BitPos[8], annotation.Command, "12 bit manufacturer ID", "manufacturer ID")
	d.putx(pkt[pos-1].BitPos[4], pkt[pos].BitPos[8], annotation.Data, fmt.Sprintf("%#x", manufacturer))
	var decoderID uint32
	for i := 0; i < 4; i++ {
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false
		}
		decoderID = decoderID<<8 + uint32(pkt[pos].Value)
	}
	d.putBytes(pkt, pos-3, pos, annotation.Data, fmt.Sprintf("%#x", decoderID))
	d.putBytes(pkt, pos-3, pos, annotation.Command, "32 bit decoder ID", "decoder ID")
	return pos, true
}

// decodeDCCA handles first byte 254, the automatic logon protocol
// [RCN-218].
func (d *Decoder) decodeDCCA(pkt []frame.ByteRecord) (int, bool, bool) {
	pos := 0
	d.putByte(pkt, pos, annotation.Command, "DCC-A")
	pos, ok := d.incPos(pkt, pos)
	if !ok {
		return pos, false, false
	}
	commandByte := pkt[pos].Value

	switch {
	case commandByte == 0b00000000:
		d.putByte(pkt, pos, annotation.Command, "GET_DATA_START")
	case commandByte == 0b00000001:
		d.putByte(pkt, pos, annotation.Command, "GET_DATA_CONT")
	case commandByte == 0b00000010:
		d.putByte(pkt, pos, annotation.Command, "SET_DATA_START")
		d.putByte(pkt, pos, annotation.Info, "currently not defined")
	case commandByte == 0b00000011:
		d.putByte(pkt, pos, annotation.Command, "SET_DATA_CONT")
		d.putByte(pkt, pos, annotation.Info, "currently not defined")
	case commandByte <= 0b11001111:
		d.putByte(pkt, pos, annotation.Command, "Reserved")

	case commandByte <= 0b11011111:
		// SELECT, reserved subcommand space
		d.putx(pkt[pos].BitPos[0], pkt[pos].BitPos[4], annotation.Command, "Reserved")
		if pos, ok = d.decodeID(pkt, pos, commandByte); !ok {
			return pos, false, false
		}
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "Subcommand")
		subcommand := pkt[pos].Value
		errorPacket := false
		switch subcommand {
		case 0b11111111:
			d.putByte(pkt, pos, annotation.Data, "Read ShortInfo")
		case 0b11111110:
			d.putByte(pkt, pos, annotation.Data, "Read Block")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Command, "Data space number", "Data space", "Space")
			d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
			if len(pkt) == 15 {
				labels := [][]string{
					{"CV31"},
					{"CV32"},
					{"CV address"},
					{"Number of CVs requested", "#CVs"},
				}
				for _, label := range labels {
					if pos, ok = d.incPos(pkt, pos); !ok {
						return pos, false, false
					}
					d.putByte(pkt, pos, annotation.Command, label...)
					d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
				}
			} else if len(pkt) != 11 {
				d.putBytes(pkt, 0, len(pkt)-1, annotation.Error,
					fmt.Sprintf("Unknown Paket, length: %d", len(pkt)), "Error", "E")
				errorPacket = true
			}
		case 0b11111101:
			d.putByte(pkt, pos, annotation.Data, "Reserved (Read Background)", "Reserved")
		case 0b11111100:
			d.putByte(pkt, pos, annotation.Data, "Reserved (Write Block)", "Reserved")
		case 0b11111011:
			d.putByte(pkt, pos, annotation.Data, "Set decoder internal state", "Set state")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			d.putByte(pkt, pos, annotation.Command, "State")
			if pkt[pos].Value == 0b11111111 {
				d.putByte(pkt, pos, annotation.Data, "delete changeflags")
			} else {
				d.putByte(pkt, pos, annotation.Data, "Reserved")
			}
		default:
			d.putByte(pkt, pos, annotation.Data, "Reserved")
		}
		if !errorPacket {
			if pos, ok = d.processCRC(pkt, pos); !ok {
				return pos, false, false
			}
		}

	case commandByte <= 0b11101111:
		d.putx(pkt[pos].BitPos[0], pkt[pos].BitPos[4], annotation.Command, "LOGON_ASSIGN")
		if pos, ok = d.decodeID(pkt, pos, commandByte); !ok {
			return pos, false, false
		}
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		if (pkt[pos-1].Value&0b11000000)>>6 == 0b11 {
			d.putx(pkt[pos-1].BitPos[0], pkt[pos-1].BitPos[2], annotation.Command, "Reserved", "Res")
			d.putx(pkt[pos-1].BitPos[2], pkt[pos].BitPos[8], annotation.Command, "decoder address")
			addr := int(pkt[pos-1].Value&0b00111111)<<8 + int(pkt[pos].Value)
			d.putx(pkt[pos-1].BitPos[2], pkt[pos].BitPos[8], annotation.Data, fmt.Sprintf("%#x", addr))
		} else {
			d.putBytes(pkt, pos-1, pos, annotation.Info, "ignore command")
		}
		d.putx(pkt[pos-1].BitPos[0], pkt[pos-1].BitPos[2], annotation.Data,
			fmt.Sprintf("%b", (pkt[pos-1].Value&0b11000000)>>6))
		if pos, ok = d.processCRC(pkt, pos); !ok {
			return pos, false, false
		}
	}

	switch {
	case commandByte == 0b11110000:
		d.putByte(pkt, pos, annotation.Command, "Reserved")
	case commandByte >= 0b11110001 && commandByte <= 0b11111011:
		d.putByte(pkt, pos, annotation.Command, "Reserved")
	case commandByte >= 0b11111100:
		d.putByte(pkt, pos, annotation.Command, "LOGON_ENABLE")
		switch commandByte & 0b00000011 {
		case 0b00:
			d.putByte(pkt, pos, annotation.Data, "ALL: all decoders resond", "ALL")
		case 0b01:
			d.putByte(pkt, pos, annotation.Data, "LOCO: mobile decoders only", "LOCO")
		case 0b10:
			d.putByte(pkt, pos, annotation.Data, "ACC: accessory decoders only", "ACC")
		default:
			d.putByte(pkt, pos, annotation.Data, "NOW: all decoders (regardless of backoff)", "NOW")
		}
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "CID MSB", "CID")
		d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%#x", pkt[pos].Value))
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "CID LSB", "CID")
		d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%#x", pkt[pos].Value))
		if pos, ok = d.incPos(pkt, pos); !ok {
			return pos, false, false
		}
		d.putByte(pkt, pos, annotation.Command, "SessionID")
		d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d", pkt[pos].Value))
	}
	return pos, false, true
}

// decodeIdleOrSystem handles first byte 255: the idle packet and the
// undocumented RailComPlus system commands [RCN-211 4.2, 4.3].
func (d *Decoder) decodeIdleOrSystem(pkt []frame.ByteRecord) (int, bool, bool) {
	pos, ok := d.incPos(pkt, 0)
	if !ok {
		return pos, false, false
	}
	if pkt[pos].Value == 0 {
		d.putBytes(pkt, pos-1, pos, annotation.Command, "Idle")
		return pos, false, true
	}
	d.putBytes(pkt, pos-1, pos-1, annotation.Command, "RailComPlus®")
	if len(pkt) >= 5 && pkt[pos+1].Value == 62 && pkt[pos+2].Value == 7 && pkt[pos+3].Value == 64 {
		d.putBytes(pkt, pos, len(pkt)-2, annotation.Command, "System command (not documented) (IDNotify?)", "System command")
	} else {
		d.putBytes(pkt, pos, len(pkt)-2, annotation.Command, "System command (not documented)", "System command")
	}
	return pos - 1, true, true
}
