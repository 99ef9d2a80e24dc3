package packet

import (
	"fmt"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/frame"
)

// decodeAccessory handles packets for basic and extended accessory
// decoders, the NOP poll and programming on the main [RCN-213, RCN-217].
//
// 10AAAAAA 1AAADAAR                             Basic Accessory
// 10111111 1000DAAR                             Broadcast for Basic Accessory (NMRA only)
// 10111111 10000110                             ESTOP
// 10AAAAAA 1AAA1AA0 1110CCVV VVVVVVVV DDDDDDDD  Basic Accessory POM
// 10AAAAAA 0AAA0AA1 DDDDDDDD                    Extended Accessory
// 10111111 00000111 DDDDDDDD                    Broadcast for Extended Accessory
// 10111111 00000111 00000000                    ESTOP
// 10AAAAAA 0AAA0AA1 1110CCVV VVVVVVVV DDDDDDDD  Extended Accessory POM
// 10AAAAAA 0AAA1AAT                             NOP
func (d *Decoder) decodeAccessory(pkt []frame.ByteRecord) (int, bool, bool) {
	pos, ok := d.incPos(pkt, 0)
	if !ok {
		return pos, false, false
	}

	a1 := pkt[pos-1].Value & 0b00111111        // 6 addr bits
	a2 := ^(pkt[pos].Value >> 4) & 0b0111      // 3 addr bits, inverted on the wire
	a3 := (pkt[pos].Value & 0b00000110) >> 1   // port address
	decoder := int(a2)<<6 + int(a1)
	port := int(a3)
	decaddr := int(a2)<<8 + int(a1)<<2 + int(a3) - 3
	d.accAddr = decaddr + d.AddrOffset
	if decaddr < 1 {
		d.putBytes(pkt, pos-1, pos, annotation.Error, "Address < 1 not allowed", "Error", "E")
	}
	addrLong := fmt.Sprintf("%d (decoder:%d, port:%d)", d.accAddr, decoder, port)
	addrMid := fmt.Sprintf("%d (%d,%d)", d.accAddr, decoder, port)
	addrShort := fmt.Sprintf("%d", d.accAddr)

	pom := false
	switch {
	case pkt[pos].Value&0b10001000 == 0b00001000:
		// [RCN-213 2.5] [RCN-217 4.3.3] RailCom poll
		d.noteCommand("Railcom NOP (AccQuery)", "RC NOP")
		d.putByte(pkt, pos, annotation.Data, "Railcom NOP (AccQuery)", "RC NOP")
		d.putByte(pkt, pos-1, annotation.DataAccessory, addrShort)
		if pkt[pos].Value&1 == 0 {
			d.putByte(pkt, pos-1, annotation.Command, "Basic Accessory Decoder", "Basic Accessory", "Basic Acc.")
		} else {
			d.putByte(pkt, pos-1, annotation.Command, "Extended Accessory Decoder", "Ext. Acc.")
		}

	case pkt[pos].Value&0b10000000 == 0b10000000:
		if len(pkt) == 3 || len(pkt) == 4 {
			// [RCN-213 2.1]
			d.putByte(pkt, pos-1, annotation.Command, "Basic Accessory Decoder", "Basic Accessory", "Basic Acc.")
			if d.accAddr+3 == 2047 {
				// [RCN-213 2.2]
				if (pkt[pos].Value>>3)&1 == 0 && pkt[pos].Value&1 == 0 {
					d.putByte(pkt, pos-1, annotation.DataAccessory, "Broadcast")
					d.putByte(pkt, pos-1, annotation.Command, "Broadcast")
					d.noteCommand("ESTOP")
					d.putByte(pkt, pos, annotation.Data, "ESTOP")
				} else {
					d.putByte(pkt, pos, annotation.Info, "Unknown (maybe NMRA-Broadcast)", "Unknown")
				}
			} else if len(pkt) == 3 {
				state := "off"
				if (pkt[pos].Value>>3)&1 != 0 {
					state = "on"
				}
				d.putByte(pkt, pos-1, annotation.DataAccessory, addrLong, addrMid, addrShort)
				d.putByte(pkt, pos, annotation.Data, fmt.Sprintf("%d:%s", pkt[pos].Value&1, state))
			} else if len(pkt) == 4 && pkt[pos].Value&0b1001 == 0b0000 {
				if pos, ok = d.incPos(pkt, pos); !ok {
					return pos, false, false
				}
				if pkt[pos].Value == 0 {
					d.putByte(pkt, pos-1, annotation.DataAccessory, addrLong, addrMid, addrShort)
					d.putByte(pkt, pos, annotation.Command, "Decoder reset", "Reset")
				} else {
					d.putBytes(pkt, pos-1, pos, annotation.Info, "Unknown")
				}
			} else {
				d.putByte(pkt, pos, annotation.Info, "Unknown")
			}
		} else if len(pkt) == 6 {
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			if pkt[pos].Value>>4 == 0b1110 {
				// [RCN-217 6.2]
				pom = true
				d.putByte(pkt, pos-2, annotation.Command, "POM for Basic Accessory Decoder", "POM Basic Accessory", "POM Basic Acc.")
				d.putByte(pkt, pos-1, annotation.DataAccessory, addrLong, addrMid, addrShort)
				d.putByte(pkt, pos-1, annotation.Command, "Address", "Addr.")
			} else {
				d.putBytes(pkt, pos-2, pos, annotation.Info, "Unknown")
			}
		}

	default:
		// [RCN-213 2.3]
		if len(pkt) == 4 {
			d.putByte(pkt, pos-1, annotation.Command, "Extended Accessory Decoder Control Packet", "Extended Accessory", "Ext. Acc.")
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			if d.accAddr+3 == 2047 {
				// [RCN-213 2.4]
				if pkt[pos].Value == 0 {
					d.putByte(pkt, pos-1, annotation.DataAccessory, "Broadcast")
					d.putByte(pkt, pos-1, annotation.Command, "Broadcast")
					d.noteCommand("ESTOP")
					d.putByte(pkt, pos, annotation.Data, "ESTOP")
				} else {
					d.putByte(pkt, pos-1, annotation.Data, hexdec(pkt[pos-1].Value))
					d.putByte(pkt, pos, annotation.Data, hexdec(pkt[pos].Value))
					d.putBytes(pkt, pos-1, pos, annotation.Info, "Unknown")
				}
			} else {
				d.putBytes(pkt, pos-2, pos-1, annotation.DataAccessory, addrLong, addrMid, addrShort)
				d.putByte(pkt, pos, annotation.Data, "Aspect:"+hexdec(pkt[pos].Value))
				var out string
				switch pkt[pos].Value & 0b01111111 {
				case 0b01111111:
					out = "on"
				case 0b00000000:
					out = "off"
				default:
					out = fmt.Sprintf("%d", pkt[pos].Value&0b01111111)
				}
				d.putByte(pkt, pos, annotation.Command,
					fmt.Sprintf("Switching time:%s, output:%d", out, pkt[pos].Value>>7))
			}
		} else if len(pkt) == 6 {
			if pos, ok = d.incPos(pkt, pos); !ok {
				return pos, false, false
			}
			if pkt[pos].Value>>4 == 0b1110 {
				// [RCN-217 6.2]
				pom = true
				d.putByte(pkt, pos-2, annotation.Command, "POM for Extended Accessory Decoder", "POM Extended Accessory", "POM Extended Acc.")
				d.putByte(pkt, pos-1, annotation.DataAccessory, addrLong, addrMid, addrShort)
				d.putByte(pkt, pos-1, annotation.Command, "Address", "Addr.")
			} else {
				d.putBytes(pkt, pos-2, pos, annotation.Info, "Unknown")
			}
		}
	}

	if pom {
		subcmd := pkt[pos].Value & 0b00011111
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
			d.putByte(pkt, pos, annotation.Command, "Mode")
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
	}
	return pos, false, true
}
