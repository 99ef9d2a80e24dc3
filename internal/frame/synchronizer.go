package frame

import (
	"errors"
	"fmt"
	"math"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/edge"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/timing"
)

// Version of the decoder, reported in the info annotation at stream start
const Version = "3.0.0"

// errorSkipWindow is the span, in samples, covered by one configuration
// diagnostic before decoding resumes.
const errorSkipWindow = 99

// State of the frame synchronizer
type State int

const (
	StateSynchronize State = iota
	StateWaitingForPreamble
	StatePreamble
	StatePreambleFound
	StateAddressDataByte
)

// PacketHandler receives each completed byte sequence exactly once, after
// the stop bit has been seen.
type PacketHandler interface {
	Handle(pkt []ByteRecord)
}

// PacketHandlerFunc adapts a function to the PacketHandler interface
type PacketHandlerFunc func(pkt []ByteRecord)

func (f PacketHandlerFunc) Handle(pkt []ByteRecord) { f(pkt) }

// Synchronizer recovers byte and packet boundaries from the classified bit
// stream [RCN-211 2]. Its state persists across packets; all fields are
// owned by the single decoding goroutine.
type Synchronizer struct {
	MinPreambleBits  int
	IgnoreShortPulse bool
	AccuracyOverride float64

	// ConfigDiag, when non-empty, is reported instead of decoding. Fatal
	// sample-rate problems abort Run instead.
	ConfigDiag string

	src     edge.Source
	cls     *timing.Classifier
	sink    annotation.Sink
	handler PacketHandler

	state        State
	bitCounter   int
	half1Counter int
	byteValue    byte
	bitPos       [9]uint64
	bytes        []ByteRecord

	preambleStart uint64
	preambleLast  uint64

	lastPacketWasStop     bool
	railcomCutoutPossible bool
	broken1bitPossible    bool

	rate float64
}

// NewSynchronizer wires the state machine to its collaborators. The minimum
// preamble length is fixed at 10 for decoding modes and user-set (>= 10) for
// compliance modes.
func NewSynchronizer(src edge.Source, cls *timing.Classifier, handler PacketHandler, sink annotation.Sink) *Synchronizer {
	return &Synchronizer{
		MinPreambleBits:  10,
		AccuracyOverride: -1,
		src:              src,
		cls:              cls,
		sink:             sink,
		handler:          handler,
		state:            StateSynchronize,
	}
}

func (s *Synchronizer) putx(start, end uint64, cat annotation.Category, labels ...string) {
	s.sink.Put(annotation.Annotation{Start: start, End: end, Category: cat, Labels: labels})
}

// us converts a sample delta to microseconds
func (s *Synchronizer) us(delta uint64) float64 {
	return float64(delta) / s.rate * 1e6
}

// setState transitions the machine and clears the per-packet counters. A
// return to StateSynchronize additionally drops every carried-over flag so
// no packet state survives resynchronization.
func (s *Synchronizer) setState(next State) {
	s.state = next
	s.bitCounter = 0
	s.half1Counter = 0
	s.bytes = nil
	if next == StateSynchronize {
		s.railcomCutoutPossible = false
		s.broken1bitPossible = false
		s.lastPacketWasStop = false
	}
}

// stopBitCredit reports whether the stop bit of the previous packet counts
// toward the preamble. Decode modes grant the credit, compliance modes
// intentionally do not.
func (s *Synchronizer) stopBitCredit() bool {
	return s.lastPacketWasStop && !s.cls.Mode.IsCompliance()
}

// Run drives the pipeline until the edge source is exhausted. The only
// error it returns is a missing or non-positive sample rate, raised before
// any edge is consumed; every other anomaly becomes an annotation.
func (s *Synchronizer) Run() error {
	s.rate = s.src.SampleRate()
	if s.rate <= 0 {
		return errors.New("cannot decode without samplerate")
	}
	s.cls.SetAccuracy(s.rate, s.AccuracyOverride)

	e1, ok := s.src.Next()
	if !ok {
		return nil
	}
	e2, ok := s.src.Next()
	if !ok {
		return nil
	}

	s.putInfoHeader(e1)

	for {
		var e3, e4 uint64
		hasE4 := false
		part1 := s.us(e2 - e1)

		if s.ConfigDiag != "" {
			e3 = e2 + errorSkipWindow
			s.putx(e1, e3, annotation.Error, s.ConfigDiag, "Error", "E")
			n, ok := s.src.Next()
			if !ok {
				return nil
			}
			e1, e2 = e3, n
			continue
		}

		if s.state == StateSynchronize {
			s.cls.SetSpan(e1, e2, e2)
			if s.cls.IsHalf1Bit(part1) {
				s.half1Counter++
				s.putx(e1, e2, annotation.BitsOther, "half 1 bit", "½ 1")
				s.putx(e1, e2, annotation.FrameOther,
					fmt.Sprintf("Synchronize (%d/min%d)", s.half1Counter, s.MinPreambleBits*2), "Sync", "S")
				n, ok := s.src.Next()
				if !ok {
					return nil
				}
				e1, e2 = e2, n
				continue
			}

			n, ok := s.src.Next()
			if !ok {
				return nil
			}
			e3 = n
			part2 := s.us(e3 - e2)
			s.cls.SetSpan(e1, e2, e3)

			if s.cls.Is0Bit(part1, part2) {
				if s.half1Counter >= s.MinPreambleBits*2 {
					// resynchronized mid-stream: the confirmed zero
					// doubles as the packet start bit
					s.half1Counter = 0
					s.setState(StatePreambleFound)
				} else {
					if s.half1Counter == 0 {
						s.putx(e1, e2, annotation.FrameOther, "Synchronize (wait for half 1 bits)", "Synchronize", "Sync", "S")
						s.putx(e2, e3, annotation.FrameOther, "Synchronize (wait for half 1 bits)", "Synchronize", "Sync", "S")
					} else {
						s.putx(e1, e3, annotation.BitsOther, "0")
						s.putx(e1, e3, annotation.FrameOther,
							fmt.Sprintf("Synchronize (wait for preamble) (too few half 1 bits (%d/min%d))",
								s.half1Counter, s.MinPreambleBits*2), "Synchronize", "Sync.", "S")
					}
					s.half1Counter = 0
					n, ok := s.src.Next()
					if !ok {
						return nil
					}
					e1, e2 = e3, n
					continue
				}
			} else {
				// not a zero either; slide the window by one half-period
				s.putx(e1, e2, annotation.BitsOther, fmt.Sprintf("%.2fµs", part1))
				s.putx(e1, e2, annotation.FrameOther, "Synchronize (wait for half 1 bits)", "Sync", "S")
				e1, e2 = e2, e3
				s.setState(StateSynchronize)
				continue
			}
		} else {
			n, ok := s.src.Next()
			if !ok {
				return nil
			}
			e3 = n
		}

		part2 := s.us(e3 - e2)
		total := part1 + part2
		s.cls.SetSpan(e1, e2, e3)

		type bitKind int
		const (
			bitUnknown bitKind = iota
			bitZero
			bitOne
		)
		bit := bitUnknown
		var unknownLong, unknownShort string

		switch {
		case s.cls.Is1Bit(part1, part2):
			bit = bitOne
			s.railcomCutoutPossible = false
			s.broken1bitPossible = false

		case s.cls.Is0Bit(part1, part2):
			bit = bitZero
			if s.cls.IsRailcomCutout(total, s.railcomCutoutPossible) {
				n, ok := s.consumeCutout(e1, e3)
				if !ok {
					return nil
				}
				e1, e2 = e3, n
				continue
			}
			s.railcomCutoutPossible = false
			s.broken1bitPossible = false
			if s.cls.IsStretchedZeroVariance(part1, part2) {
				delta := math.Abs(part1 - part2)
				s.putx(e1, e3, annotation.Info,
					fmt.Sprintf("Streched 0-bit: Δ:%.2fµs (%.2fµs/%.2fµs)", delta, part1, part2),
					fmt.Sprintf("Δ%.2fµs", delta))
			}

		case s.cls.IsRailcomCutout(total, s.railcomCutoutPossible):
			n, ok := s.consumeCutout(e1, e3)
			if !ok {
				return nil
			}
			e1, e2 = e3, n
			continue

		case s.cls.IsBrokenOneBitAfterCutout(total, s.broken1bitPossible):
			s.broken1bitPossible = false
			s.putx(e1, e3, annotation.FrameOther, "broken 1-bit")
			s.putx(e1, e3, annotation.BitsOther, "ignored broken 1-bit after Railcom cutout", "ignored")
			n, ok := s.src.Next()
			if !ok {
				return nil
			}
			e1, e2 = e3, n
			s.setState(StateWaitingForPreamble)
			continue

		default:
			if s.IgnoreShortPulse {
				n, ok := s.src.Next()
				if !ok {
					return nil
				}
				e4, hasE4 = n, true
				d34 := s.us(e4 - e3)
				d23 := s.us(e3 - e2)
				if d34 <= timing.InterferingPulseMax && d23 <= timing.InterferingPulseMax {
					// not quite accurate but sufficient enough
					e2 = (e2 + e4) / 2
					s.putx(e2, e4, annotation.Info, "Short pulse ignored (1)")
					continue
				} else if d34 <= timing.InterferingPulseMax {
					s.putx(e3, e4, annotation.Info, "Short pulse ignored (2)")
					continue
				} else if d23 <= timing.InterferingPulseMax {
					s.putx(e2, e3, annotation.Info, "Short pulse ignored (3)")
					e2 = e4
					continue
				}
			}
			unknownLong = fmt.Sprintf("%.2fµs=%.2fµs+%.2fµs", total, part1, part2)
			unknownShort = fmt.Sprintf("%.2fµs", total)
			s.putx(e1, e3, annotation.FrameOther, "Resynchronize (wait for preamble)", "Resynchronize", "Resync.", "R")
			s.putx(e1, e3, annotation.Error, "unknown timing - should not occur - dirty signal?", "Error", "E")
			s.setState(StateSynchronize)
		}

		if bit == bitUnknown {
			s.putx(e1, e3, annotation.BitsOther, unknownLong, unknownShort)
			s.setState(StateSynchronize)
		} else if s.state != StateSynchronize {
			if bit == bitOne {
				s.putx(e1, e3, annotation.Bits, "1")
				s.processBit(e1, e3, true)
			} else {
				s.putx(e1, e3, annotation.Bits, "0")
				s.processBit(e1, e3, false)
			}
		}

		if !hasE4 {
			n, ok := s.src.Next()
			if !ok {
				return nil
			}
			e4 = n
		}
		e1, e2 = e3, e4
	}
}

// consumeCutout annotates the cutout interval, arms the broken-bit
// allowance and pulls the edge that restarts the window.
func (s *Synchronizer) consumeCutout(start, end uint64) (uint64, bool) {
	s.railcomCutoutPossible = false
	s.broken1bitPossible = true
	s.lastPacketWasStop = false
	s.putx(start, end, annotation.Bits, "Railcom cutout", "Railcom", "R")
	n, ok := s.src.Next()
	if !ok {
		return 0, false
	}
	s.setState(StateWaitingForPreamble)
	return n, true
}

// putInfoHeader reports sample rate, derived accuracy and decoder version
// over the span before the first edge.
func (s *Synchronizer) putInfoHeader(firstEdge uint64) {
	var label string
	if s.rate/1000 < 1000 {
		label = fmt.Sprintf("Samplerate: %.0f kHz", s.rate/1000)
	} else {
		label = fmt.Sprintf("Samplerate: %.0f MHz", s.rate/1e6)
	}
	label += ", this results in an accuracy deviation of: "
	if acc := s.cls.Accuracy; acc >= 1 {
		label += fmt.Sprintf("%.0f µs", acc)
	} else {
		label += fmt.Sprintf("%.0f ns", acc*1000)
	}
	label += ", DCC decoder version:" + Version
	s.putx(0, firstEdge, annotation.BitsOther, label)
}

// processBit feeds one confirmed bit into the framing states [RCN-211 2]
func (s *Synchronizer) processBit(start, stop uint64, one bool) {
	switch s.state {
	case StatePreambleFound:
		// the bit directly after a valid preamble must be the start bit
		if !one {
			s.putx(start, stop, annotation.Frame, "Start Packet", "Start", "S")
			s.setState(StateAddressDataByte)
		} else {
			s.putx(start, stop, annotation.FrameOther, "Resynchronize (Wait for preamble)", "Resynchronize", "Resync.", "R")
			s.putx(start, stop, annotation.Error, "unexpected 1-bit found", "Error", "E")
			s.setState(StateSynchronize)
		}

	case StateWaitingForPreamble:
		if one {
			s.setState(StatePreamble)
			s.preambleStart = start
		}

	case StatePreamble:
		if one {
			s.bitCounter++
			s.preambleLast = stop
			return
		}
		count := s.bitCounter
		credit := s.stopBitCredit()
		if credit {
			count++
		}
		if count+1 >= s.MinPreambleBits {
			s.putx(start, stop, annotation.Frame, "Start Packet", "Start", "S")
			if credit {
				s.putx(s.preambleStart, s.preambleLast, annotation.Frame,
					fmt.Sprintf("Preamble: 1+%d bits", count), "Preamble", "P")
			} else {
				s.putx(s.preambleStart, s.preambleLast, annotation.Frame,
					fmt.Sprintf("Preamble: %d bits", count+1), "Preamble", "P")
			}
			s.setState(StateAddressDataByte)
		} else {
			s.putx(start, stop, annotation.FrameOther, "Resynchronize (Wait for preamble)", "Resynchronize", "Resync.", "R")
			if credit {
				s.putx(s.preambleStart, s.preambleLast, annotation.Error,
					fmt.Sprintf("Invalid preamble (too few 1-bits (1+%d/min%d))", count, s.MinPreambleBits), "Error", "E")
			} else {
				s.putx(s.preambleStart, s.preambleLast, annotation.Error,
					fmt.Sprintf("Invalid preamble (too few 1-bits (%d/min%d))", count+1, s.MinPreambleBits), "Error", "E")
			}
			s.setState(StateSynchronize)
		}

	case StateAddressDataByte:
		s.lastPacketWasStop = false
		if s.bitCounter < 8 {
			if s.bitCounter == 0 {
				s.byteValue = 0
			}
			s.bitPos[s.bitCounter] = start
			s.bitCounter++
			s.byteValue <<= 1
			if one {
				s.byteValue |= 1
			}
			if s.bitCounter == 8 {
				s.bitPos[8] = stop
				s.bytes = append(s.bytes, ByteRecord{Value: s.byteValue, BitPos: s.bitPos})
			}
			return
		}
		// the ninth bit separates bytes or ends the packet
		if !one {
			s.bitCounter = 0
			s.byteValue = 0
			s.putx(start, stop, annotation.Frame, "Start Databyte", "Start", "S")
		} else {
			s.putx(start, stop, annotation.Frame, "Stop Packet", "Stop", "S")
			if s.handler != nil {
				s.handler.Handle(s.bytes)
			}
			s.railcomCutoutPossible = true
			s.lastPacketWasStop = true
			s.setState(StateWaitingForPreamble)
		}
	}
}
