package frame

import (
	"strings"
	"testing"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/edge"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/timing"
)

// capturingHandler records every completed packet
type capturingHandler struct {
	packets [][]byte
}

func (h *capturingHandler) Handle(pkt []ByteRecord) {
	values := make([]byte, len(pkt))
	for i, b := range pkt {
		values[i] = b.Value
	}
	h.packets = append(h.packets, values)
}

// edgeStream builds strictly increasing edge positions from a list of
// half-period durations. At 1MHz one sample is one microsecond.
func edgeStream(durations []uint64) []uint64 {
	pos := uint64(1000)
	edges := []uint64{pos}
	for _, d := range durations {
		pos += d
		edges = append(edges, pos)
	}
	return edges
}

// halves appends n copies of d
func halves(dst []uint64, d uint64, n int) []uint64 {
	for i := 0; i < n; i++ {
		dst = append(dst, d)
	}
	return dst
}

// packetHalves encodes a start bit, the given bytes with their separator
// bits and the closing stop bit as half-period durations.
func packetHalves(dst []uint64, bytes []byte) []uint64 {
	dst = append(dst, 100, 100) // start bit
	for i, b := range bytes {
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<uint(bit)) != 0 {
				dst = append(dst, 58, 58)
			} else {
				dst = append(dst, 100, 100)
			}
		}
		if i < len(bytes)-1 {
			dst = append(dst, 100, 100) // byte separator
		} else {
			dst = append(dst, 58, 58) // stop bit
		}
	}
	return dst
}

func runSynchronizer(t *testing.T, edges []uint64) (*capturingHandler, *annotation.Recorder) {
	t.Helper()
	rec := &annotation.Recorder{}
	handler := &capturingHandler{}
	cls := timing.NewClassifier(timing.ModeNMRADecoding, timing.Profile{}, false, false, rec)
	sync := NewSynchronizer(edge.NewSliceSource(1000000, edges), cls, handler, rec)
	if err := sync.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return handler, rec
}

func frameLabels(rec *annotation.Recorder) []string {
	var out []string
	for _, a := range rec.ByCategory(annotation.Frame) {
		out = append(out, a.Labels[0])
	}
	return out
}

func TestSynchronizer_DecodesIdlePacket(t *testing.T) {
	var durs []uint64
	durs = halves(durs, 58, 24)
	durs = packetHalves(durs, []byte{0xFF, 0x00, 0xFF})

	handler, rec := runSynchronizer(t, edgeStream(durs))

	if len(handler.packets) != 1 {
		t.Fatalf("packets = %d, want 1", len(handler.packets))
	}
	got := handler.packets[0]
	want := []byte{0xFF, 0x00, 0xFF}
	if len(got) != len(want) {
		t.Fatalf("packet = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("packet = %v, want %v", got, want)
		}
	}

	labels := frameLabels(rec)
	wantFrames := []string{"Start Packet", "Start Databyte", "Start Databyte", "Stop Packet"}
	if len(labels) != len(wantFrames) {
		t.Fatalf("frame labels = %v, want %v", labels, wantFrames)
	}
	for i := range wantFrames {
		if labels[i] != wantFrames[i] {
			t.Fatalf("frame labels = %v, want %v", labels, wantFrames)
		}
	}
}

func TestSynchronizer_ByteValueAndBitPositions(t *testing.T) {
	var durs []uint64
	durs = halves(durs, 58, 24)
	durs = packetHalves(durs, []byte{0xA3, 0xA3})

	handler := &capturingHandler{}
	var records [][]ByteRecord
	cls := timing.NewClassifier(timing.ModeNMRADecoding, timing.Profile{}, false, false, &annotation.Recorder{})
	sync := NewSynchronizer(edge.NewSliceSource(1000000, edgeStream(durs)), cls,
		PacketHandlerFunc(func(pkt []ByteRecord) {
			records = append(records, append([]ByteRecord(nil), pkt...))
			handler.Handle(pkt)
		}), &annotation.Recorder{})
	if err := sync.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(records) != 1 || len(records[0]) != 2 {
		t.Fatalf("records = %v", records)
	}
	b := records[0][0]
	if b.Value != 0xA3 {
		t.Errorf("Value = %#x, want 0xa3", b.Value)
	}
	if b.Start() != b.BitPos[0] || b.End() != b.BitPos[8] {
		t.Error("Start/End do not match the bit position table")
	}
	for i := 0; i < 8; i++ {
		if b.BitPos[i] >= b.BitPos[i+1] {
			t.Fatalf("bit positions not increasing: %v", b.BitPos)
		}
	}
}

func TestSynchronizer_PreambleWithStopBitCredit(t *testing.T) {
	var durs []uint64
	durs = halves(durs, 58, 24)
	durs = packetHalves(durs, []byte{0xFF, 0x00, 0xFF})
	// second packet rides on the stop bit credit
	durs = halves(durs, 58, 24) // 12 preamble bits
	durs = packetHalves(durs, []byte{0xFF, 0x00, 0xFF})

	handler, rec := runSynchronizer(t, edgeStream(durs))

	if len(handler.packets) != 2 {
		t.Fatalf("packets = %d, want 2", len(handler.packets))
	}
	var preamble string
	for _, l := range frameLabels(rec) {
		if strings.HasPrefix(l, "Preamble") {
			preamble = l
		}
	}
	// 12 one bits counted as first bit plus 11, plus the stop bit credit
	if preamble != "Preamble: 1+12 bits" {
		t.Errorf("preamble label = %q, want %q", preamble, "Preamble: 1+12 bits")
	}
}

func TestSynchronizer_ShortPreambleRejected(t *testing.T) {
	var durs []uint64
	durs = halves(durs, 58, 24)
	durs = packetHalves(durs, []byte{0xFF, 0x00, 0xFF})
	// only 4 one bits before the next zero: not a valid preamble
	durs = halves(durs, 58, 8)
	durs = append(durs, 100, 100)
	// trailing edges so the rejection is fully processed
	durs = halves(durs, 58, 4)

	handler, rec := runSynchronizer(t, edgeStream(durs))

	if len(handler.packets) != 1 {
		t.Fatalf("packets = %d, want 1", len(handler.packets))
	}
	found := false
	for _, a := range rec.ByCategory(annotation.Error) {
		if strings.HasPrefix(a.Labels[0], "Invalid preamble (too few 1-bits (1+4/min10))") {
			found = true
		}
	}
	if !found {
		t.Error("missing invalid preamble error annotation")
	}
}

func TestSynchronizer_TooFewSyncBits(t *testing.T) {
	var durs []uint64
	durs = halves(durs, 58, 6) // 6 half bits, need 20
	durs = append(durs, 100, 100)
	durs = halves(durs, 58, 4)

	_, rec := runSynchronizer(t, edgeStream(durs))

	found := false
	for _, a := range rec.ByCategory(annotation.FrameOther) {
		if strings.Contains(a.Labels[0], "too few half 1 bits (6/min20)") {
			found = true
		}
	}
	if !found {
		t.Error("missing too-few-half-bits annotation")
	}
}

func TestSynchronizer_UnknownTimingResynchronizes(t *testing.T) {
	var durs []uint64
	durs = halves(durs, 58, 24)
	durs = packetHalves(durs, []byte{0xFF, 0x00, 0xFF})
	durs = halves(durs, 58, 4)
	durs = append(durs, 20, 75) // fits neither bit window
	durs = halves(durs, 58, 4)

	_, rec := runSynchronizer(t, edgeStream(durs))

	found := false
	for _, a := range rec.ByCategory(annotation.Error) {
		if a.Labels[0] == "unknown timing - should not occur - dirty signal?" {
			found = true
		}
	}
	if !found {
		t.Error("missing unknown timing error annotation")
	}
}

func TestSynchronizer_RailcomCutoutAfterStop(t *testing.T) {
	var durs []uint64
	durs = halves(durs, 58, 24)
	durs = packetHalves(durs, []byte{0xFF, 0x00, 0xFF})
	durs = append(durs, 230, 240) // 470µs total, inside the cutout window
	durs = halves(durs, 58, 24)
	durs = packetHalves(durs, []byte{0xFF, 0x00, 0xFF})

	handler, rec := runSynchronizer(t, edgeStream(durs))

	if len(handler.packets) != 2 {
		t.Fatalf("packets = %d, want 2", len(handler.packets))
	}
	found := false
	for _, a := range rec.ByCategory(annotation.Bits) {
		if a.Labels[0] == "Railcom cutout" {
			found = true
		}
	}
	if !found {
		t.Error("missing Railcom cutout annotation")
	}
}

func TestSynchronizer_ConfigDiagnosticSuspendsDecoding(t *testing.T) {
	var durs []uint64
	durs = halves(durs, 58, 24)
	durs = packetHalves(durs, []byte{0xFF, 0x00, 0xFF})

	rec := &annotation.Recorder{}
	handler := &capturingHandler{}
	cls := timing.NewClassifier(timing.ModeNMRADecoding, timing.Profile{}, false, false, rec)
	sync := NewSynchronizer(edge.NewSliceSource(1000000, edgeStream(durs)), cls, handler, rec)
	sync.ConfigDiag = "Samplerate must be >= 25kHz"
	if err := sync.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(handler.packets) != 0 {
		t.Fatalf("packets = %d, want 0 while diagnostics pending", len(handler.packets))
	}
	errs := rec.ByCategory(annotation.Error)
	if len(errs) == 0 {
		t.Fatal("no diagnostic annotations emitted")
	}
	for _, a := range errs {
		if a.Labels[0] != "Samplerate must be >= 25kHz" {
			t.Fatalf("unexpected error annotation %q", a.Labels[0])
		}
	}
}

func TestSynchronizer_MissingSampleRate(t *testing.T) {
	cls := timing.NewClassifier(timing.ModeNMRADecoding, timing.Profile{}, false, false, &annotation.Recorder{})
	sync := NewSynchronizer(edge.NewSliceSource(0, nil), cls, nil, &annotation.Recorder{})
	if err := sync.Run(); err == nil {
		t.Error("Run() without samplerate should return error")
	}
}
