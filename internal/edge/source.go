// Package edge supplies the decoder with logic-level edge timestamps. The
// pipeline pulls one edge at a time and never looks further ahead than the
// short-pulse filter requires.
package edge

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Source yields the sample indices of successive signal edges on the single
// logical channel. Next returns false when the capture is exhausted; sample
// indices are strictly increasing.
type Source interface {
	SampleRate() float64
	Next() (uint64, bool)
}

// SliceSource replays a fixed list of edge positions, mainly for tests and
// synthetic captures.
type SliceSource struct {
	rate  float64
	edges []uint64
	pos   int
}

// NewSliceSource builds a source over the given edge positions
func NewSliceSource(rate float64, edges []uint64) *SliceSource {
	return &SliceSource{rate: rate, edges: edges}
}

func (s *SliceSource) SampleRate() float64 { return s.rate }

func (s *SliceSource) Next() (uint64, bool) {
	if s.pos >= len(s.edges) {
		return 0, false
	}
	v := s.edges[s.pos]
	s.pos++
	return v, true
}

// CaptureSource derives edges from a raw logic capture: one byte per sample,
// zero = low, nonzero = high. An edge is reported at the index of the first
// sample after a level change.
type CaptureSource struct {
	rate   float64
	reader *bufio.Reader
	closer io.Closer
	index  uint64
	last   byte
	primed bool
	done   bool
}

// OpenCapture opens a raw capture file. The sample rate must be supplied by
// the caller; it is metadata the capture format does not carry.
func OpenCapture(path string, rate float64) (*CaptureSource, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("cannot decode with samplerate 0 or less")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %v", path, err)
	}
	return &CaptureSource{rate: rate, reader: bufio.NewReaderSize(f, 1<<16), closer: f}, nil
}

// NewCaptureSource reads a raw capture from r, for callers that already hold
// the data in memory.
func NewCaptureSource(r io.Reader, rate float64) *CaptureSource {
	return &CaptureSource{rate: rate, reader: bufio.NewReader(r)}
}

func (s *CaptureSource) SampleRate() float64 { return s.rate }

func (s *CaptureSource) Next() (uint64, bool) {
	if s.done {
		return 0, false
	}
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			s.done = true
			if s.closer != nil {
				s.closer.Close()
			}
			return 0, false
		}
		level := b != 0
		if !s.primed {
			s.primed = true
			s.last = b
			s.index++
			continue
		}
		changed := level != (s.last != 0)
		s.last = b
		idx := s.index
		s.index++
		if changed {
			return idx, true
		}
	}
}

// Close releases the underlying file, if any
func (s *CaptureSource) Close() error {
	s.done = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
