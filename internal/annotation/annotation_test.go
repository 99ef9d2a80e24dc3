package annotation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
)

func TestCategory_String(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{Bits, "bits"},
		{Frame, "frame"},
		{DataCV, "data-cv"},
		{Command, "command"},
		{SearchCommand, "search-command"},
		{Category(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.cat.String(); got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestNDJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)
	w.Put(Annotation{Start: 10, End: 20, Category: Bits, Labels: []string{"1"}})
	w.Put(Annotation{Start: 20, End: 400, Category: Command, Labels: []string{"Idle", "I"}})

	if err := w.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var lines []record
	for scanner.Scan() {
		var r record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, r)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].Category != "bits" || lines[0].Start != 10 || lines[0].End != 20 {
		t.Errorf("first line = %+v", lines[0])
	}
	if lines[1].Category != "command" || len(lines[1].Labels) != 2 || lines[1].Labels[0] != "Idle" {
		t.Errorf("second line = %+v", lines[1])
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, bytes.ErrTooLarge
}

func TestNDJSONWriter_StickyError(t *testing.T) {
	w := NewNDJSONWriter(failingWriter{})
	w.Put(Annotation{Category: Bits, Labels: []string{"1"}})
	if w.Err() == nil {
		t.Fatal("expected write error")
	}
	// further writes are dropped, the first error stays
	w.Put(Annotation{Category: Bits, Labels: []string{"0"}})
	if w.Err() != bytes.ErrTooLarge {
		t.Errorf("Err() = %v, want %v", w.Err(), bytes.ErrTooLarge)
	}
}

func TestMultiSink(t *testing.T) {
	a := &Recorder{}
	b := &Recorder{}
	m := MultiSink{a, b}
	m.Put(Annotation{Start: 1, End: 2, Category: Frame, Labels: []string{"Start Packet"}})

	if len(a.Annotations) != 1 || len(b.Annotations) != 1 {
		t.Fatalf("fan out failed: %d/%d", len(a.Annotations), len(b.Annotations))
	}
}

func TestRecorder_ByCategory(t *testing.T) {
	r := &Recorder{}
	r.Put(Annotation{Category: Bits, Labels: []string{"1"}})
	r.Put(Annotation{Category: Frame, Labels: []string{"Start Packet"}})
	r.Put(Annotation{Category: Bits, Labels: []string{"0"}})

	if got := len(r.ByCategory(Bits)); got != 2 {
		t.Errorf("ByCategory(Bits) = %d entries, want 2", got)
	}
	if got := len(r.ByCategory(Error)); got != 0 {
		t.Errorf("ByCategory(Error) = %d entries, want 0", got)
	}
}
