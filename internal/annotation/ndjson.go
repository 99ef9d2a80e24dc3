package annotation

import (
	"encoding/json"
	"io"
	"sync"
)

// NDJSONWriter streams annotations as newline-delimited JSON objects to the
// underlying writer.
type NDJSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	err    error
}

// NewNDJSONWriter wraps the provided writer with an annotation sink that
// writes one JSON object per line.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{writer: w}
}

type record struct {
	Start    uint64   `json:"start"`
	End      uint64   `json:"end"`
	Category string   `json:"category"`
	Labels   []string `json:"labels"`
}

// Put marshals the annotation and writes it followed by a newline. Write
// errors are sticky and reported through Err.
func (w *NDJSONWriter) Put(a Annotation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	data, err := json.Marshal(record{
		Start:    a.Start,
		End:      a.End,
		Category: a.Category.String(),
		Labels:   a.Labels,
	})
	if err != nil {
		w.err = err
		return
	}
	if _, err := w.writer.Write(data); err != nil {
		w.err = err
		return
	}
	if _, err := w.writer.Write([]byte("\n")); err != nil {
		w.err = err
	}
}

// Err returns the first write or marshal error encountered, if any
func (w *NDJSONWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
