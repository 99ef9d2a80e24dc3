package database

import (
	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
)

// StoreSink buffers annotations and flushes them to the repository in
// batches. Decoding is single-goroutine, so no locking is needed; the
// repository does its own transaction handling.
type StoreSink struct {
	repo    *RecordRepository
	run     string
	pending []Record
	limit   int
	err     error
}

// NewStoreSink builds a sink writing into repo, flushing every limit
// annotations (a non-positive limit selects a reasonable default). The run
// name tags every record so several captures can share one database.
func NewStoreSink(repo *RecordRepository, run string, limit int) *StoreSink {
	if limit <= 0 {
		limit = 1000
	}
	return &StoreSink{repo: repo, run: run, limit: limit}
}

// Put implements annotation.Sink. Storage errors are sticky and surfaced by
// Flush; the decode itself never stops for them.
func (s *StoreSink) Put(a annotation.Annotation) {
	if s.err != nil {
		return
	}
	var label string
	if len(a.Labels) > 0 {
		label = a.Labels[0]
	}
	s.pending = append(s.pending, Record{
		Run:         s.run,
		StartSample: a.Start,
		EndSample:   a.End,
		Category:    a.Category.String(),
		Label:       label,
		AltLabels:   joinAltLabels(a.Labels),
	})
	if len(s.pending) >= s.limit {
		s.flush()
	}
}

func (s *StoreSink) flush() {
	if len(s.pending) == 0 {
		return
	}
	if err := s.repo.InsertBatch(s.pending); err != nil {
		s.err = err
	}
	s.pending = s.pending[:0]
}

// Flush writes any buffered annotations and reports the first storage error
func (s *StoreSink) Flush() error {
	s.flush()
	return s.err
}
