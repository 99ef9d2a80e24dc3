package annotation

// Category identifies the output row an annotation belongs to
type Category int

const (
	Bits Category = iota
	BitsOther
	Frame
	FrameOther
	Data
	DataAccessory
	DataDecoder
	DataCV
	Command
	Info
	Error
	Variance1
	Variance2
	SearchAccessory
	SearchDecoder
	SearchCV
	SearchByte
	SearchCommand
)

var categoryNames = []string{
	"bits", "bits-other", "frame", "frame-other", "data",
	"data-accessory", "data-decoder", "data-cv", "command", "info",
	"error", "variance1", "variance2", "search-accessory",
	"search-decoder", "search-cv", "search-byte", "search-command",
}

// String returns the row identifier for the category
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// Annotation covers a span of the sample timeline. Labels are ordered from
// most to least verbose; renderers pick the longest one that fits.
type Annotation struct {
	Start    uint64   `json:"start"`
	End      uint64   `json:"end"`
	Category Category `json:"category"`
	Labels   []string `json:"labels"`
}

// Sink consumes annotations in emission order
type Sink interface {
	Put(a Annotation)
}

// MultiSink fans annotations out to several sinks
type MultiSink []Sink

func (m MultiSink) Put(a Annotation) {
	for _, s := range m {
		s.Put(a)
	}
}

// Recorder buffers annotations in memory, mainly for tests
type Recorder struct {
	Annotations []Annotation
}

func (r *Recorder) Put(a Annotation) {
	r.Annotations = append(r.Annotations, a)
}

// ByCategory returns the recorded annotations matching the category
func (r *Recorder) ByCategory(c Category) []Annotation {
	var out []Annotation
	for _, a := range r.Annotations {
		if a.Category == c {
			out = append(out, a)
		}
	}
	return out
}
