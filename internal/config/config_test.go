package config

import (
	"os"
	"testing"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/packet"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/timing"
)

func TestConfig_LoadFromFile(t *testing.T) {
	testConfig := `capture: capture.bin
samplerate: 4000000
timing_mode: RCN decoding
speed_steps_14: true
service_mode_112_127: true
accessory_addr_offset: 4
min_preamble_bits: 14
search_acc_addr: "12"
search_byte: "0b10110100"
log:
  file: dccdump.log
  max_size_mb: 10
`

	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(testConfig)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	opts, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if opts.Capture != "capture.bin" {
		t.Errorf("Capture = %q, want %q", opts.Capture, "capture.bin")
	}
	if opts.SampleRate != 4000000 {
		t.Errorf("SampleRate = %f, want 4000000", opts.SampleRate)
	}
	if opts.TimingMode != "RCN decoding" {
		t.Errorf("TimingMode = %q, want %q", opts.TimingMode, "RCN decoding")
	}
	if !opts.Speed14 {
		t.Error("Speed14 = false, want true")
	}
	if opts.AddrOffset != 4 {
		t.Errorf("AddrOffset = %d, want 4", opts.AddrOffset)
	}
	if opts.Log.File != "dccdump.log" {
		t.Errorf("Log.File = %q, want %q", opts.Log.File, "dccdump.log")
	}
	// Unset log fields keep their defaults
	if opts.Log.MaxBackups != 3 {
		t.Errorf("Log.MaxBackups = %d, want 3", opts.Log.MaxBackups)
	}

	s := opts.Resolve(opts.SampleRate)
	if s.Mode != timing.ModeRCNDecoding {
		t.Errorf("Mode = %v, want ModeRCNDecoding", s.Mode)
	}
	if s.Search.AccAddr != 12 {
		t.Errorf("Search.AccAddr = %d, want 12", s.Search.AccAddr)
	}
	if s.Search.ByteValue != 0b10110100 {
		t.Errorf("Search.ByteValue = %d, want 180", s.Search.ByteValue)
	}
	if s.Diagnostic != "" {
		t.Errorf("Diagnostic = %q, want empty", s.Diagnostic)
	}
}

func TestConfig_InvalidFile(t *testing.T) {
	if _, err := Load("/nonexistent/file.yaml"); err == nil {
		t.Error("Load() with nonexistent file should return error")
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	opts := Default()

	if opts.TimingMode != "NMRA decoding" {
		t.Errorf("TimingMode default = %q, want %q", opts.TimingMode, "NMRA decoding")
	}
	if opts.PreambleBits != 17 {
		t.Errorf("PreambleBits default = %d, want 17", opts.PreambleBits)
	}
	if opts.Experimental.Accuracy != -1 {
		t.Errorf("Experimental.Accuracy default = %f, want -1", opts.Experimental.Accuracy)
	}

	s := opts.Resolve(1000000)
	if s.Mode != timing.ModeNMRADecoding {
		t.Errorf("Mode = %v, want ModeNMRADecoding", s.Mode)
	}
	if s.MinPreambleBits != 10 {
		t.Errorf("MinPreambleBits = %d, want 10 outside compliance modes", s.MinPreambleBits)
	}
	if s.Search.AccAddr != packet.CriterionUnset {
		t.Errorf("Search.AccAddr = %d, want unset", s.Search.AccAddr)
	}
	if s.Diagnostic != "" {
		t.Errorf("Diagnostic = %q, want empty", s.Diagnostic)
	}
}

func TestConfig_ModeMapping(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		samplerate float64
		want       timing.Mode
		preamble   int
	}{
		{"NMRA decoding", "NMRA decoding", 1000000, timing.ModeNMRADecoding, 10},
		{"RCN decoding", "RCN decoding", 1000000, timing.ModeRCNDecoding, 10},
		{"unknown falls back to NMRA", "bogus", 1000000, timing.ModeNMRADecoding, 10},
		{"NMRA compliance", "NMRA compliance testing", 2000000, timing.ModeNMRACompliance, 17},
		{"RCN compliance track", "RCN compliance testing track", 2000000, timing.ModeRCNComplianceTrack, 17},
		{"RCN compliance station", "RCN compliance testing station", 2000000, timing.ModeRCNComplianceStation, 17},
		{"compliance below 2MHz is invalid", "NMRA compliance testing", 1000000, timing.ModeInvalid, 17},
		{"experimental", "Experimental", 1000000, timing.ModeExperimental, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Default()
			opts.TimingMode = tt.mode
			s := opts.Resolve(tt.samplerate)
			if s.Mode != tt.want {
				t.Errorf("Mode = %v, want %v", s.Mode, tt.want)
			}
			if s.MinPreambleBits != tt.preamble {
				t.Errorf("MinPreambleBits = %d, want %d", s.MinPreambleBits, tt.preamble)
			}
		})
	}
}

func TestConfig_SearchParsing(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Options)
		check func(t *testing.T, s Settings)
	}{
		{
			name:  "decimal byte",
			apply: func(o *Options) { o.SearchByte = "180" },
			check: func(t *testing.T, s Settings) {
				if s.Search.ByteValue != 180 {
					t.Errorf("ByteValue = %d, want 180", s.Search.ByteValue)
				}
			},
		},
		{
			name:  "binary byte",
			apply: func(o *Options) { o.SearchByte = "0b00000011" },
			check: func(t *testing.T, s Settings) {
				if s.Search.ByteValue != 3 {
					t.Errorf("ByteValue = %d, want 3", s.Search.ByteValue)
				}
			},
		},
		{
			name:  "hex byte",
			apply: func(o *Options) { o.SearchByte = "0xfe" },
			check: func(t *testing.T, s Settings) {
				if s.Search.ByteValue != 254 {
					t.Errorf("ByteValue = %d, want 254", s.Search.ByteValue)
				}
			},
		},
		{
			name:  "byte out of range",
			apply: func(o *Options) { o.SearchByte = "256" },
			check: func(t *testing.T, s Settings) {
				if s.Search.ByteValue != packet.CriterionUnset {
					t.Errorf("ByteValue = %d, want unset", s.Search.ByteValue)
				}
				want := "Search: invalid byte value (use 0-255 or 0b00000000-0b11111111 or 0x00-0xff)"
				if s.Diagnostic != want {
					t.Errorf("Diagnostic = %q, want %q", s.Diagnostic, want)
				}
			},
		},
		{
			name:  "decoder address zero is valid",
			apply: func(o *Options) { o.SearchDecAddr = "0" },
			check: func(t *testing.T, s Settings) {
				if s.Search.DecAddr != 0 {
					t.Errorf("DecAddr = %d, want 0", s.Search.DecAddr)
				}
			},
		},
		{
			name:  "accessory address zero is invalid",
			apply: func(o *Options) { o.SearchAccAddr = "0" },
			check: func(t *testing.T, s Settings) {
				if s.Search.AccAddr != packet.CriterionUnset {
					t.Errorf("AccAddr = %d, want unset", s.Search.AccAddr)
				}
				want := "Search: accessory address invalid (use 1-2048)"
				if s.Diagnostic != want {
					t.Errorf("Diagnostic = %q, want %q", s.Diagnostic, want)
				}
			},
		},
		{
			name:  "CV upper bound",
			apply: func(o *Options) { o.SearchCV = "16777216" },
			check: func(t *testing.T, s Settings) {
				if s.Search.CV != 16777216 {
					t.Errorf("CV = %d, want 16777216", s.Search.CV)
				}
			},
		},
		{
			name:  "command passes through unparsed",
			apply: func(o *Options) { o.SearchCommand = "Emergency" },
			check: func(t *testing.T, s Settings) {
				if s.Search.Command != "Emergency" {
					t.Errorf("Command = %q, want %q", s.Search.Command, "Emergency")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Default()
			tt.apply(&opts)
			tt.check(t, opts.Resolve(1000000))
		})
	}
}

func TestConfig_Diagnostics(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Options)
		rate  float64
		want  string
	}{
		{
			name:  "samplerate too low",
			apply: func(o *Options) {},
			rate:  20000,
			want:  "Samplerate must be >= 25kHz",
		},
		{
			name:  "compliance needs 2MHz",
			apply: func(o *Options) { o.TimingMode = "RCN compliance testing track" },
			rate:  500000,
			want:  "Samplerate too inaccurate for compliance testing: Please use at least 2Mhz",
		},
		{
			name: "compliance preamble too short",
			apply: func(o *Options) {
				o.TimingMode = "NMRA compliance testing"
				o.PreambleBits = 9
			},
			rate: 2000000,
			want: `"compliance mode: min. preamble bits" must be greater than 9`,
		},
		{
			name: "experimental half0 min above max",
			apply: func(o *Options) {
				o.TimingMode = "Experimental"
				o.Experimental.Half0Min = 120
				o.Experimental.Half0Max = 100
				o.Experimental.Half0MaxStretched = 10000
			},
			rate: 1000000,
			want: `Exp: invalid value: "0-bit half min." is greater "0-bit half max."`,
		},
		{
			name: "experimental stretched below max wins over later checks",
			apply: func(o *Options) {
				o.TimingMode = "Experimental"
				o.Experimental.Half0Max = 119
				o.Experimental.Half0MaxStretched = 100
			},
			rate: 1000000,
			want: `Exp: invalid value: "0-bit half max." is greater "0-bit streched"`,
		},
		{
			name: "experimental bounds checked when only comparing",
			apply: func(o *Options) {
				o.TimingCompare = true
				o.Experimental.Half1Min = 60
				o.Experimental.Half1Max = 50
			},
			rate: 1000000,
			want: `Exp: invalid value: "1-bit half min." is greater "1-bit half max."`,
		},
		{
			name: "later checks win",
			apply: func(o *Options) {
				o.SearchAccAddr = "0"
				o.SearchByte = "999"
			},
			rate: 1000000,
			want: "Search: invalid byte value (use 0-255 or 0b00000000-0b11111111 or 0x00-0xff)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Default()
			tt.apply(&opts)
			s := opts.Resolve(tt.rate)
			if s.Diagnostic != tt.want {
				t.Errorf("Diagnostic = %q, want %q", s.Diagnostic, tt.want)
			}
		})
	}
}
