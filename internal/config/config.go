// Package config loads and validates the decoder settings. Invalid values
// never abort a run: following the behavior of the signal pipeline, a bad
// option turns into a diagnostic string that is annotated over the capture
// while decoding is suspended. Only a missing sample rate is fatal.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/packet"
	"github.com/su68es/sigrok-DCC-Protocoll/internal/timing"
)

// ExperimentalTiming holds the user supplied profile bounds in µs
type ExperimentalTiming struct {
	Half1Min          int     `yaml:"half1_min"`
	Half1Max          int     `yaml:"half1_max"`
	Half1Tolerance    int     `yaml:"half1_tolerance"`
	Half0Min          int     `yaml:"half0_min"`
	Half0Max          int     `yaml:"half0_max"`
	Half0MaxStretched int     `yaml:"half0_max_stretched"`
	Accuracy          float64 `yaml:"accuracy"`
}

// LogOptions configures the rotating logfile
type LogOptions struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Options mirrors the configuration file. Search values are kept as strings
// so that empty means unset and malformed input can be diagnosed instead of
// failing the YAML decode.
type Options struct {
	Capture    string  `yaml:"capture"`
	SampleRate float64 `yaml:"samplerate"`

	TimingMode         string `yaml:"timing_mode"`
	Speed14            bool   `yaml:"speed_steps_14"`
	ServiceMode        bool   `yaml:"service_mode_112_127"`
	AddrOffset         int    `yaml:"accessory_addr_offset"`
	AllowStretchedZero bool   `yaml:"allow_stretched_zero"`
	PreambleBits       int    `yaml:"min_preamble_bits"`
	IgnoreShortPulse   bool   `yaml:"ignore_short_pulse"`
	TimingCompare      bool   `yaml:"timing_compare"`

	SearchAccAddr string `yaml:"search_acc_addr"`
	SearchDecAddr string `yaml:"search_dec_addr"`
	SearchCV      string `yaml:"search_cv"`
	SearchByte    string `yaml:"search_byte"`
	SearchCommand string `yaml:"search_command"`

	Experimental ExperimentalTiming `yaml:"experimental"`

	NDJSON   string     `yaml:"ndjson"`
	Database string     `yaml:"database"`
	Log      LogOptions `yaml:"log"`
}

// Default returns the options as they stand before a file is applied
func Default() Options {
	return Options{
		TimingMode:   "NMRA decoding",
		PreambleBits: 17,
		Experimental: ExperimentalTiming{
			Half1Min:          52,
			Half1Max:          64,
			Half1Tolerance:    6,
			Half0Min:          90,
			Half0Max:          119,
			Half0MaxStretched: 10000,
			Accuracy:          -1,
		},
		Log: LogOptions{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load reads a YAML options file over the defaults
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read config %s: %v", path, err)
	}
	return LoadFromString(string(data))
}

// LoadFromString parses YAML options over the defaults
func LoadFromString(data string) (Options, error) {
	opts := Default()
	if err := yaml.Unmarshal([]byte(data), &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse config: %v", err)
	}
	return opts, nil
}

// Settings is the validated, pipeline-ready form of the options
type Settings struct {
	Mode               timing.Mode
	Experimental       timing.Profile
	Compare            bool
	AllowStretchedZero bool
	MinPreambleBits    int
	IgnoreShortPulse   bool
	AccuracyOverride   float64
	Speed14            bool
	ServiceMode        bool
	AddrOffset         int
	Search             packet.Criteria

	// Diagnostic is empty when the configuration is usable. Otherwise it
	// holds the last detected problem; the pipeline annotates it over the
	// capture instead of decoding.
	Diagnostic string
}

var modeByName = map[string]timing.Mode{
	"NMRA decoding":                  timing.ModeNMRADecoding,
	"RCN decoding":                   timing.ModeRCNDecoding,
	"NMRA compliance testing":        timing.ModeNMRACompliance,
	"RCN compliance testing track":   timing.ModeRCNComplianceTrack,
	"RCN compliance testing station": timing.ModeRCNComplianceStation,
	"Experimental":                   timing.ModeExperimental,
}

// searchInt parses a decimal search criterion, returning unset when the
// string is empty or malformed or the value is out of range.
func searchInt(s string, min, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < min || v > max {
		return packet.CriterionUnset
	}
	return v
}

// searchByte accepts decimal, 0b and 0x notations
func searchByte(s string) int {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		v, err = strconv.ParseInt(s, 0, 32)
	}
	if err != nil || v < 0 || v > 255 {
		return packet.CriterionUnset
	}
	return int(v)
}

// Resolve validates the options against the sample rate and builds the
// runtime settings. Problems land in Settings.Diagnostic, last one wins, so
// the reported text always names a single actionable fix.
func (o Options) Resolve(sampleRate float64) Settings {
	s := Settings{
		Compare:            o.TimingCompare,
		AllowStretchedZero: o.AllowStretchedZero,
		IgnoreShortPulse:   o.IgnoreShortPulse,
		AccuracyOverride:   o.Experimental.Accuracy,
		Speed14:            o.Speed14,
		ServiceMode:        o.ServiceMode,
		AddrOffset:         o.AddrOffset,
		MinPreambleBits:    10,
	}

	mode, known := modeByName[o.TimingMode]
	if !known {
		mode = timing.ModeNMRADecoding
	}
	if mode.IsCompliance() {
		if sampleRate < 2000000 {
			mode = timing.ModeInvalid
		}
		s.MinPreambleBits = o.PreambleBits
	}
	s.Mode = mode

	e := o.Experimental
	s.Experimental = timing.Profile{
		Half1Min:          float64(e.Half1Min),
		Half1Max:          float64(e.Half1Max),
		Half1Tolerance:    float64(e.Half1Tolerance),
		Half0Min:          float64(e.Half0Min),
		Half0Max:          float64(e.Half0Max),
		Half0MaxStretched: float64(e.Half0MaxStretched),
	}

	s.Search = packet.Criteria{
		AccAddr:   searchInt(o.SearchAccAddr, 1, 2048),
		DecAddr:   searchInt(o.SearchDecAddr, 0, 10239),
		CV:        searchInt(o.SearchCV, 1, 16777216),
		ByteValue: searchByte(o.SearchByte),
		Command:   o.SearchCommand,
	}

	if sampleRate < 25000 {
		s.Diagnostic = "Samplerate must be >= 25kHz"
	}
	if mode == timing.ModeInvalid {
		s.Diagnostic = "Samplerate too inaccurate for compliance testing: Please use at least 2Mhz"
	}
	if o.SearchAccAddr != "" && s.Search.AccAddr == packet.CriterionUnset {
		s.Diagnostic = "Search: accessory address invalid (use 1-2048)"
	}
	if o.SearchDecAddr != "" && s.Search.DecAddr == packet.CriterionUnset {
		s.Diagnostic = "Search: decoder address invalid (use 0-10239)"
	}
	if o.SearchCV != "" && s.Search.CV == packet.CriterionUnset {
		s.Diagnostic = "Search: CV address invalid (use 1-16777216)"
	}
	if o.SearchByte != "" && s.Search.ByteValue == packet.CriterionUnset {
		s.Diagnostic = "Search: invalid byte value (use 0-255 or 0b00000000-0b11111111 or 0x00-0xff)"
	}
	if mode.IsCompliance() && o.PreambleBits < 10 {
		s.Diagnostic = `"compliance mode: min. preamble bits" must be greater than 9`
	}
	if mode == timing.ModeExperimental || o.TimingCompare {
		switch {
		case e.Half0Max > e.Half0MaxStretched:
			s.Diagnostic = `Exp: invalid value: "0-bit half max." is greater "0-bit streched"`
		case e.Half0Min > e.Half0MaxStretched:
			s.Diagnostic = `Exp: invalid value: "0-bit half min." is greater "0-bit streched"`
		case e.Half0MaxStretched < 0:
			s.Diagnostic = `Exp: invalid value: "0-bit streched" must be greater than 0`
		case e.Half0Min > e.Half0Max:
			s.Diagnostic = `Exp: invalid value: "0-bit half min." is greater "0-bit half max."`
		case e.Half0Max < 0:
			s.Diagnostic = `Exp: invalid value: "0-bit half max." must be greater than 0`
		case e.Half0Min < 0:
			s.Diagnostic = `Exp: invalid value: "0-bit half min." must be greater than 0`
		case e.Half1Tolerance < 0:
			s.Diagnostic = `Exp: invalid value: "1-bit tolerance" must be greater than 0`
		case e.Half1Min > e.Half1Max:
			s.Diagnostic = `Exp: invalid value: "1-bit half min." is greater "1-bit half max."`
		case e.Half1Max < 0:
			s.Diagnostic = `Exp: invalid value: "1-bit half max." must be greater than 0`
		case e.Half1Min < 0:
			s.Diagnostic = `Exp: invalid value: "1-bit half min." must be greater than 0`
		}
	}
	return s
}
