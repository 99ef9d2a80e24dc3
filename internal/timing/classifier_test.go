package timing

import (
	"strings"
	"testing"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
)

func newTestClassifier(mode Mode, sink annotation.Sink) *Classifier {
	c := NewClassifier(mode, Profile{}, false, false, sink)
	c.SetAccuracy(1000000, -1) // 1µs
	return c
}

func TestClassifier_IsHalf1Bit(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		sample float64
		want   bool
	}{
		{"nominal 58", ModeNMRADecoding, 58, true},
		{"lower bound minus accuracy", ModeNMRADecoding, 51, true},
		{"upper bound plus accuracy", ModeNMRADecoding, 65, true},
		{"too short", ModeNMRADecoding, 50, false},
		{"too long", ModeNMRADecoding, 66, false},
		{"compliance tighter lower bound", ModeNMRACompliance, 52, false},
		{"compliance nominal", ModeNMRACompliance, 58, true},
		{"station strictest", ModeRCNComplianceStation, 54.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(tt.mode, nil)
			if got := c.IsHalf1Bit(tt.sample); got != tt.want {
				t.Errorf("IsHalf1Bit(%v) = %v, want %v", tt.sample, got, tt.want)
			}
		})
	}
}

func TestClassifier_Is1Bit(t *testing.T) {
	tests := []struct {
		name         string
		part1, part2 float64
		want         bool
	}{
		{"symmetric nominal", 58, 58, true},
		{"within tolerance", 55, 61, true},
		{"tolerance exceeded", 52, 64, false},
		{"first half too short", 45, 58, false},
		{"second half too long", 58, 70, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(ModeNMRADecoding, nil)
			if got := c.Is1Bit(tt.part1, tt.part2); got != tt.want {
				t.Errorf("Is1Bit(%v, %v) = %v, want %v", tt.part1, tt.part2, got, tt.want)
			}
		})
	}
}

func TestClassifier_Is0Bit(t *testing.T) {
	tests := []struct {
		name           string
		mode           Mode
		allowStretched bool
		part1, part2   float64
		want           bool
	}{
		{"nominal NMRA", ModeNMRADecoding, false, 100, 100, true},
		{"too short", ModeNMRADecoding, false, 80, 100, false},
		// NMRA always permits stretched zeros up to the total cap
		{"NMRA stretched long half", ModeNMRADecoding, false, 9000, 100, true},
		{"NMRA total over cap", ModeNMRADecoding, false, 9000, 4000, false},
		// RCN rejects stretched zeros unless configured
		{"RCN rejects stretched", ModeRCNDecoding, false, 200, 100, false},
		{"RCN allows stretched when configured", ModeRCNDecoding, true, 200, 100, true},
		{"RCN nominal", ModeRCNDecoding, false, 100, 110, true},
		{"compliance track bound", ModeRCNComplianceTrack, false, 118, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.mode, Profile{}, false, tt.allowStretched, nil)
			c.SetAccuracy(1000000, -1)
			if got := c.Is0Bit(tt.part1, tt.part2); got != tt.want {
				t.Errorf("Is0Bit(%v, %v) = %v, want %v", tt.part1, tt.part2, got, tt.want)
			}
		})
	}
}

func TestClassifier_ExperimentalPrimary(t *testing.T) {
	exp := Profile{Half1Min: 10, Half1Max: 20, Half1Tolerance: 2, Half0Min: 30, Half0Max: 40, Half0MaxStretched: 40}
	c := NewClassifier(ModeExperimental, exp, false, false, nil)
	c.SetAccuracy(1000000, 0) // override: no tolerance widening

	if !c.IsHalf1Bit(15) {
		t.Error("IsHalf1Bit(15) = false, want true under experimental bounds")
	}
	if c.IsHalf1Bit(58) {
		t.Error("IsHalf1Bit(58) = true, want false under experimental bounds")
	}
	if !c.Is0Bit(35, 35) {
		t.Error("Is0Bit(35, 35) = false, want true under experimental bounds")
	}
}

func TestClassifier_SetAccuracy(t *testing.T) {
	c := NewClassifier(ModeNMRADecoding, Profile{}, false, false, nil)
	c.SetAccuracy(500000, -1)
	if c.Accuracy != 2 {
		t.Errorf("Accuracy at 500kHz = %v, want 2", c.Accuracy)
	}

	// Override only applies in experimental mode
	c.SetAccuracy(500000, 0.5)
	if c.Accuracy != 2 {
		t.Errorf("Accuracy with override outside experimental = %v, want 2", c.Accuracy)
	}

	e := NewClassifier(ModeExperimental, Profile{}, false, false, nil)
	e.SetAccuracy(500000, 0.5)
	if e.Accuracy != 0.5 {
		t.Errorf("Accuracy with experimental override = %v, want 0.5", e.Accuracy)
	}
}

func TestClassifier_CompareVariance(t *testing.T) {
	rec := &annotation.Recorder{}
	exp := Profile{Half1Min: 40, Half1Max: 80, Half1Tolerance: 20, Half0Min: 90, Half0Max: 10000, Half0MaxStretched: 10000}
	c := NewClassifier(ModeNMRADecoding, exp, true, false, rec)
	c.SetAccuracy(4000000, -1)
	c.SetSpan(100, 200, 300)

	// 48µs fails the NMRA minimum of 52 but passes the experimental minimum
	if !c.IsHalf1Bit(48) {
		t.Fatal("IsHalf1Bit(48) = false, want true with compare enabled")
	}
	v := rec.ByCategory(annotation.Variance1)
	if len(v) != 1 {
		t.Fatalf("Variance1 annotations = %d, want 1", len(v))
	}
	if v[0].Start != 100 || v[0].End != 200 {
		t.Errorf("variance span = %d-%d, want 100-200", v[0].Start, v[0].End)
	}
	if !strings.HasPrefix(v[0].Labels[0], "half 1 bit to short: actual: 48.00µs") {
		t.Errorf("variance label = %q", v[0].Labels[0])
	}

	// 70/58 passes only via the experimental tolerance, variance on the pair
	rec.Annotations = nil
	if !c.Is1Bit(62, 50) {
		t.Fatal("Is1Bit(62, 50) = false, want true with compare enabled")
	}
	if n := len(rec.ByCategory(annotation.Variance2)); n != 1 {
		t.Errorf("Variance2 annotations = %d, want 1", n)
	}
}

func TestClassifier_IsRailcomCutout(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		total float64
		armed bool
		want  bool
	}{
		{"nominal window", ModeNMRADecoding, 470, true, true},
		{"not armed", ModeNMRADecoding, 470, false, false},
		{"below window", ModeNMRADecoding, 450, true, false},
		{"merged one bits absorbed", ModeNMRADecoding, 488 + 2*64, true, true},
		{"beyond absorbed bound", ModeNMRADecoding, 488 + 2*64 + 5, true, false},
		{"never in compliance mode", ModeNMRACompliance, 470, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(tt.mode, nil)
			if got := c.IsRailcomCutout(tt.total, tt.armed); got != tt.want {
				t.Errorf("IsRailcomCutout(%v, %v) = %v, want %v", tt.total, tt.armed, got, tt.want)
			}
		})
	}
}

func TestClassifier_IsStretchedZeroVariance(t *testing.T) {
	c := newTestClassifier(ModeNMRADecoding, nil)
	if c.IsStretchedZeroVariance(100, 104) {
		t.Error("difference within tolerance reported as variance")
	}
	if !c.IsStretchedZeroVariance(100, 300) {
		t.Error("asymmetric zero halves not reported as variance")
	}
}

func TestProfileFor(t *testing.T) {
	p := ProfileFor(ModeRCNComplianceStation)
	if p.Half1Min != 56 || p.Half1Max != 60 || p.Half0Max != 114 {
		t.Errorf("station profile = %+v", p)
	}
	if !p.Valid() {
		t.Error("station profile reported invalid")
	}
	if ProfileFor(Mode(99)) != ProfileFor(ModeInvalid) {
		t.Error("out of range mode should map to the invalid profile")
	}
}
