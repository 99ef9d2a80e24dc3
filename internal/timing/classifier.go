package timing

import (
	"fmt"
	"math"

	"github.com/su68es/sigrok-DCC-Protocoll/internal/annotation"
)

// Classifier turns half-period durations into logical bit verdicts under the
// active timing profile [RCN-210 5 / S-9.1]. Every bound is widened by the
// receiver's own measurement accuracy. When Compare is enabled each bound is
// additionally checked against the experimental profile and either profile
// may accept; a sample only the experimental profile accepts is reported as
// a variance annotation but not rejected.
type Classifier struct {
	Mode               Mode
	Primary            Profile
	Experimental       Profile
	Compare            bool
	AllowStretchedZero bool
	Accuracy           float64

	sink annotation.Sink

	// current edge triple, set by the synchronizer before classification
	e1, e2, e3 uint64
}

// NewClassifier builds a classifier for the given mode. The experimental
// profile is passed by value and never shared.
func NewClassifier(mode Mode, experimental Profile, compare, allowStretchedZero bool, sink annotation.Sink) *Classifier {
	primary := ProfileFor(mode)
	if mode == ModeExperimental {
		primary = experimental
	}
	return &Classifier{
		Mode:               mode,
		Primary:            primary,
		Experimental:       experimental,
		Compare:            compare,
		AllowStretchedZero: allowStretchedZero,
		sink:               sink,
	}
}

// SetAccuracy derives the measurement tolerance from the sample rate, or
// takes the experimental override when set (>= 0) in experimental mode.
func (c *Classifier) SetAccuracy(sampleRate float64, override float64) {
	if c.Mode == ModeExperimental && override >= 0 {
		c.Accuracy = override
		return
	}
	c.Accuracy = 1 / sampleRate * 1e6
}

// SetSpan records the edge triple the current durations were measured
// between, used only to place variance annotations.
func (c *Classifier) SetSpan(e1, e2, e3 uint64) {
	c.e1, c.e2, c.e3 = e1, e2, e3
}

func (c *Classifier) variance(start, end uint64, cat annotation.Category, long, short string) {
	if c.sink == nil {
		return
	}
	c.sink.Put(annotation.Annotation{Start: start, End: end, Category: cat, Labels: []string{long, short}})
}

func us(v float64) string { return fmt.Sprintf("%.2fµs", v) }

// IsHalf1Bit reports whether a single half-period is in the 1-bit range
func (c *Classifier) IsHalf1Bit(sample float64) bool {
	minP := c.Primary.Half1Min-c.Accuracy <= sample
	maxP := sample <= c.Primary.Half1Max+c.Accuracy
	minE, maxE := minP, maxP
	if c.Compare {
		minE = c.Experimental.Half1Min-c.Accuracy <= sample
		maxE = sample <= c.Experimental.Half1Max+c.Accuracy
	}
	if (minP || minE) && (maxP || maxE) {
		if !minP && minE {
			v1, v2 := us(sample), us(c.Primary.Half1Min)
			c.variance(c.e1, c.e2, annotation.Variance1, "half 1 bit to short: actual: "+v1+", minimum: "+v2, v1+"/"+v2)
		} else if !maxP && maxE {
			v1, v2 := us(sample), us(c.Primary.Half1Max)
			c.variance(c.e1, c.e2, annotation.Variance1, "half 1 bit to long: actual: "+v1+", maximum: "+v2, v1+"/"+v2)
		}
		return true
	}
	return false
}

// Is1Bit reports whether the half-period pair forms a logical 1 bit: both
// halves in the 1-bit range and the halves no further apart than the profile
// tolerance (or twice the accuracy, whichever is larger).
func (c *Classifier) Is1Bit(part1, part2 float64) bool {
	diff := math.Abs(part1 - part2)
	min1P := c.Primary.Half1Min-c.Accuracy <= part1
	max1P := part1 <= c.Primary.Half1Max+c.Accuracy
	min2P := c.Primary.Half1Min-c.Accuracy <= part2
	max2P := part2 <= c.Primary.Half1Max+c.Accuracy
	diffP := diff <= math.Max(c.Primary.Half1Tolerance, 2*c.Accuracy)
	min1E, max1E, min2E, max2E, diffE := min1P, max1P, min2P, max2P, diffP
	if c.Compare {
		min1E = c.Experimental.Half1Min-c.Accuracy <= part1
		max1E = part1 <= c.Experimental.Half1Max+c.Accuracy
		min2E = c.Experimental.Half1Min-c.Accuracy <= part2
		max2E = part2 <= c.Experimental.Half1Max+c.Accuracy
		diffE = diff <= math.Max(c.Experimental.Half1Tolerance, 2*c.Accuracy)
	}
	if !((min1P || min1E) && (max1P || max1E) && (min2P || min2E) && (max2P || max2E) && (diffP || diffE)) {
		return false
	}
	if !diffP && diffE {
		v1, v2 := us(diff), us(c.Primary.Half1Tolerance)
		c.variance(c.e1, c.e3, annotation.Variance2, "half bits difference: actual: "+v1+", allowed: "+v2, v1+"/"+v2)
	}
	if !min1P && min1E {
		v1, v2 := us(part1), us(c.Primary.Half1Min)
		c.variance(c.e1, c.e2, annotation.Variance1, "1. half bit to short: actual: "+v1+", minimum: "+v2, v1+"/"+v2)
	} else if !max1P && max1E {
		v1, v2 := us(part1), us(c.Primary.Half1Max)
		c.variance(c.e1, c.e2, annotation.Variance1, "1. half bit to long: actual: "+v1+", maximum: "+v2, v1+"/"+v2)
	}
	if !min2P && min2E {
		v1, v2 := us(part2), us(c.Primary.Half1Min)
		c.variance(c.e2, c.e3, annotation.Variance1, "2. half bit to short: actual: "+v1+", minimum: "+v2, v1+"/"+v2)
	} else if !max2P && max2E {
		v1, v2 := us(part2), us(c.Primary.Half1Max)
		c.variance(c.e2, c.e3, annotation.Variance1, "2. half bit to long: actual: "+v1+", maximum: "+v2, v1+"/"+v2)
	}
	return true
}

// stretchedZeroAllowed reports whether the stretched upper bound applies.
// NMRA modes always permit stretched zeros; RCN and experimental modes only
// when configured.
func (c *Classifier) stretchedZeroAllowed() bool {
	switch c.Mode {
	case ModeNMRADecoding, ModeNMRACompliance:
		return true
	case ModeRCNDecoding, ModeRCNComplianceTrack, ModeRCNComplianceStation, ModeExperimental:
		return c.AllowStretchedZero
	}
	return false
}

// Is0Bit reports whether the half-period pair forms a logical 0 bit, either
// within the normal bounds or, when permitted, within the stretched bounds
// with the total capped at Half0StretchedTotalMax.
func (c *Classifier) Is0Bit(part1, part2 float64) bool {
	total := part1 + part2
	min1P := c.Primary.Half0Min-c.Accuracy <= part1
	max1P := part1 <= c.Primary.Half0Max+c.Accuracy
	maxSt1P := part1 <= c.Primary.Half0MaxStretched+c.Accuracy
	min2P := c.Primary.Half0Min-c.Accuracy <= part2
	max2P := part2 <= c.Primary.Half0Max+c.Accuracy
	maxSt2P := part2 <= c.Primary.Half0MaxStretched+c.Accuracy
	totalOK := total <= Half0StretchedTotalMax+2*c.Accuracy
	min1E, max1E, maxSt1E, min2E, max2E, maxSt2E := min1P, max1P, maxSt1P, min2P, max2P, maxSt2P
	if c.Compare {
		min1E = c.Experimental.Half0Min-c.Accuracy <= part1
		max1E = part1 <= c.Experimental.Half0Max+c.Accuracy
		maxSt1E = part1 <= c.Experimental.Half0MaxStretched+c.Accuracy
		min2E = c.Experimental.Half0Min-c.Accuracy <= part2
		max2E = part2 <= c.Experimental.Half0Max+c.Accuracy
		maxSt2E = part2 <= c.Experimental.Half0MaxStretched+c.Accuracy
	}
	stretched := c.stretchedZeroAllowed()
	normal := c.Mode != ModeInvalid && !stretched &&
		(min1P || min1E) && (max1P || max1E) && (min2P || min2E) && (max2P || max2E)
	wide := stretched &&
		(min1P || min1E) && (maxSt1P || maxSt1E) && (min2P || min2E) && (maxSt2P || maxSt2E) && totalOK
	if !normal && !wide {
		return false
	}
	if !min1P && min1E {
		v1, v2 := us(part1), us(c.Primary.Half0Min)
		c.variance(c.e1, c.e2, annotation.Variance1, "1. half bit to short: actual: "+v1+", minimum: "+v2, v1+"/"+v2)
	}
	if !min2P && min2E {
		v1, v2 := us(part2), us(c.Primary.Half0Min)
		c.variance(c.e2, c.e3, annotation.Variance1, "2. half bit to short: actual: "+v1+", minimum: "+v2, v1+"/"+v2)
	}
	if !stretched {
		if !max1P && max1E {
			v1, v2 := us(part1), us(c.Primary.Half0Max)
			c.variance(c.e1, c.e2, annotation.Variance1, "1. half bit to long: actual: "+v1+", maximum: "+v2, v1+"/"+v2)
		} else if !max2P && max2E {
			v1, v2 := us(part2), us(c.Primary.Half0Max)
			c.variance(c.e2, c.e3, annotation.Variance1, "2. half bit to long: actual: "+v1+", maximum: "+v2, v1+"/"+v2)
		}
	} else {
		if !maxSt1P && maxSt1E {
			v1, v2 := us(part1), us(c.Primary.Half0MaxStretched)
			c.variance(c.e1, c.e2, annotation.Variance1, "1. half bit to long: actual: "+v1+", maximum: "+v2, v1+"/"+v2)
		}
		if !maxSt2P && maxSt2E {
			v1, v2 := us(part2), us(c.Primary.Half0MaxStretched)
			c.variance(c.e2, c.e3, annotation.Variance1, "2. half bit to long: actual: "+v1+", maximum: "+v2, v1+"/"+v2)
		}
	}
	return true
}

// IsStretchedZeroVariance reports whether the halves of an accepted zero bit
// differ by more than the 1-bit tolerance. Informational only; asymmetric
// zeros are annotated, never rejected.
func (c *Classifier) IsStretchedZeroVariance(part1, part2 float64) bool {
	limit := math.Max(c.Primary.Half1Tolerance, 2*c.Accuracy)
	if limit == 0 && c.Compare {
		limit = math.Max(c.Experimental.Half1Tolerance, 2*c.Accuracy)
	}
	return math.Abs(part1-part2) > limit
}

// IsRailcomCutout reports whether the total duration matches the Railcom
// cutout window [RCN-217 2.4]. Only eligible directly after a stop bit and
// never in compliance modes. The upper bound absorbs up to two 1-bit halves
// merged into the cutout by the rectified capture.
func (c *Classifier) IsRailcomCutout(total float64, armed bool) bool {
	if c.Mode.IsCompliance() || !armed {
		return false
	}
	return RailcomCutoutMin-c.Accuracy <= total &&
		total <= RailcomCutoutMax+2*(c.Primary.Half1Max+c.Accuracy)
}

// IsBrokenOneBitAfterCutout reports whether a single malformed bit directly
// following a consumed cutout may be swallowed [RCN-217 2.4].
func (c *Classifier) IsBrokenOneBitAfterCutout(total float64, armed bool) bool {
	return armed && total <= c.Primary.Half1Max+c.Accuracy
}
