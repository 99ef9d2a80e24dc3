package timing

// Timing bounds shared by all modes, in microseconds.
//
// The Railcom cutout is 0 volt between a positive and negative voltage.
// Before the signal analyzer the voltage is rectified and therefore one edge
// is lost; the timing window still holds.
const (
	RailcomCutoutMin = 454
	RailcomCutoutMax = 488

	// Half0StretchedTotalMax caps the sum of both halves of a stretched
	// zero bit [RCN-210 5].
	Half0StretchedTotalMax = 12000

	// InterferingPulseMax is the widest pulse the optional short-pulse
	// filter will swallow.
	InterferingPulseMax = 4
)

// Mode selects the timing profile and the rule set derived from it
type Mode int

const (
	ModeInvalid Mode = iota
	ModeNMRADecoding
	ModeRCNDecoding
	ModeNMRACompliance
	ModeRCNComplianceTrack
	ModeRCNComplianceStation
	ModeExperimental
)

var modeNames = []string{
	"invalid", "NMRA decoding", "RCN decoding", "NMRA compliance testing",
	"RCN compliance testing track", "RCN compliance testing station",
	"Experimental",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "invalid"
	}
	return modeNames[m]
}

// IsCompliance reports whether the mode is one of the compliance-testing
// modes, which use stricter bounds and a user-set preamble length.
func (m Mode) IsCompliance() bool {
	return m == ModeNMRACompliance || m == ModeRCNComplianceTrack || m == ModeRCNComplianceStation
}

// Profile holds the six timing bounds of one mode in microseconds
type Profile struct {
	Half1Min          float64
	Half1Max          float64
	Half1Tolerance    float64
	Half0Min          float64
	Half0Max          float64
	Half0MaxStretched float64
}

// profiles is indexed by Mode. The experimental entry is a placeholder; the
// user-supplied profile is passed into the classifier by value.
var profiles = [...]Profile{
	ModeInvalid:              {0, 0, 0, 0, 0, 0},
	ModeNMRADecoding:         {52, 64, 6, 90, 10000, 10000},
	ModeRCNDecoding:          {52, 64, 6, 90, 119, 10000},
	ModeNMRACompliance:       {55, 61, 3, 95, 9900, 9900},
	ModeRCNComplianceTrack:   {55, 61, 3, 95, 116, 9900},
	ModeRCNComplianceStation: {56, 60, 3, 97, 114, 9898},
	ModeExperimental:         {0, 0, 0, 0, 0, 0},
}

// ProfileFor returns the fixed timing profile of the given mode
func ProfileFor(m Mode) Profile {
	if m < 0 || int(m) >= len(profiles) {
		return profiles[ModeInvalid]
	}
	return profiles[m]
}

// Valid reports whether the bounds are ordered; violations are configuration
// errors, not runtime errors.
func (p Profile) Valid() bool {
	return p.Half1Min >= 0 && p.Half1Max >= p.Half1Min && p.Half1Tolerance >= 0 &&
		p.Half0Min >= 0 && p.Half0Max >= p.Half0Min && p.Half0MaxStretched >= p.Half0Min &&
		p.Half0MaxStretched >= p.Half0Max
}
