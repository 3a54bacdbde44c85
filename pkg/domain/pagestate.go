package domain

// PageState names a semantic state of the page under test. Any name outside
// the built-in set is a custom state.
type PageState string

const (
	StateLoggedIn  PageState = "logged_in"
	StateLoggedOut PageState = "logged_out"
	StateLoading   PageState = "loading"
	StateError     PageState = "error"
	StateEmpty     PageState = "empty"
	StateCustom    PageState = "custom"
)

// BuiltinPageStates lists the states with built-in detection rules.
var BuiltinPageStates = []PageState{StateLoggedIn, StateLoggedOut, StateLoading, StateError, StateEmpty}

// IsBuiltin reports whether s has built-in detection rules.
func (s PageState) IsBuiltin() bool {
	for _, b := range BuiltinPageStates {
		if s == b {
			return true
		}
	}
	return false
}

// DetectionTier identifies which probe tier produced a detection.
type DetectionTier string

const (
	TierNone DetectionTier = ""
	TierDOM  DetectionTier = "dom"
	TierText DetectionTier = "text"
	TierAI   DetectionTier = "ai"
)

// Detection is the detailed outcome of a page-state probe.
type Detection struct {
	State       PageState     `json:"state"`
	Detected    bool          `json:"detected"`
	Confidence  float64       `json:"confidence"`
	Description string        `json:"description,omitempty"`
	Tier        DetectionTier `json:"tier,omitempty"`
}
