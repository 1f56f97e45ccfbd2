package exam

import "time"

// ViolationType tags one integrity signal. The set matches the sensor
// adapters; the UI maps these tags to presentation (message, icon)
// outside the core.
type ViolationType string

const (
	// ViolationTabSwitch fires when the exam surface becomes hidden.
	ViolationTabSwitch ViolationType = "tab_switch"
	// ViolationWindowBlur fires when the surface loses foreground focus
	// while still visible.
	ViolationWindowBlur ViolationType = "window_blur"
	// ViolationFullscreenExit fires when the session drops out of
	// fullscreen after having entered it.
	ViolationFullscreenExit ViolationType = "fullscreen_exit"
	// ViolationCopyPaste fires on a copy, cut or paste action within the
	// exam surface.
	ViolationCopyPaste ViolationType = "copy_paste"
	// ViolationDevtools fires when an inspection surface is
	// heuristically detected open.
	ViolationDevtools ViolationType = "devtools"
	// ViolationNoFace fires when a camera sample finds zero faces.
	ViolationNoFace ViolationType = "no_face"
	// ViolationMultipleFaces fires when a camera sample finds more than
	// one face.
	ViolationMultipleFaces ViolationType = "multiple_faces"
	// ViolationSpeech fires when ambient audio analysis detects
	// sustained conversational speech energy.
	ViolationSpeech ViolationType = "speech_detected"
)

// ViolationTypes lists every known violation type.
var ViolationTypes = []ViolationType{
	ViolationTabSwitch,
	ViolationWindowBlur,
	ViolationFullscreenExit,
	ViolationCopyPaste,
	ViolationDevtools,
	ViolationNoFace,
	ViolationMultipleFaces,
	ViolationSpeech,
}

// Valid reports whether t is a known violation type.
func (t ViolationType) Valid() bool {
	for _, known := range ViolationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Violation is one recorded integrity violation.
type Violation struct {
	Type      ViolationType `json:"type"`
	Detail    string        `json:"detail"`
	Timestamp time.Time     `json:"timestamp"`

	// Counted reports whether this event incremented the warning
	// counter. Debounced duplicates are logged for audit with
	// Counted=false.
	Counted bool `json:"counted"`
}

// WarningState is the derived warning view surfaced to the UI.
type WarningState struct {
	Count int `json:"count"`
	Max   int `json:"max"`
}

// Remaining returns how many warnings are left before termination,
// clamped at zero.
func (w WarningState) Remaining() int {
	if r := w.Max - w.Count; r > 0 {
		return r
	}
	return 0
}

// LastWarning reports whether exactly one warning remains.
func (w WarningState) LastWarning() bool {
	return w.Remaining() == 1
}
