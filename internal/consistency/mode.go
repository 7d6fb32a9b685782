package consistency

import "fmt"

// Mode is the transactional guarantee every stock operation runs under.
// It is resolved once per process.
type Mode string

const (
	// Strict wraps each operation in one multi-document transaction
	Strict Mode = "strict"
	// BestEffort issues writes sequentially and reports partial application
	BestEffort Mode = "best-effort"
)

// Modes lists every mode, e.g. for resetting a gauge
var Modes = []Mode{Strict, BestEffort}

func (m Mode) String() string { return string(m) }

// Strings returns the mode names
func Strings() []string {
	out := make([]string, len(Modes))
	for i, m := range Modes {
		out[i] = string(m)
	}
	return out
}

// Setting is how the operator asks for a mode
type Setting string

const (
	SettingAuto       Setting = "auto"
	SettingStrict     Setting = "strict"
	SettingBestEffort Setting = "best-effort"
)

// ParseSetting validates a configured setting
func ParseSetting(s string) (Setting, error) {
	switch Setting(s) {
	case SettingAuto, SettingStrict, SettingBestEffort:
		return Setting(s), nil
	case "":
		return SettingAuto, nil
	}
	return "", fmt.Errorf("unknown consistency mode setting %q", s)
}
