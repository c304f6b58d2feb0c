package domain

import "fmt"

// Mode selects how a translation run treats events it cannot handle.
type Mode int

const (
	// ModeStrict aborts the whole run on the first unsupported event; no
	// partial output is written.
	ModeStrict Mode = iota

	// ModeLenient skips unsupported events, reports them as warnings, and
	// translates the rest.
	ModeLenient
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "lenient"
}

// ParseMode maps a mode name to its Mode value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "strict":
		return ModeStrict, nil
	case "lenient":
		return ModeLenient, nil
	default:
		return ModeStrict, fmt.Errorf("unknown mode %q (want strict or lenient)", s)
	}
}
