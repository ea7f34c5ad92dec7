package runner

import "strings"

// Style tags an output chunk for display.
type Style int

const (
	// StyleNone is plain output.
	StyleNone Style = iota
	// StyleError marks error output.
	StyleError
	// StyleWarning marks warnings and status notices.
	StyleWarning
)

// String returns the style name.
func (s Style) String() string {
	switch s {
	case StyleNone:
		return "none"
	case StyleError:
		return "error"
	case StyleWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Chunk is a piece of text pushed to the display.
type Chunk struct {
	Text  string
	Style Style
}

// Classify returns the display style for a line of output.
//
// Classification is cosmetic only. Remediation matching is done
// separately on the raw line.
func Classify(line string) Style {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error:"),
		strings.Contains(lower, "exception"),
		strings.HasPrefix(strings.TrimSpace(lower), "traceback"):
		return StyleError
	case strings.Contains(lower, "warning:"):
		return StyleWarning
	default:
		return StyleNone
	}
}
