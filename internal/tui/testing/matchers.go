package testing

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansi.Strip(s)
}

// ContainsInOrder reports whether every part appears in view, each after the
// previous one. Styling is ignored.
func ContainsInOrder(view string, parts ...string) bool {
	rest := StripANSI(view)
	for _, p := range parts {
		i := strings.Index(rest, p)
		if i < 0 {
			return false
		}
		rest = rest[i+len(p):]
	}
	return true
}
