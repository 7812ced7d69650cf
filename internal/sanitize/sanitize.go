// Package sanitize cleans external CLI output for display and builds safe
// shell-interpreted command lines.
package sanitize

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Strip removes ANSI escape sequences (CSI, OSC and friends) and any other
// non-printable control characters from s, preserving newlines, carriage
// returns and tabs. Stripping already-stripped text returns it unchanged.
func Strip(s string) string {
	s = ansi.Strip(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			// Drop remaining C0 controls and DEL.
		case r >= 0x80 && r <= 0x9f:
			// Drop C1 controls.
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ShellQuote wraps s in single quotes for a POSIX shell, replacing embedded
// single quotes with the close-quote/escaped-quote/open-quote sequence. The
// result is safe to substitute into a single shell-interpreted string.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuoteAll shell-quotes every argument and joins them with spaces, for use
// when a command must be assembled as one login-shell command line.
func QuoteAll(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = ShellQuote(a)
	}
	return strings.Join(quoted, " ")
}
