package edit

import "strings"

// Transform rewrites one kind of literal escape sequence.
type Transform func(string) string

// DefaultTransforms are the transforms Unescape applies when none are given.
var DefaultTransforms = []Transform{UnescapeNewlines, UnescapeTabs, UnescapeQuotes}

// UnescapeNewlines turns a literal backslash-n into a newline.
func UnescapeNewlines(s string) string { return replaceEscape(s, 'n', "\n") }

// UnescapeTabs turns a literal backslash-t into a tab.
func UnescapeTabs(s string) string { return replaceEscape(s, 't', "\t") }

// UnescapeQuotes turns backslash-quote (double or single) into the bare quote.
func UnescapeQuotes(s string) string {
	return replaceEscape(replaceEscape(s, '"', `"`), '\'', `'`)
}

// Unescape runs transforms over s in order (DefaultTransforms when none are given).
func Unescape(s string, transforms ...Transform) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	if len(transforms) == 0 {
		transforms = DefaultTransforms
	}
	for _, t := range transforms {
		s = t(s)
	}
	return s
}

// replaceEscape replaces backslash+esc with repl. An escaped backslash is copied through
// untouched, so `\\n` stays as written.
func replaceEscape(s string, esc byte, repl string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case '\\':
			b.WriteString(`\\`)
			i++
		case esc:
			b.WriteString(repl)
			i++
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
