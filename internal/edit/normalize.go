package edit

import "strings"

// replacementChar is U+FFFD, left behind by lossy decoding upstream.
const replacementChar = "\uFFFD"

var lineEndingReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeLineEndings converts CRLF and lone CR to LF.
func NormalizeLineEndings(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	return lineEndingReplacer.Replace(s)
}

// NormalizeText converts CRLF and lone CR to LF and strips U+FFFD.
func NormalizeText(s string) string {
	s = NormalizeLineEndings(s)
	if strings.Contains(s, replacementChar) {
		s = strings.ReplaceAll(s, replacementChar, "")
	}
	return s
}

// SplitLines splits normalized text into lines. A single trailing LF terminates the last line
// rather than starting a new one, so "" has zero lines and "\n" has one empty line.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// normalizeLineForMatching trims a line and collapses internal whitespace runs to one space.
func normalizeLineForMatching(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// SameLines reports whether claimed and actual are equal after whitespace normalization.
// Trailing blank lines on either side are ignored.
func SameLines(claimed, actual []string) bool {
	claimed = trimTrailingBlank(claimed)
	actual = trimTrailingBlank(actual)
	if len(claimed) != len(actual) {
		return false
	}
	for i := range claimed {
		if normalizeLineForMatching(claimed[i]) != normalizeLineForMatching(actual[i]) {
			return false
		}
	}
	return true
}

func trimTrailingBlank(lines []string) []string {
	n := len(lines)
	for n > 0 && strings.TrimSpace(lines[n-1]) == "" {
		n--
	}
	return lines[:n]
}
