package edit

// Locate finds where block occurs in lines and returns the 0-based index of its first line,
// or -1. Exact matches are preferred over whitespace-insensitive ones, and among equal
// matches the one closest to hint wins.
func Locate(lines, block []string, hint int) int {
	if len(block) == 0 || len(block) > len(lines) {
		return -1
	}
	if at := nearestMatch(lines, block, hint, func(a, b string) bool { return a == b }); at >= 0 {
		return at
	}
	return nearestMatch(lines, block, hint, func(a, b string) bool {
		return normalizeLineForMatching(a) == normalizeLineForMatching(b)
	})
}

// nearestMatch scans outward from hint, alternating below and above.
func nearestMatch(lines, block []string, hint int, eq func(a, b string) bool) int {
	last := len(lines) - len(block)
	if hint < 0 {
		hint = 0
	}
	if hint > last {
		hint = last
	}
	matchesAt := func(i int) bool {
		for j := range block {
			if !eq(lines[i+j], block[j]) {
				return false
			}
		}
		return true
	}
	for d := 0; hint-d >= 0 || hint+d <= last; d++ {
		if i := hint + d; i <= last && matchesAt(i) {
			return i
		}
		if i := hint - d; d > 0 && i >= 0 && matchesAt(i) {
			return i
		}
	}
	return -1
}
