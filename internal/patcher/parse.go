package patcher

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sokinpui/patchgen/internal/edit"
)

// ErrMalformed is returned when a hunk body does not match its header counts.
var ErrMalformed = errors.New("malformed diff")

const devNull = "/dev/null"

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// filePathRegex extracts the file path from a '+++ b/...' line.
var filePathRegex = regexp.MustCompile(`(?m)^\+\+\+ b/(?P<path>.*?)(\t|$)`)

// Hunk is one @@ section. Lines keep their one-character prefix; marker lines start with '\'.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Lines              []string
}

// FileDiff is the part of a diff that concerns one file.
type FileDiff struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// IsCreate reports whether the block creates a file.
func (f FileDiff) IsCreate() bool { return f.OldPath == devNull }

// IsDelete reports whether the block deletes a file.
func (f FileDiff) IsDelete() bool { return f.NewPath == devNull }

// Path is the file the block applies to.
func (f FileDiff) Path() string {
	if f.IsDelete() {
		return f.OldPath
	}
	return f.NewPath
}

// ExtractPathFromDiff finds the first '+++ b/' path in a raw diff string.
func ExtractPathFromDiff(content string) string {
	match := filePathRegex.FindStringSubmatch(content)
	if len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// Parse splits diff text into per-file blocks. Unlike the lenient decoder, hunk bodies must
// agree with their header counts.
func Parse(diff string) ([]FileDiff, error) {
	lines := edit.SplitLines(edit.NormalizeText(diff))

	var files []FileDiff
	var cur *FileDiff
	var h *Hunk
	oldLeft, newLeft := 0, 0

	closeHunk := func() error {
		if h == nil {
			return nil
		}
		if oldLeft != 0 || newLeft != 0 {
			return fmt.Errorf("%w: hunk @@ -%d,%d +%d,%d @@ is short by %d old / %d new lines",
				ErrMalformed, h.OldStart, h.OldCount, h.NewStart, h.NewCount, oldLeft, newLeft)
		}
		cur.Hunks = append(cur.Hunks, *h)
		h = nil
		return nil
	}

	for i, line := range lines {
		inBody := h != nil && (oldLeft > 0 || newLeft > 0)
		if inBody {
			if line == "" {
				line = " "
			}
			switch line[0] {
			case ' ':
				oldLeft--
				newLeft--
			case '-':
				oldLeft--
			case '+':
				newLeft--
			case '\\':
			default:
				return nil, fmt.Errorf("%w: line %d: unexpected %q inside hunk", ErrMalformed, i+1, line)
			}
			if oldLeft < 0 || newLeft < 0 {
				return nil, fmt.Errorf("%w: line %d: hunk body longer than its header", ErrMalformed, i+1)
			}
			h.Lines = append(h.Lines, line)
			continue
		}

		switch {
		case strings.HasPrefix(line, `\`) && h != nil:
			h.Lines = append(h.Lines, line)
		case strings.HasPrefix(line, "--- "):
			if err := closeHunk(); err != nil {
				return nil, err
			}
			files = append(files, FileDiff{OldPath: stripPrefix(line[4:], "a/")})
			cur = &files[len(files)-1]
		case strings.HasPrefix(line, "+++ ") && cur != nil:
			cur.NewPath = stripPrefix(line[4:], "b/")
		case strings.HasPrefix(line, "@@"):
			if cur == nil {
				return nil, fmt.Errorf("%w: line %d: hunk before file header", ErrMalformed, i+1)
			}
			if err := closeHunk(); err != nil {
				return nil, err
			}
			parsed, err := parseHunkHeader(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			h = &parsed
			oldLeft, newLeft = h.OldCount, h.NewCount
		}
	}
	if err := closeHunk(); err != nil {
		return nil, err
	}
	return files, nil
}

func parseHunkHeader(line string) (Hunk, error) {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, fmt.Errorf("%w: bad hunk header %q", ErrMalformed, line)
	}
	num := func(s string) int {
		if s == "" {
			return 1
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	return Hunk{
		OldStart: num(m[1]),
		OldCount: num(m[2]),
		NewStart: num(m[3]),
		NewCount: num(m[4]),
	}, nil
}

// stripPrefix removes a trailing tab-separated timestamp and the a/ or b/ prefix.
func stripPrefix(p, prefix string) string {
	if i := strings.IndexByte(p, '\t'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if p == devNull {
		return p
	}
	return strings.TrimPrefix(p, prefix)
}
