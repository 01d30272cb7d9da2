package encoder

import (
	"fmt"
	"strings"
)

// Tag marks the role of one line in a hunk body.
type Tag byte

const (
	Context Tag = ' '
	Remove  Tag = '-'
	Add     Tag = '+'
)

const noNewlineMarker = `\ No newline at end of file`

type bodyLine struct {
	tag  Tag
	text string
	// noEOL is set on the last line of a side that has no trailing newline.
	noEOL bool
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	body               []bodyLine
}

func buildHunkHeader(oldStart, oldLines, newStart, newLines int) string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", oldStart, oldLines, newStart, newLines)
}

// countTags recomputes the header counts from the body.
func (h *hunk) countTags() {
	h.oldCount, h.newCount = 0, 0
	for _, l := range h.body {
		switch l.tag {
		case Context:
			h.oldCount++
			h.newCount++
		case Remove:
			h.oldCount++
		case Add:
			h.newCount++
		}
	}
}

func (h *hunk) writeTo(b *strings.Builder) {
	b.WriteString(buildHunkHeader(h.oldStart, h.oldCount, h.newStart, h.newCount))
	for _, l := range h.body {
		b.WriteByte(byte(l.tag))
		b.WriteString(l.text)
		b.WriteByte('\n')
		if l.noEOL {
			b.WriteString(noNewlineMarker)
			b.WriteByte('\n')
		}
	}
}

// markEOF flags the final line of each side that reaches a missing trailing newline.
// A context line is shared, so one marker serves both sides.
func (h *hunk) markEOF(oldSide, newSide bool) {
	lastOld, lastNew := -1, -1
	for i, l := range h.body {
		if l.tag != Add {
			lastOld = i
		}
		if l.tag != Remove {
			lastNew = i
		}
	}
	if oldSide && lastOld >= 0 {
		h.body[lastOld].noEOL = true
	}
	if newSide && lastNew >= 0 {
		h.body[lastNew].noEOL = true
	}
}

func appendTagged(body []bodyLine, tag Tag, lines []string) []bodyLine {
	for _, l := range lines {
		body = append(body, bodyLine{tag: tag, text: l})
	}
	return body
}
