package edit

import (
	"strings"

	"github.com/sokinpui/patchgen/model"
)

// Buffer is the working copy of one file while its edits are incorporated in order.
//
// Line numbers in a LineEdit refer to the original file. The buffer tracks the cumulative
// offset (lines inserted minus lines removed so far) to find where an original line lives now.
type Buffer struct {
	lines []string
	// origins holds, per line, the original index of a line no splice has replaced, or -1.
	origins []int
	noEOL   bool
	offset  int
}

// NewBuffer loads content into a Buffer. Content is normalized first.
func NewBuffer(content string) *Buffer {
	content = NormalizeText(content)
	lines := SplitLines(content)
	origins := make([]int, len(lines))
	for i := range origins {
		origins[i] = i
	}
	return &Buffer{
		lines:   lines,
		origins: origins,
		noEOL:   content != "" && !strings.HasSuffix(content, "\n"),
	}
}

// Lines returns the current lines. The slice must not be modified.
func (b *Buffer) Lines() []string { return b.lines }

// Len returns the current number of lines.
func (b *Buffer) Len() int { return len(b.lines) }

// Offset returns the net number of lines added by splices so far.
func (b *Buffer) Offset() int { return b.offset }

// Origin returns the 0-based line of the loaded content that line i still is, or -1 when line i
// was written by a splice.
func (b *Buffer) Origin(i int) int { return b.origins[i] }

// NoEOL reports whether the last line lacks a terminating newline.
func (b *Buffer) NoEOL() bool { return b.noEOL }

// Span locates e in the buffer: pos is the 0-based index of the first affected line, n the
// number of lines it replaces. A start beyond the end becomes an append at the end.
func (b *Buffer) Span(e model.LineEdit) (pos, n int) {
	if e.IsAppend() {
		return len(b.lines), 0
	}
	start := e.StartLine
	if start < 1 {
		start = 1
	}
	pos = start - 1 + b.offset
	if pos < 0 {
		pos = 0
	}
	if e.EndLine >= start {
		n = e.EndLine - start + 1
	}
	if pos > len(b.lines) {
		return len(b.lines), 0
	}
	if pos+n > len(b.lines) {
		n = len(b.lines) - pos
	}
	return pos, n
}

// Splice replaces n lines at pos with repl and updates the offset.
func (b *Buffer) Splice(pos, n int, repl []string) {
	next := make([]string, 0, len(b.lines)-n+len(repl))
	next = append(next, b.lines[:pos]...)
	next = append(next, repl...)
	next = append(next, b.lines[pos+n:]...)
	b.lines = next

	origins := make([]int, 0, len(next))
	origins = append(origins, b.origins[:pos]...)
	for range repl {
		origins = append(origins, -1)
	}
	origins = append(origins, b.origins[pos+n:]...)
	b.origins = origins
	b.offset += len(repl) - n
}

// String renders the buffer back to text, keeping the original trailing-newline state.
func (b *Buffer) String() string {
	if len(b.lines) == 0 {
		return ""
	}
	s := strings.Join(b.lines, "\n")
	if !b.noEOL {
		s += "\n"
	}
	return s
}

// Apply applies edits to content in memory, in ascending StartLine order, with the same
// placement rules the encoder uses.
func Apply(content string, edits []model.LineEdit) string {
	b := NewBuffer(content)
	for _, e := range Sorted(edits) {
		pos, n := b.Span(e)
		b.Splice(pos, n, SplitLines(NormalizeText(e.NewCode)))
	}
	return b.String()
}
