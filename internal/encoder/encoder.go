package encoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sokinpui/patchgen/internal/edit"
	"github.com/sokinpui/patchgen/internal/ui"
	"github.com/sokinpui/patchgen/model"
)

// DefaultContextLines is the number of context lines kept on each side of an edit.
const DefaultContextLines = 3

// ErrMissingOriginal is returned when a Modify or Delete names a path absent from the snapshot.
var ErrMissingOriginal = errors.New("original content missing from snapshot")

// Options configures an Encoder.
type Options struct {
	// ContextLines is the context kept around each edit. Zero or less means DefaultContextLines.
	ContextLines int
}

// Encoder renders edit operations as unified diff text.
type Encoder struct {
	contextLines int
}

// New creates an Encoder.
func New(opts Options) *Encoder {
	if opts.ContextLines <= 0 {
		opts.ContextLines = DefaultContextLines
	}
	return &Encoder{contextLines: opts.ContextLines}
}

// Encode renders ops against originals with default options.
func Encode(ops []model.Operation, originals model.FileSnapshot) (string, error) {
	return New(Options{}).Encode(ops, originals)
}

// Encode renders ops as one diff document: a block per file, ordered by path and separated by
// a blank line. Operations on the same path are merged first.
func (e *Encoder) Encode(ops []model.Operation, originals model.FileSnapshot) (string, error) {
	merged, err := edit.Merge(ops)
	if err != nil {
		return "", err
	}

	var blocks []string
	for _, op := range merged {
		block, err := e.encodeOperation(op, originals)
		if err != nil {
			return "", err
		}
		if block == "" {
			continue
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n"), nil
}

func (e *Encoder) encodeOperation(op model.Operation, originals model.FileSnapshot) (string, error) {
	switch op := op.(type) {
	case model.Create:
		return encodeCreate(op.FilePath, op.Content), nil
	case model.Delete:
		original, ok := originals[op.FilePath]
		if !ok {
			return "", fmt.Errorf("delete %s: %w", op.FilePath, ErrMissingOriginal)
		}
		return encodeDelete(op.FilePath, original), nil
	case model.Modify:
		original, ok := originals[op.FilePath]
		if !ok {
			return "", fmt.Errorf("modify %s: %w", op.FilePath, ErrMissingOriginal)
		}
		return e.encodeModify(op.FilePath, op.Edits, original), nil
	default:
		return "", fmt.Errorf("unsupported operation %T for %s", op, op.Path())
	}
}

func encodeCreate(path, content string) string {
	buf := edit.NewBuffer(content)
	var b strings.Builder
	b.WriteString("--- /dev/null\n")
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	if buf.Len() == 0 {
		ui.Warning("Create for '%s' has no content; emitting headers only.", path)
		return b.String()
	}
	h := hunk{oldStart: 0, newStart: 1, body: appendTagged(nil, Add, buf.Lines())}
	h.countTags()
	h.markEOF(false, buf.NoEOL())
	h.writeTo(&b)
	return b.String()
}

func encodeDelete(path, original string) string {
	buf := edit.NewBuffer(original)
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", path)
	b.WriteString("+++ /dev/null\n")
	if buf.Len() == 0 {
		return b.String()
	}
	h := hunk{oldStart: 1, newStart: 0, body: appendTagged(nil, Remove, buf.Lines())}
	h.countTags()
	h.markEOF(buf.NoEOL(), false)
	h.writeTo(&b)
	return b.String()
}

// encodeModify incorporates the edits into a working buffer one at a time, then emits a hunk for
// every region the result differs from the original. Edits separated by at least one untouched
// line keep hunks of their own; edits that touch share one.
func (e *Encoder) encodeModify(path string, edits []model.LineEdit, original string) string {
	buf := edit.NewBuffer(original)
	old := buf.Lines()

	for _, le := range edit.Sorted(edits) {
		pos, n := buf.Span(le)
		actual := buf.Lines()[pos : pos+n]
		added := edit.SplitLines(edit.NormalizeText(le.NewCode))

		verifyAnchor(path, le, actual)
		if equalLines(actual, added) {
			ui.Debug("Skipping no-op edit at %s:%d-%d", path, le.StartLine, le.EndLine)
			continue
		}
		buf.Splice(pos, n, added)
	}

	changes := changedRegions(buf, len(old))
	if len(changes) == 0 {
		ui.Warning("No effective changes for '%s'; skipping file.", path)
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", path)
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	for _, h := range e.buildHunks(old, buf.Lines(), buf.NoEOL(), groupChanges(changes, len(old))) {
		h.writeTo(&b)
	}
	return b.String()
}

// change is one run of removed and added lines between lines the edits left in place. The old
// range indexes the original lines and the new range the edited ones; both are half-open.
type change struct {
	oldLo, oldHi int
	newLo, newHi int
}

// changedRegions compares buf with the content it was loaded from. A line no splice replaced is
// unchanged, except in a file without a trailing newline: there the original last line and the
// new last line only match when they are the same line, since their terminators differ otherwise.
func changedRegions(buf *edit.Buffer, oldLen int) []change {
	n := buf.Len()
	origins := make([]int, n)
	for i := range origins {
		origins[i] = buf.Origin(i)
	}
	if buf.NoEOL() && (n == 0 || origins[n-1] != oldLen-1) {
		for i, o := range origins {
			if o == oldLen-1 {
				origins[i] = -1
			}
		}
		if n > 0 {
			origins[n-1] = -1
		}
	}

	var changes []change
	oldNext, newNext := 0, 0
	for i := 0; i <= n; i++ {
		// The end of both files acts as one last unchanged line.
		k := oldLen
		if i < n {
			if origins[i] < 0 {
				continue
			}
			k = origins[i]
		}
		if k > oldNext || i > newNext {
			changes = append(changes, change{oldLo: oldNext, oldHi: k, newLo: newNext, newHi: i})
		}
		oldNext, newNext = k+1, i+1
	}
	return changes
}

// groupChanges decides which changes share a hunk. Consecutive changes are always separated by
// an unchanged line, so each normally gets its own. The exception is a pure append at EOF one
// line after the previous change: that line has to be trailing context for the hunk before, which
// would leave the append a hunk with no old lines at all.
func groupChanges(changes []change, oldLen int) [][]change {
	var groups [][]change
	for i, c := range changes {
		pureAppend := c.oldLo == c.oldHi && c.oldLo == oldLen
		if i > 0 && pureAppend && c.oldLo-changes[i-1].oldHi == 1 {
			last := len(groups) - 1
			groups[last] = append(groups[last], c)
			continue
		}
		groups = append(groups, []change{c})
	}
	return groups
}

// buildHunks surrounds each group with context. Hunks of one file never share a line: when the
// untouched run between two groups is shorter than twice the context, it is split between the
// trailing context of the first and the leading context of the second, and the first keeps at
// least one line so that only a hunk at EOF ends without trailing context.
func (e *Encoder) buildHunks(old, cur []string, noEOL bool, groups [][]change) []hunk {
	hunks := make([]hunk, 0, len(groups))
	claimed := 0 // first original line not used by an earlier hunk
	for i, g := range groups {
		first, last := g[0], g[len(g)-1]

		lead := min(e.contextLines, first.oldLo-claimed)
		trail := len(old) - last.oldHi
		if i+1 < len(groups) {
			trail = (groups[i+1][0].oldLo - last.oldHi + 1) / 2
		}
		trail = min(e.contextLines, trail)

		oldLo, oldHi := first.oldLo-lead, last.oldHi+trail
		newLo, newHi := first.newLo-lead, last.newHi+trail
		claimed = oldHi

		var body []bodyLine
		body = appendTagged(body, Context, old[oldLo:first.oldLo])
		for j, c := range g {
			if j > 0 {
				body = appendTagged(body, Context, old[g[j-1].oldHi:c.oldLo])
			}
			body = appendTagged(body, Remove, old[c.oldLo:c.oldHi])
			body = appendTagged(body, Add, cur[c.newLo:c.newHi])
		}
		body = appendTagged(body, Context, old[last.oldHi:oldHi])

		h := hunk{oldStart: oldLo, newStart: newLo, body: body}
		h.countTags()
		// A side with no lines is numbered by the line before it.
		if h.oldCount > 0 {
			h.oldStart++
		}
		if h.newCount > 0 {
			h.newStart++
		}
		h.markEOF(noEOL && oldHi == len(old), noEOL && newHi == len(cur))
		hunks = append(hunks, h)
	}
	return hunks
}

// verifyAnchor compares the caller's claimed old text with what the file actually holds.
// A mismatch is logged; the diff always uses the actual lines.
func verifyAnchor(path string, le model.LineEdit, actual []string) {
	if le.IsAppend() || le.OldCode == "" {
		return
	}
	claimed := edit.SplitLines(edit.NormalizeText(le.OldCode))
	if edit.SameLines(claimed, actual) {
		return
	}
	ui.Warning("Anchor mismatch in '%s' at lines %d-%d; using the file's actual content.", path, le.StartLine, le.EndLine)
	ui.Debug("  claimed: %q", claimed)
	ui.Debug("  actual:  %q", actual)
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
