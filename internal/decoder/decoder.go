package decoder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sokinpui/patchgen/internal/edit"
	"github.com/sokinpui/patchgen/internal/ui"
	"github.com/sokinpui/patchgen/model"
)

const devNull = "/dev/null"

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Options configures a Decoder.
type Options struct {
	// Unescape runs edit.Unescape over added lines, for diffs whose content was escaped twice.
	Unescape bool
	// IgnoreCounts reads each hunk body up to the next header instead of trusting the
	// header counts. A blank line followed by more body lines is read as empty context.
	IgnoreCounts bool
	// Anchors re-anchors hunks against these originals: a hunk whose context and removed
	// lines are not where its header says is moved to the nearest place they occur.
	Anchors model.FileSnapshot
}

// Report describes what a decode pass ignored.
type Report struct {
	// Dropped lists paths of file blocks that produced no edits.
	Dropped []string
	// Skipped counts lines that were not part of any header or hunk body.
	Skipped int
}

// Decoder parses unified diff text back into operations.
type Decoder struct {
	opts Options
}

// New creates a Decoder.
func New(opts Options) *Decoder {
	return &Decoder{opts: opts}
}

// Decode parses diff with default options.
func Decode(diff string) []model.Operation {
	ops, _ := New(Options{}).Decode(diff)
	return ops
}

type state int

const (
	awaitingFileHeader state = iota
	sawOldHeader
	sawNewHeader
	inHunk
)

type fileBlock struct {
	oldPath, newPath string
	edits            []model.LineEdit
	content          []string
	noEOL            bool
}

func (f *fileBlock) isCreate() bool { return f.oldPath == devNull }
func (f *fileBlock) isDelete() bool { return f.newPath == devNull }

func (f *fileBlock) path() string {
	if f.isDelete() || f.newPath == "" {
		return f.oldPath
	}
	return f.newPath
}

// run holds the state of one Decode call.
type run struct {
	opts  Options
	state state
	file  *fileBlock

	// counter is the original line number of the next old-side line.
	counter          int
	oldLeft, newLeft int
	olds, news       []string
	lastTag          byte

	// hunkOld is the header's 0-based old position, hunkPre the old side read so far, and
	// hunkEdits the number of file edits that existed when the hunk began.
	hunkOld   int
	hunkPre   []string
	hunkEdits int

	ops    []model.Operation
	report Report
}

// Decode parses diff into operations, in the order their file blocks appear.
//
// Line numbers in the resulting edits refer to the original file, so re-applying them with
// edit.Apply reproduces the diff's result. Lines the decoder does not understand are skipped.
func (d *Decoder) Decode(diff string) ([]model.Operation, Report) {
	r := &run{opts: d.opts}
	lines := edit.SplitLines(edit.NormalizeText(diff))
	for i, line := range lines {
		next, more := "", i+1 < len(lines)
		if more {
			next = lines[i+1]
		}
		r.feed(line, next, more)
	}
	r.flushFile()
	return r.ops, r.report
}

func (r *run) feed(line, next string, more bool) {
	if r.state == inHunk && (r.oldLeft > 0 || r.newLeft > 0) {
		r.body(line)
		return
	}

	switch {
	case strings.HasPrefix(line, "--- "):
		r.flushFile()
		r.file = &fileBlock{oldPath: cleanPath(line[4:], "a/")}
		r.state = sawOldHeader
	case strings.HasPrefix(line, "+++ ") && r.state == sawOldHeader:
		r.file.newPath = cleanPath(line[4:], "b/")
		r.state = sawNewHeader
	case strings.HasPrefix(line, "@@") && r.file != nil:
		r.flushPending()
		r.endHunk()
		if !r.startHunk(line) {
			r.report.Skipped++
		}
	case r.state == inHunk && isBodyLine(line):
		r.body(line)
	case r.state == inHunk && line == "" && r.opts.IgnoreCounts && more && isBodyLine(next):
		r.body(line)
	default:
		r.report.Skipped++
	}
}

func (r *run) startHunk(line string) bool {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	oldStart, oldCount := atoi(m[1]), count(m[2])
	r.counter = oldStart
	if oldCount == 0 {
		r.counter++
	}
	r.oldLeft, r.newLeft = oldCount, count(m[4])
	if r.opts.IgnoreCounts {
		r.oldLeft, r.newLeft = 0, 0
	}
	r.hunkOld = oldStart - 1
	if r.hunkOld < 0 {
		r.hunkOld = 0
	}
	r.hunkPre = nil
	r.hunkEdits = len(r.file.edits)
	r.lastTag = 0
	r.state = inHunk
	return true
}

func (r *run) body(line string) {
	if line == "" {
		line = " "
	}
	tag, text := line[0], line[1:]
	switch tag {
	case ' ':
		r.flushPending()
		r.hunkPre = append(r.hunkPre, text)
		r.counter++
		r.oldLeft--
		r.newLeft--
	case '-':
		r.olds = append(r.olds, text)
		r.hunkPre = append(r.hunkPre, text)
		r.oldLeft--
	case '+':
		if r.opts.Unescape {
			if u := edit.Unescape(text); u != text {
				ui.Debug("Unescaped added line: %q -> %q", text, u)
				text = u
			}
		}
		r.news = append(r.news, text)
		r.newLeft--
	case '\\':
		if r.lastTag == '+' && r.file.isCreate() {
			r.file.noEOL = true
		}
		return
	default:
		r.report.Skipped++
		return
	}
	if r.oldLeft < 0 {
		r.oldLeft = 0
	}
	if r.newLeft < 0 {
		r.newLeft = 0
	}
	r.lastTag = tag
}

// flushPending turns the accumulated -/+ run into one edit starting at the counter.
func (r *run) flushPending() {
	if len(r.olds) == 0 && len(r.news) == 0 {
		return
	}
	f := r.file
	switch {
	case f.isCreate():
		f.content = append(f.content, r.news...)
	case f.isDelete():
	default:
		f.edits = append(f.edits, model.LineEdit{
			StartLine: r.counter,
			EndLine:   r.counter + len(r.olds) - 1,
			OldCode:   joinLines(r.olds),
			NewCode:   joinLines(r.news),
		})
	}
	r.counter += len(r.olds)
	r.olds, r.news = nil, nil
}

func (r *run) flushFile() {
	if r.file == nil {
		return
	}
	r.flushPending()
	r.endHunk()
	f := r.file
	r.file = nil
	r.state = awaitingFileHeader
	r.oldLeft, r.newLeft = 0, 0

	switch {
	case f.isCreate():
		content := joinLines(f.content)
		if f.noEOL {
			content = strings.TrimSuffix(content, "\n")
		}
		r.ops = append(r.ops, model.Create{FilePath: f.path(), Content: content})
	case f.isDelete():
		r.ops = append(r.ops, model.Delete{FilePath: f.path()})
	case len(f.edits) == 0:
		ui.Warning("Dropping diff block for '%s': it contains no edits.", f.path())
		r.report.Dropped = append(r.report.Dropped, f.path())
	default:
		r.ops = append(r.ops, model.Modify{FilePath: f.path(), Edits: f.edits})
	}
}

// endHunk moves the edits of the finished hunk when Anchors places its old side elsewhere.
func (r *run) endHunk() {
	pre, old, first := r.hunkPre, r.hunkOld, r.hunkEdits
	r.hunkPre = nil
	f := r.file
	if r.opts.Anchors == nil || f == nil || f.isCreate() || f.isDelete() || len(pre) == 0 {
		return
	}
	original, ok := r.opts.Anchors[f.path()]
	if !ok {
		return
	}

	at := edit.Locate(edit.SplitLines(edit.NormalizeText(original)), pre, old)
	if at < 0 {
		ui.Warning("Could not find the hunk at line %d of '%s' in the original; keeping its position.", old+1, f.path())
		return
	}
	shift := at - old
	if shift == 0 {
		return
	}
	ui.Info("Moved hunk in '%s' from line %d to line %d.", f.path(), old+1, at+1)
	for i := first; i < len(f.edits); i++ {
		f.edits[i].StartLine += shift
		f.edits[i].EndLine += shift
	}
}

func isBodyLine(line string) bool {
	return line != "" && strings.IndexByte(" -+\\", line[0]) >= 0
}

// cleanPath strips a trailing timestamp and the a/ or b/ prefix from a header path.
func cleanPath(p, prefix string) string {
	if i := strings.IndexByte(p, '\t'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if p == devNull {
		return p
	}
	return strings.TrimPrefix(p, prefix)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// count parses an optional hunk count; an omitted count means one line.
func count(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}
