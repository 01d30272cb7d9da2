package edit

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sokinpui/patchgen/model"
)

// Derive turns a whole-file rewrite into line edits against oldText. Applying the result to
// oldText with Apply yields newText's lines; the trailing-newline state of oldText is kept.
func Derive(oldText, newText string) []model.LineEdit {
	oldText = withEOL(NormalizeText(oldText))
	newText = withEOL(NormalizeText(newText))

	dmp := diffmatchpatch.New()
	rOld, rNew, lineArray := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffCleanupMerge(dmp.DiffMainRunes(rOld, rNew, false))

	decode := func(s string) []string {
		var out []string
		for _, r := range s {
			idx := int(r)
			if idx >= 0 && idx < len(lineArray) {
				out = append(out, strings.TrimSuffix(lineArray[idx], "\n"))
			}
		}
		return out
	}

	var edits []model.LineEdit
	var dels, ins []string
	line := 1 // next original line

	flush := func() {
		if len(dels) == 0 && len(ins) == 0 {
			return
		}
		edits = append(edits, model.LineEdit{
			StartLine: line,
			EndLine:   line + len(dels) - 1,
			OldCode:   joinCode(dels),
			NewCode:   joinCode(ins),
		})
		line += len(dels)
		dels, ins = nil, nil
	}

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			line += len(decode(d.Text))
		case diffmatchpatch.DiffDelete:
			dels = append(dels, decode(d.Text)...)
		case diffmatchpatch.DiffInsert:
			ins = append(ins, decode(d.Text)...)
		}
	}
	flush()
	return edits
}

func withEOL(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func joinCode(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
