package patcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sokinpui/patchgen/internal/edit"
	"github.com/sokinpui/patchgen/internal/ui"
	"github.com/sokinpui/patchgen/model"
)

// ErrContextMismatch is returned when a hunk's preimage is not found where its header says.
var ErrContextMismatch = errors.New("hunk does not apply")

// image is the file being patched: its lines and whether the last one lacks a newline.
type image struct {
	lines []string
	// patched marks lines written by an earlier hunk. Later hunks may not match them.
	patched []bool
	noEOL   bool
}

func newImage(content string) *image {
	content = edit.NormalizeText(content)
	lines := edit.SplitLines(content)
	return &image{
		lines:   lines,
		patched: make([]bool, len(lines)),
		noEOL:   content != "" && !strings.HasSuffix(content, "\n"),
	}
}

func (img *image) String() string {
	if len(img.lines) == 0 {
		return ""
	}
	s := strings.Join(img.lines, "\n")
	if !img.noEOL {
		s += "\n"
	}
	return s
}

// side splits a hunk body into its preimage and postimage.
type side struct {
	pre, post           []string
	preNoEOL, postNoEOL bool
	// trailing counts the context lines after the last change.
	trailing int
}

func splitHunk(h Hunk) side {
	var s side
	var last byte
	for _, line := range h.Lines {
		if line == "" {
			line = " "
		}
		switch line[0] {
		case ' ':
			s.pre = append(s.pre, line[1:])
			s.post = append(s.post, line[1:])
			s.trailing++
		case '-':
			s.pre = append(s.pre, line[1:])
			s.trailing = 0
		case '+':
			s.post = append(s.post, line[1:])
			s.trailing = 0
		case '\\':
			switch last {
			case ' ':
				s.preNoEOL, s.postNoEOL = true, true
			case '-':
				s.preNoEOL = true
			case '+':
				s.postNoEOL = true
			}
			continue
		}
		last = line[0]
	}
	return s
}

// Apply applies the hunks of fd to original in order. Each hunk must match exactly at the
// position its new-side start gives, against the image produced by the hunks before it, and
// follows the rules git apply enforces: no line written by an earlier hunk may be matched again,
// a hunk whose old side starts at line 0 or 1 must match at the top of the file, and a hunk
// without trailing context must match at the end.
func Apply(original string, fd FileDiff) (string, error) {
	img := newImage(original)
	for i, h := range fd.Hunks {
		if err := img.apply(h); err != nil {
			return "", fmt.Errorf("%s: hunk %d (@@ -%d,%d +%d,%d @@): %w",
				fd.Path(), i+1, h.OldStart, h.OldCount, h.NewStart, h.NewCount, err)
		}
	}
	return img.String(), nil
}

func (img *image) apply(h Hunk) error {
	s := splitHunk(h)

	pos := h.NewStart - 1
	if h.NewCount == 0 {
		pos = h.NewStart
	}
	if pos < 0 || pos+len(s.pre) > len(img.lines) {
		return fmt.Errorf("%w: position %d out of range (%d lines)", ErrContextMismatch, pos+1, len(img.lines))
	}
	atEnd := pos+len(s.pre) == len(img.lines)
	if h.OldStart <= 1 && pos != 0 {
		return fmt.Errorf("%w: hunk must match at the start of the file, not line %d", ErrContextMismatch, pos+1)
	}
	if s.trailing == 0 && !atEnd {
		return fmt.Errorf("%w: hunk without trailing context must match at the end of the file", ErrContextMismatch)
	}
	for j, want := range s.pre {
		if img.patched[pos+j] {
			return fmt.Errorf("%w: line %d was already changed by an earlier hunk", ErrContextMismatch, pos+j+1)
		}
		if got := img.lines[pos+j]; got != want {
			return fmt.Errorf("%w: line %d is %q, expected %q", ErrContextMismatch, pos+j+1, got, want)
		}
	}

	if s.preNoEOL && !(atEnd && img.noEOL) {
		return fmt.Errorf("%w: hunk expects the file to end without a newline", ErrContextMismatch)
	}
	if atEnd && len(s.pre) > 0 && img.noEOL && !s.preNoEOL {
		return fmt.Errorf("%w: file ends without a newline but the hunk does not say so", ErrContextMismatch)
	}

	next := make([]string, 0, len(img.lines)-len(s.pre)+len(s.post))
	next = append(next, img.lines[:pos]...)
	next = append(next, s.post...)
	next = append(next, img.lines[pos+len(s.pre):]...)
	img.lines = next

	patched := make([]bool, 0, len(next))
	patched = append(patched, img.patched[:pos]...)
	for range s.post {
		patched = append(patched, true)
	}
	patched = append(patched, img.patched[pos+len(s.pre):]...)
	img.patched = patched

	switch {
	case len(img.lines) == 0:
		img.noEOL = false
	case atEnd && len(s.post) > 0:
		img.noEOL = s.postNoEOL
	}
	return nil
}

// ApplyAll applies every file block of diff to originals and returns the resulting snapshot.
// Created files are added and deleted files removed; originals is not modified.
func ApplyAll(diff string, originals model.FileSnapshot) (model.FileSnapshot, error) {
	files, err := Parse(diff)
	if err != nil {
		return nil, err
	}

	result := make(model.FileSnapshot, len(originals))
	for path, content := range originals {
		result[path] = content
	}

	for _, fd := range files {
		path := fd.Path()
		current, exists := result[path]
		switch {
		case fd.IsCreate():
			if exists {
				return nil, fmt.Errorf("create %s: file already exists", path)
			}
			content, err := Apply("", fd)
			if err != nil {
				return nil, err
			}
			result[path] = content
			ui.Debug("patcher: created %s", path)
		case fd.IsDelete():
			if !exists {
				return nil, fmt.Errorf("delete %s: file does not exist", path)
			}
			rest, err := Apply(current, fd)
			if err != nil {
				return nil, err
			}
			if rest != "" {
				return nil, fmt.Errorf("delete %s: %w: %d line(s) left after removal",
					path, ErrContextMismatch, len(edit.SplitLines(rest)))
			}
			delete(result, path)
			ui.Debug("patcher: deleted %s", path)
		default:
			if !exists {
				return nil, fmt.Errorf("modify %s: file does not exist", path)
			}
			content, err := Apply(current, fd)
			if err != nil {
				return nil, err
			}
			result[path] = content
			ui.Debug("patcher: modified %s", path)
		}
	}
	return result, nil
}
