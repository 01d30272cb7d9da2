package edit

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sokinpui/patchgen/internal/ui"
	"github.com/sokinpui/patchgen/model"
)

// ErrConflictingCreate is returned by Merge when two Create operations for the same path
// carry different content.
var ErrConflictingCreate = errors.New("conflicting create operations")

// Merge folds operations that share a path into one and returns them sorted by path.
//
// Two Modify operations concatenate their edits. For any other pairing the first operation
// wins and the later one is ignored, except that two Creates must agree on content.
func Merge(ops []model.Operation) ([]model.Operation, error) {
	byPath := make(map[string]model.Operation, len(ops))
	var paths []string

	for _, op := range ops {
		path := op.Path()
		prev, ok := byPath[path]
		if !ok {
			byPath[path] = op
			paths = append(paths, path)
			continue
		}

		switch p := prev.(type) {
		case model.Modify:
			if m, ok := op.(model.Modify); ok {
				edits := make([]model.LineEdit, 0, len(p.Edits)+len(m.Edits))
				edits = append(edits, p.Edits...)
				edits = append(edits, m.Edits...)
				byPath[path] = model.Modify{FilePath: path, Edits: edits}
				continue
			}
		case model.Create:
			if c, ok := op.(model.Create); ok {
				if NormalizeText(c.Content) != NormalizeText(p.Content) {
					return nil, fmt.Errorf("%w: %s", ErrConflictingCreate, path)
				}
				continue
			}
		}
		ui.Warning("Ignoring %s for '%s': an earlier %s for the same path takes precedence.", Kind(op), path, Kind(prev))
	}

	sort.Strings(paths)
	merged := make([]model.Operation, 0, len(paths))
	for _, path := range paths {
		merged = append(merged, byPath[path])
	}
	return merged, nil
}

// Sorted returns a copy of edits stably sorted by StartLine. Append edits sort last.
func Sorted(edits []model.LineEdit) []model.LineEdit {
	sorted := make([]model.LineEdit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IsAppend() != b.IsAppend() {
			return b.IsAppend()
		}
		return a.StartLine < b.StartLine
	})
	return sorted
}

// Kind names an operation for messages.
func Kind(op model.Operation) string {
	switch op.(type) {
	case model.Create:
		return "create"
	case model.Delete:
		return "delete"
	case model.Modify:
		return "modify"
	default:
		return fmt.Sprintf("%T", op)
	}
}
