// Package opsdoc reads and writes operations documents: YAML (or JSON) lists of file
// operations in the shape callers hand to the encoder.
package opsdoc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sokinpui/patchgen/internal/edit"
	"github.com/sokinpui/patchgen/internal/ui"
	"github.com/sokinpui/patchgen/model"
)

// Entry types.
const (
	TypeCreate  = "create"
	TypeDelete  = "delete"
	TypeModify  = "modify"
	TypeRewrite = "rewrite"
)

// ErrInvalidEntry is returned for entries with an unknown type or no path.
var ErrInvalidEntry = errors.New("invalid operation entry")

// Entry is one operation as written in a document. Content is used by create and rewrite,
// Edits by modify.
type Entry struct {
	Type    string           `yaml:"type"`
	Path    string           `yaml:"path"`
	Content string           `yaml:"content,omitempty"`
	Edits   []model.LineEdit `yaml:"edits,omitempty"`
}

// Document is a list of operations.
type Document struct {
	Operations []Entry `yaml:"operations"`
}

// Load reads a document from a file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read operations file %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse reads a document. The top level is either a list of entries or a mapping with an
// "operations" key.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse operations document: %w", err)
	}

	doc := &Document{}
	if len(root.Content) == 0 {
		return doc, nil
	}
	node := root.Content[0]
	var err error
	switch node.Kind {
	case yaml.SequenceNode:
		err = node.Decode(&doc.Operations)
	case yaml.MappingNode:
		err = node.Decode(doc)
	default:
		return nil, fmt.Errorf("failed to parse operations document: expected a list or a mapping at line %d", node.Line)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse operations document: %w", err)
	}

	for i := range doc.Operations {
		e := &doc.Operations[i]
		e.Type = strings.ToLower(strings.TrimSpace(e.Type))
		e.Path = strings.TrimSpace(e.Path)
		if e.Path == "" {
			return nil, fmt.Errorf("%w: entry %d has no path", ErrInvalidEntry, i+1)
		}
		switch e.Type {
		case TypeCreate, TypeDelete, TypeModify, TypeRewrite:
		default:
			return nil, fmt.Errorf("%w: entry %d (%s) has unknown type %q", ErrInvalidEntry, i+1, e.Path, e.Type)
		}
	}
	return doc, nil
}

// Resolve turns the document into operations. A rewrite becomes a Modify derived from the
// difference between the original and the new content, or a Create when there is no original.
func (d *Document) Resolve(originals model.FileSnapshot) []model.Operation {
	ops := make([]model.Operation, 0, len(d.Operations))
	for _, e := range d.Operations {
		switch e.Type {
		case TypeCreate:
			ops = append(ops, model.Create{FilePath: e.Path, Content: e.Content})
		case TypeDelete:
			ops = append(ops, model.Delete{FilePath: e.Path})
		case TypeModify:
			ops = append(ops, model.Modify{FilePath: e.Path, Edits: e.Edits})
		case TypeRewrite:
			original, ok := originals[e.Path]
			if !ok {
				ui.Info("'%s' does not exist; treating rewrite as create.", e.Path)
				ops = append(ops, model.Create{FilePath: e.Path, Content: e.Content})
				continue
			}
			edits := edit.Derive(original, e.Content)
			if len(edits) == 0 {
				ui.Debug("Rewrite of '%s' matches the original; skipping.", e.Path)
				continue
			}
			ops = append(ops, model.Modify{FilePath: e.Path, Edits: edits})
		}
	}
	return ops
}

// Paths lists the paths the document refers to that need an original.
func (d *Document) Paths() []string {
	var paths []string
	for _, e := range d.Operations {
		if e.Type != TypeCreate {
			paths = append(paths, e.Path)
		}
	}
	return paths
}

// Marshal writes ops as a YAML document.
func Marshal(ops []model.Operation) ([]byte, error) {
	doc := Document{Operations: make([]Entry, 0, len(ops))}
	for _, op := range ops {
		switch op := op.(type) {
		case model.Create:
			doc.Operations = append(doc.Operations, Entry{Type: TypeCreate, Path: op.FilePath, Content: op.Content})
		case model.Delete:
			doc.Operations = append(doc.Operations, Entry{Type: TypeDelete, Path: op.FilePath})
		case model.Modify:
			doc.Operations = append(doc.Operations, Entry{Type: TypeModify, Path: op.FilePath, Edits: op.Edits})
		default:
			return nil, fmt.Errorf("unsupported operation %T for %s", op, op.Path())
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode operations document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode operations document: %w", err)
	}
	return buf.Bytes(), nil
}
