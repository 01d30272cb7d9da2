package model

// AppendSentinel in LineEdit.OldCode means "append NewCode after the last line".
const AppendSentinel = "<<APPEND_AT_EOF>>"

// FileSnapshot maps a file path to its original content.
type FileSnapshot map[string]string

// Operation is one file-level change. It is implemented only by Create, Delete and Modify,
// so a type switch over those three is exhaustive.
type Operation interface {
	Path() string
	isOperation()
}

// Create adds a new file with the given content.
type Create struct {
	FilePath string
	Content  string
}

// Delete removes an existing file.
type Delete struct {
	FilePath string
}

// Modify applies line edits to an existing file.
type Modify struct {
	FilePath string
	Edits    []LineEdit
}

func (c Create) Path() string { return c.FilePath }
func (d Delete) Path() string { return d.FilePath }
func (m Modify) Path() string { return m.FilePath }

func (Create) isOperation() {}
func (Delete) isOperation() {}
func (Modify) isOperation() {}

// LineEdit replaces lines StartLine..EndLine (1-based, inclusive, numbered against the
// original file) with NewCode. An EndLine below StartLine is a pure insertion before
// StartLine. An empty NewCode deletes the range.
type LineEdit struct {
	StartLine int    `yaml:"start_line"`
	EndLine   int    `yaml:"end_line"`
	OldCode   string `yaml:"old_code"`
	NewCode   string `yaml:"new_code"`
}

// IsAppend reports whether the edit appends at end of file.
func (e LineEdit) IsAppend() bool {
	return e.OldCode == AppendSentinel
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Deleted  []string
	Failed   []string

	// Checked is set when a diff went through validation; Valid is its verdict.
	Checked     bool
	Valid       bool
	Diagnostics string

	Message string
}
