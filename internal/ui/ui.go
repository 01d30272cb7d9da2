package ui

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	DebugColor   = color.New(color.Faint)
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects all log output to w and returns the previous writer.
// Passing nil discards output.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	if w == nil {
		w = io.Discard
	}
	out = w
	return prev
}

func logf(c *color.Color, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	c.Fprintf(out, format+"\n", a...)
}

func Header(format string, a ...interface{}) {
	logf(HeaderColor, format, a...)
}

func Info(format string, a ...interface{}) {
	logf(InfoColor, format, a...)
}

func Success(format string, a ...interface{}) {
	logf(SuccessColor, format, a...)
}

func Warning(format string, a ...interface{}) {
	logf(WarningColor, format, a...)
}

func Error(format string, a ...interface{}) {
	logf(ErrorColor, format, a...)
}

func Path(format string, a ...interface{}) {
	logf(PathColor, "  "+format, a...)
}

// Debug logs only when PATCHGEN_DEBUG is set to a non-empty value.
func Debug(format string, a ...interface{}) {
	if os.Getenv("PATCHGEN_DEBUG") == "" {
		return
	}
	logf(DebugColor, format, a...)
}

// --- Summaries ---

func PrintSummary(created, modified, deleted, failed []string) {
	Header("\n--- Diff Summary ---")

	if len(created) == 0 && len(modified) == 0 && len(deleted) == 0 && len(failed) == 0 {
		Info("No files are touched by this diff.")
		return
	}

	printList := func(c *color.Color, title string, files []string) {
		if len(files) == 0 {
			return
		}
		logf(c, title, len(files))
		for _, f := range files {
			logf(color.New(color.Reset), "  - %s", f)
		}
	}
	printList(SuccessColor, "Created %d file(s):", created)
	printList(SuccessColor, "Modified %d file(s):", modified)
	printList(SuccessColor, "Deleted %d file(s):", deleted)
	printList(ErrorColor, "Failed to process %d file(s):", failed)
}

func PrintValidation(valid bool, diagnostics string) {
	Header("\n--- Validation ---")
	if valid {
		Success("Diff applies cleanly.")
		return
	}
	Error("Diff does not apply:")
	for _, line := range strings.Split(strings.TrimRight(diagnostics, "\n"), "\n") {
		if line == "" {
			continue
		}
		Path("%s", line)
	}
}
