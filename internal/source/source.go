package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/mattn/go-isatty"

	"github.com/sokinpui/patchgen/internal/ui"
)

// SourceProvider determines and retrieves the source content.
type SourceProvider struct {
	inputPath     string
	stdin         io.Reader
	stdinIsPiped  func() bool
	readClipboard func() (string, error)
}

// New creates a new SourceProvider. A non-empty inputPath takes precedence over stdin and
// the clipboard; "-" means stdin.
func New(inputPath string) *SourceProvider {
	return &SourceProvider{
		inputPath:     inputPath,
		stdin:         os.Stdin,
		stdinIsPiped:  stdinIsPiped,
		readClipboard: clipboard.ReadAll,
	}
}

func stdinIsPiped() bool {
	fd := os.Stdin.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// GetContent retrieves content from the input file, stdin (if piped) or the clipboard.
func (sp *SourceProvider) GetContent() (string, error) {
	switch {
	case sp.inputPath == "-":
		return sp.readStdin()
	case sp.inputPath != "":
		ui.Header("--- Reading from %s ---", sp.inputPath)
		content, err := os.ReadFile(sp.inputPath)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(content), nil
	case sp.stdinIsPiped():
		return sp.readStdin()
	}

	ui.Header("--- Reading from clipboard ---")
	content, err := sp.readClipboard()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		ui.Warning("Clipboard is empty. Nothing to process.")
		return "", nil
	}
	return content, nil
}

func (sp *SourceProvider) readStdin() (string, error) {
	ui.Header("--- Reading from stdin ---")
	content, err := io.ReadAll(sp.stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return string(content), nil
}
