package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sokinpui/patchgen/internal/opsdoc"
	"github.com/sokinpui/patchgen/internal/ui"
)

var (
	pathInHintRegex = regexp.MustCompile("`([^`\n]+)`")
	// diffStartRegex matches the first line of a unified diff file block.
	diffStartRegex = regexp.MustCompile(`(?m)^(?:diff --git |--- (?:a/|/dev/null))`)
)

func isDiffLang(lang string) bool {
	switch lang {
	case "diff", "patch", "udiff":
		return true
	}
	return false
}

func isDocumentLang(lang string) bool {
	switch lang {
	case "yaml", "yml", "json":
		return true
	}
	return false
}

// ExtractDiff returns the diff text carried by content. Fenced diff blocks are joined in order
// with a blank line between them. Without fenced blocks, content itself is returned when it
// looks like a diff. The result is empty when no diff is found.
func ExtractDiff(content string) (string, error) {
	blocks, err := ExtractCodeBlocks([]byte(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse markdown: %w", err)
	}

	var diffs []string
	for _, block := range blocks {
		if isDiffLang(block.Lang) || (block.Lang == "" && diffStartRegex.MatchString(block.Content)) {
			diffs = append(diffs, strings.TrimRight(block.Content, "\n")+"\n")
		}
	}
	if len(diffs) > 0 {
		ui.Debug("Found %d diff block(s).", len(diffs))
		return strings.Join(diffs, "\n"), nil
	}

	if diffStartRegex.MatchString(content) {
		return content, nil
	}
	return "", nil
}

// ExtractOperations builds an operations document from content.
//
// Every fenced yaml or json block is parsed as a document and their entries are combined. A
// fenced block of any other language whose hint names a path in backticks becomes a rewrite
// of that file. Without any fenced blocks, content is parsed as a document directly.
func ExtractOperations(content string) (*opsdoc.Document, error) {
	blocks, err := ExtractCodeBlocks([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markdown: %w", err)
	}
	if len(blocks) == 0 {
		return opsdoc.Parse([]byte(content))
	}

	doc := &opsdoc.Document{}
	for _, block := range blocks {
		switch {
		case isDiffLang(block.Lang):
			continue
		case isDocumentLang(block.Lang):
			part, err := opsdoc.Parse([]byte(block.Content))
			if err != nil {
				return nil, err
			}
			doc.Operations = append(doc.Operations, part.Operations...)
		default:
			path := extractPathFromHint(block.Hint)
			if path == "" {
				ui.Debug("Skipping %q block without a file path in its hint.", block.Lang)
				continue
			}
			doc.Operations = append(doc.Operations, opsdoc.Entry{
				Type:    opsdoc.TypeRewrite,
				Path:    path,
				Content: block.Content,
			})
		}
	}
	return doc, nil
}

// extractPathFromHint returns the last backticked token in the hint, which is where a file
// path is usually written ("Update `cmd/main.go`:").
func extractPathFromHint(hint string) string {
	matches := pathInHintRegex.FindAllStringSubmatch(hint, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}
