package patchgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/sokinpui/patchgen/cli"
	"github.com/sokinpui/patchgen/internal/decoder"
	"github.com/sokinpui/patchgen/internal/edit"
	"github.com/sokinpui/patchgen/internal/encoder"
	"github.com/sokinpui/patchgen/internal/fs"
	"github.com/sokinpui/patchgen/internal/opsdoc"
	"github.com/sokinpui/patchgen/internal/parser"
	"github.com/sokinpui/patchgen/internal/patcher"
	"github.com/sokinpui/patchgen/internal/source"
	"github.com/sokinpui/patchgen/internal/ui"
	"github.com/sokinpui/patchgen/internal/validator"
	"github.com/sokinpui/patchgen/model"
)

// App orchestrates the entire application logic.
type App struct {
	cfg            *cli.Config
	pathResolver   *fs.PathResolver
	sourceProvider *source.SourceProvider
	encoder        *encoder.Encoder
	validator      *validator.Validator
	stdout         io.Writer
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	var lookupDirs []string
	if cfg.Dir != "" {
		lookupDirs = []string{cfg.Dir}
	}
	pathResolver, err := fs.NewPathResolver(lookupDirs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize path resolver: %w", err)
	}

	return &App{
		cfg:            cfg,
		pathResolver:   pathResolver,
		sourceProvider: source.New(cfg.Input),
		encoder:        encoder.New(encoder.Options{ContextLines: cfg.ContextLines}),
		validator:      validator.New(validator.Options{Timeout: cfg.Timeout}),
		stdout:         os.Stdout,
	}, nil
}

// SetOutput sets where results go when no output file is configured.
func (a *App) SetOutput(w io.Writer) {
	a.stdout = w
}

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	content, err := a.sourceProvider.GetContent()
	if err != nil {
		return model.Summary{}, err
	}
	if strings.TrimSpace(content) == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	switch a.cfg.Mode() {
	case cli.ModeDecode:
		return a.decode(content)
	case cli.ModeValidate:
		return a.validate(ctx, content)
	case cli.ModeFix:
		return a.fix(ctx, content)
	case cli.ModePreview:
		return a.preview(content)
	default:
		return a.encode(ctx, content)
	}
}

// encode turns an operations document (or markdown carrying one) into a diff.
func (a *App) encode(ctx context.Context, content string) (model.Summary, error) {
	doc, err := parser.ExtractOperations(content)
	if err != nil {
		return model.Summary{}, err
	}
	if len(doc.Operations) == 0 {
		return model.Summary{Message: "No operations found. Nothing to do."}, nil
	}

	originals, missing, err := a.pathResolver.LoadSnapshot(doc.Paths())
	if err != nil {
		return model.Summary{}, err
	}
	ops, failed := withOriginals(doc.Resolve(originals), originals, missing)

	diff, err := a.encoder.Encode(ops, originals)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to encode diff: %w", err)
	}
	if err := a.emit(diff); err != nil {
		return model.Summary{}, err
	}

	summary := summarize(decoder.Decode(diff))
	summary.Failed = failed
	if a.cfg.Check {
		if err := a.check(ctx, diff, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// decode turns a diff into an operations document.
func (a *App) decode(content string) (model.Summary, error) {
	diff, err := parser.ExtractDiff(content)
	if err != nil {
		return model.Summary{}, err
	}
	if diff == "" {
		return model.Summary{Message: "No diff found. Nothing to do."}, nil
	}

	ops, report := decoder.New(decoder.Options{Unescape: a.cfg.Unescape}).Decode(diff)
	data, err := opsdoc.Marshal(ops)
	if err != nil {
		return model.Summary{}, err
	}
	if err := a.emit(string(data)); err != nil {
		return model.Summary{}, err
	}

	summary := summarize(ops)
	if len(report.Dropped) > 0 {
		summary.Message = fmt.Sprintf("Dropped %d block(s) without edits: %s", len(report.Dropped), strings.Join(report.Dropped, ", "))
	}
	return summary, nil
}

func (a *App) validate(ctx context.Context, content string) (model.Summary, error) {
	diff, err := parser.ExtractDiff(content)
	if err != nil {
		return model.Summary{}, err
	}
	if diff == "" {
		return model.Summary{Message: "No diff found. Nothing to do."}, nil
	}

	summary := summarize(decoder.Decode(diff))
	if err := a.check(ctx, diff, &summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// fix decodes a diff, re-anchors its hunks against the real files and encodes it again, which
// repairs hunk headers, counts and stale removed lines.
func (a *App) fix(ctx context.Context, content string) (model.Summary, error) {
	diff, err := parser.ExtractDiff(content)
	if err != nil {
		return model.Summary{}, err
	}
	if diff == "" {
		return model.Summary{Message: "No diff found. Nothing to do."}, nil
	}

	originals, missing, err := a.pathResolver.LoadSnapshot(originalPaths(decoder.Decode(diff)))
	if err != nil {
		return model.Summary{}, err
	}

	ops, _ := decoder.New(decoder.Options{
		Unescape:     a.cfg.Unescape,
		IgnoreCounts: true,
		Anchors:      originals,
	}).Decode(diff)
	ops, failed := withOriginals(ops, originals, missing)

	fixed, err := a.encoder.Encode(ops, originals)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to re-encode diff: %w", err)
	}
	if _, err := patcher.ApplyAll(fixed, originals); err != nil {
		ui.Warning("Repaired diff does not apply in memory: %v", err)
	}
	if err := a.emit(fixed); err != nil {
		return model.Summary{}, err
	}

	summary := summarize(ops)
	summary.Failed = failed
	if a.cfg.Check {
		if err := a.check(ctx, fixed, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// preview prints every file the diff touches as it would be after applying it.
func (a *App) preview(content string) (model.Summary, error) {
	diff, err := parser.ExtractDiff(content)
	if err != nil {
		return model.Summary{}, err
	}
	if diff == "" {
		return model.Summary{Message: "No diff found. Nothing to do."}, nil
	}

	ops := decoder.Decode(diff)
	originals, _, err := a.pathResolver.LoadSnapshot(originalPaths(ops))
	if err != nil {
		return model.Summary{}, err
	}
	result, err := patcher.ApplyAll(diff, originals)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to apply diff: %w", err)
	}

	var b strings.Builder
	summary := summarize(ops)
	for _, path := range append(append([]string{}, summary.Created...), summary.Modified...) {
		fmt.Fprintf(&b, "==> %s <==\n%s", path, result[path])
		if !strings.HasSuffix(result[path], "\n") {
			b.WriteString("\n")
		}
	}
	if err := a.emit(b.String()); err != nil {
		return model.Summary{}, err
	}
	return summary, nil
}

func (a *App) check(ctx context.Context, diff string, summary *model.Summary) error {
	ui.Info("Validating diff against %s", a.pathResolver.Root())
	valid, diagnostics, err := a.validator.Validate(ctx, diff, a.pathResolver.Root())
	if err != nil {
		return fmt.Errorf("validation setup failed: %w", err)
	}
	summary.Checked = true
	summary.Valid = valid
	summary.Diagnostics = diagnostics
	return nil
}

func (a *App) emit(text string) error {
	if a.cfg.Output != "" {
		if err := fs.WriteOutput(a.cfg.Output, text); err != nil {
			return err
		}
		ui.Success("Wrote %s", a.cfg.Output)
		return nil
	}
	_, err := io.WriteString(a.stdout, text)
	return err
}

// withOriginals drops operations that need an original the working tree does not have, and
// returns their paths.
func withOriginals(ops []model.Operation, originals model.FileSnapshot, missing []string) ([]model.Operation, []string) {
	if len(missing) == 0 {
		return ops, nil
	}
	kept := make([]model.Operation, 0, len(ops))
	var failed []string
	for _, op := range ops {
		if _, isCreate := op.(model.Create); !isCreate {
			if _, ok := originals[op.Path()]; !ok {
				ui.Error("Cannot %s '%s': file not found.", edit.Kind(op), op.Path())
				failed = append(failed, op.Path())
				continue
			}
		}
		kept = append(kept, op)
	}
	return kept, failed
}

func originalPaths(ops []model.Operation) []string {
	var paths []string
	for _, op := range ops {
		if _, isCreate := op.(model.Create); !isCreate {
			paths = append(paths, op.Path())
		}
	}
	return paths
}

func summarize(ops []model.Operation) model.Summary {
	var s model.Summary
	for _, op := range ops {
		switch op.(type) {
		case model.Create:
			s.Created = append(s.Created, op.Path())
		case model.Delete:
			s.Deleted = append(s.Deleted, op.Path())
		case model.Modify:
			s.Modified = append(s.Modified, op.Path())
		}
	}
	sort.Strings(s.Created)
	sort.Strings(s.Modified)
	sort.Strings(s.Deleted)
	return s
}

// ErrInvalidDiff is returned by ExitError when validation rejected the diff.
var ErrInvalidDiff = errors.New("diff does not apply")

// ExitError maps a finished run to the error a command should exit with.
func ExitError(s model.Summary, err error) error {
	if err != nil {
		return err
	}
	if s.Checked && !s.Valid {
		return ErrInvalidDiff
	}
	return nil
}
