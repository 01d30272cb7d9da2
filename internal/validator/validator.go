package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sokinpui/patchgen/internal/edit"
	"github.com/sokinpui/patchgen/internal/ui"
)

// DefaultTimeout bounds one whole validation, including repository setup.
const DefaultTimeout = 60 * time.Second

// Runner runs the version-control tool in dir and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// GitRunner runs the git binary.
type GitRunner struct {
	// Binary is the executable to run. Empty means "git" from PATH.
	Binary string
}

// Run executes git with args in dir.
func (g GitRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Options configures a Validator.
type Options struct {
	Runner  Runner
	Timeout time.Duration
}

// Validator dry-runs diffs against a working tree.
type Validator struct {
	runner  Runner
	timeout time.Duration
	locks   sync.Map // absolute dir -> *sync.Mutex
}

// New creates a Validator. A nil Runner means GitRunner{}.
func New(opts Options) *Validator {
	if opts.Runner == nil {
		opts.Runner = GitRunner{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Validator{runner: opts.Runner, timeout: opts.Timeout}
}

// Validate checks diff against dir with a default Validator.
func Validate(ctx context.Context, diff, dir string) (bool, string, error) {
	return New(Options{}).Validate(ctx, diff, dir)
}

// Validate reports whether diff applies cleanly to the committed content of dir, without
// modifying any tracked file. A rejected diff returns false with the tool's output. Errors are
// reserved for setup failures such as a missing directory or an unwritable temp file.
func (v *Validator) Validate(ctx context.Context, diff, dir string) (bool, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, "", fmt.Errorf("resolve working tree %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return false, "", fmt.Errorf("working tree: %w", err)
	}
	if !info.IsDir() {
		return false, "", fmt.Errorf("working tree %s is not a directory", abs)
	}

	mu := v.lock(abs)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	repo, out, err := v.prepare(ctx, abs)
	if err != nil {
		if msg, ok := interrupted(ctx); ok {
			return false, msg, nil
		}
		return false, out, nil
	}

	patchFile, err := writePatch(diff)
	if err != nil {
		return false, "", err
	}
	defer os.Remove(patchFile)

	args := []string{"apply", "--check", "--ignore-space-change", "--ignore-whitespace"}
	if repo.prefix != "" {
		args = append(args, "--directory="+repo.prefix)
	}
	args = append(args, patchFile)

	ui.Debug("validator: git %s in %s", strings.Join(args, " "), repo.root)
	applyOut, err := v.runner.Run(ctx, repo.root, args...)
	if err != nil {
		if msg, ok := interrupted(ctx); ok {
			return false, msg, nil
		}
		diagnostics := strings.TrimSpace(string(applyOut))
		if diagnostics == "" {
			diagnostics = err.Error()
		}
		return false, diagnostics, nil
	}
	return true, "", nil
}

func (v *Validator) lock(dir string) *sync.Mutex {
	mu, _ := v.locks.LoadOrStore(dir, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// baselineCommit records the staged content of a freshly initialised tree. The identity is
// fixed so that it works without any user configuration.
var baselineCommit = []string{
	"-c", "user.name=patchgen", "-c", "user.email=patchgen@localhost", "-c", "commit.gpgsign=false",
	"commit", "--quiet", "--no-verify", "--allow-empty", "-m", "patchgen baseline",
}

// repository locates a working tree inside its repository.
type repository struct {
	root string
	// prefix is the working tree relative to root, slash-separated, or "" at the root.
	prefix string
}

// prepare makes the committed content of dir what the patch is checked against. A directory
// outside any repository is initialised and its current files committed as the baseline. Inside
// a repository, which may start above dir, unstaged changes under dir left by earlier attempts
// are discarded.
func (v *Validator) prepare(ctx context.Context, dir string) (repository, string, error) {
	root, ok := v.toplevel(ctx, dir)
	if !ok {
		ui.Debug("validator: initialising repository in %s", dir)
		for _, args := range [][]string{{"init"}, {"add", "-A"}, baselineCommit} {
			if out, err := v.runner.Run(ctx, dir, args...); err != nil {
				return repository{}, string(out), err
			}
		}
		return repository{root: dir}, "", nil
	}

	prefix, err := relativePrefix(root, dir)
	if err != nil {
		return repository{}, err.Error(), err
	}

	ui.Debug("validator: restoring %s", dir)
	out, err := v.runner.Run(ctx, dir, "restore", ".")
	// Nothing tracked under dir leaves nothing to restore.
	if err != nil && !strings.Contains(string(out), "did not match any file") {
		return repository{}, string(out), err
	}
	return repository{root: root, prefix: prefix}, "", nil
}

func (v *Validator) toplevel(ctx context.Context, dir string) (string, bool) {
	out, err := v.runner.Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", false
	}
	root := strings.TrimSpace(string(out))
	return root, root != ""
}

func relativePrefix(root, dir string) (string, error) {
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	if d, err := filepath.EvalSymlinks(dir); err == nil {
		dir = d
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("working tree %s is not inside repository %s", dir, root)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// writePatch stores diff in a temp file with LF line endings and returns its path. Only line
// endings are rewritten; every other byte must still match the files on disk.
func writePatch(diff string) (string, error) {
	f, err := os.CreateTemp("", "patchgen-*.diff")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	content := edit.NormalizeLineEndings(diff)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), nil
}

func interrupted(ctx context.Context) (string, bool) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "validation timed out", true
	case errors.Is(ctx.Err(), context.Canceled):
		return "validation cancelled", true
	}
	return "", false
}
