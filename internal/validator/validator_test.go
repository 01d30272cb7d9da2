package validator

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sokinpui/patchgen/internal/encoder"
	"github.com/sokinpui/patchgen/model"
)

type reply struct {
	out string
	err error
}

// fakeRunner records calls and answers by subcommand.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	dirs    []string
	replies map[string]reply
	patch   string
	block   bool
}

// subcommand skips leading "-c key=value" options.
func subcommand(args []string) string {
	for len(args) > 1 && args[0] == "-c" {
		args = args[2:]
	}
	return args[0]
}

func (f *fakeRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	sub := subcommand(args)
	f.mu.Lock()
	f.calls = append(f.calls, strings.Join(args, " "))
	f.dirs = append(f.dirs, dir)
	r := f.replies[sub]
	f.mu.Unlock()

	if sub == "apply" {
		data, err := os.ReadFile(args[len(args)-1])
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.patch = string(data)
		f.mu.Unlock()
		if f.block {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	if sub == "rev-parse" && r.out == "" && r.err == nil {
		return []byte(dir + "\n"), nil
	}
	return []byte(r.out), r.err
}

func (f *fakeRunner) subcommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var subs []string
	for _, c := range f.calls {
		subs = append(subs, subcommand(strings.Fields(c)))
	}
	return subs
}

func TestValidateInitialisesUntrackedTree(t *testing.T) {
	runner := &fakeRunner{replies: map[string]reply{
		"rev-parse": {out: "fatal: not a git repository", err: errors.New("exit status 128")},
	}}
	ok, msg, err := New(Options{Runner: runner}).Validate(context.Background(), "diff\r\n", t.TempDir())
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, msg)
	require.Equal(t, []string{"rev-parse", "init", "add", "commit", "apply"}, runner.subcommands())
	require.Contains(t, runner.calls[3], "user.email=patchgen@localhost")
	require.Contains(t, runner.calls[4], "--check --ignore-space-change --ignore-whitespace")
	require.NotContains(t, runner.calls[4], "--directory")
	require.Equal(t, "diff\n", runner.patch, "patch file is written with LF endings")
}

func TestValidateKeepsNonLineEndingBytes(t *testing.T) {
	runner := &fakeRunner{replies: map[string]reply{}}
	diff := "--- a/f\r\n+++ b/f\r\n@@ -1 +1 @@\r\n-caf\uFFFD\r\n+cafe\r\n"
	ok, _, err := New(Options{Runner: runner}).Validate(context.Background(), diff, t.TempDir())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "--- a/f\n+++ b/f\n@@ -1 +1 @@\n-caf\uFFFD\n+cafe\n", runner.patch)
}

func TestValidateSubdirectoryOfRepository(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "pkg", "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	runner := &fakeRunner{replies: map[string]reply{
		"rev-parse": {out: root + "\n"},
	}}
	ok, _, err := New(Options{Runner: runner}).Validate(context.Background(), "diff\n", sub)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, []string{"rev-parse", "restore", "apply"}, runner.subcommands())
	require.Equal(t, sub, runner.dirs[1], "leftovers are discarded under the working tree only")
	require.Equal(t, root, runner.dirs[2], "the patch is checked from the repository root")
	require.Contains(t, runner.calls[2], "--directory=pkg/sub")
}

func TestValidateRestoresExistingRepo(t *testing.T) {
	runner := &fakeRunner{replies: map[string]reply{}}
	ok, _, err := New(Options{Runner: runner}).Validate(context.Background(), "diff\n", t.TempDir())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"rev-parse", "restore", "apply"}, runner.subcommands())
}

func TestValidateToleratesEmptyIndex(t *testing.T) {
	runner := &fakeRunner{replies: map[string]reply{
		"restore": {out: "error: pathspec '.' did not match any file(s) known to git", err: errors.New("exit status 1")},
	}}
	ok, _, err := New(Options{Runner: runner}).Validate(context.Background(), "diff\n", t.TempDir())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestValidateReportsRejection(t *testing.T) {
	runner := &fakeRunner{replies: map[string]reply{
		"apply": {out: "error: patch failed: f.txt:1\nerror: f.txt: patch does not apply\n", err: errors.New("exit status 1")},
	}}
	ok, msg, err := New(Options{Runner: runner}).Validate(context.Background(), "diff\n", t.TempDir())
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, msg, "patch does not apply")
}

func TestValidateSetupFailure(t *testing.T) {
	runner := &fakeRunner{replies: map[string]reply{
		"rev-parse": {err: errors.New("not a repo")},
		"init":      {out: "permission denied", err: errors.New("exit status 1")},
	}}
	ok, msg, err := New(Options{Runner: runner}).Validate(context.Background(), "diff\n", t.TempDir())
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "permission denied", msg)
	require.NotContains(t, runner.subcommands(), "apply")
}

func TestValidateMissingDirectory(t *testing.T) {
	runner := &fakeRunner{}
	_, _, err := New(Options{Runner: runner}).Validate(context.Background(), "diff\n", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.Empty(t, runner.calls)
}

func TestValidateTimeout(t *testing.T) {
	runner := &fakeRunner{replies: map[string]reply{}, block: true}
	v := New(Options{Runner: runner, Timeout: 20 * time.Millisecond})
	ok, msg, err := v.Validate(context.Background(), "diff\n", t.TempDir())
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, msg, "timed out")
}

func TestValidateRemovesPatchFile(t *testing.T) {
	var patchPath string
	runner := &recordingRunner{onApply: func(path string) { patchPath = path }}
	_, _, err := New(Options{Runner: runner}).Validate(context.Background(), "diff\n", t.TempDir())
	require.NoError(t, err)
	require.NotEmpty(t, patchPath)
	_, statErr := os.Stat(patchPath)
	require.True(t, os.IsNotExist(statErr))
}

type recordingRunner struct {
	onApply func(path string)
}

func (r *recordingRunner) Run(_ context.Context, dir string, args ...string) ([]byte, error) {
	switch args[0] {
	case "rev-parse":
		return []byte(dir), nil
	case "apply":
		r.onApply(args[len(args)-1])
	}
	return nil, nil
}

func TestValidateWithGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	original := "line1\nline2\nline3\n"
	ops := []model.Operation{model.Modify{
		FilePath: "f.txt",
		Edits:    []model.LineEdit{{StartLine: 2, EndLine: 2, OldCode: "an anchor that is out of date", NewCode: "LINE_TWO"}},
	}}
	diff, err := encoder.Encode(ops, model.FileSnapshot{"f.txt": original})
	require.NoError(t, err)

	v := New(Options{})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte(original), 0o644))
	ok, msg, err := v.Validate(context.Background(), diff, dir)
	require.NoError(t, err)
	require.True(t, ok, msg)

	// The tree is now a repository; a second pass goes through restore.
	ok, msg, err = v.Validate(context.Background(), diff, dir)
	require.NoError(t, err)
	require.True(t, ok, msg)

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "f.txt"), []byte("alpha\nbeta\ngamma\n"), 0o644))
	ok, msg, err = v.Validate(context.Background(), diff, other)
	require.NoError(t, err)
	require.False(t, ok)
	require.NotEmpty(t, msg)
}

func TestValidateWithGitInsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	original := "line1\nline2\nline3\n"
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "f.txt"), []byte(original), 0o644))

	ctx := context.Background()
	git := GitRunner{}
	for _, args := range [][]string{{"init"}, {"add", "-A"}, baselineCommit} {
		out, err := git.Run(ctx, root, args...)
		require.NoError(t, err, string(out))
	}

	// A leftover from an earlier attempt.
	require.NoError(t, os.WriteFile(filepath.Join(sub, "f.txt"), []byte("junk\n"), 0o644))

	diff, err := encoder.Encode([]model.Operation{model.Modify{
		FilePath: "f.txt",
		Edits:    []model.LineEdit{{StartLine: 2, EndLine: 2, OldCode: "line2", NewCode: "LINE_TWO"}},
	}}, model.FileSnapshot{"f.txt": original})
	require.NoError(t, err)

	ok, msg, err := New(Options{}).Validate(ctx, diff, sub)
	require.NoError(t, err)
	require.True(t, ok, msg)

	_, statErr := os.Stat(filepath.Join(sub, ".git"))
	require.True(t, os.IsNotExist(statErr), "no repository is created inside an existing one")
	data, err := os.ReadFile(filepath.Join(sub, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, original, string(data))
}
