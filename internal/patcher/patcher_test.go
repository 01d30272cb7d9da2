package patcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sokinpui/patchgen/model"
)

func TestExtractPathFromDiff(t *testing.T) {
	diff := "--- a/src/main.go\n+++ b/src/main.go\t2024-01-01\n@@ -1 +1 @@\n-a\n+b\n"
	require.Equal(t, "src/main.go", ExtractPathFromDiff(diff))
	require.Equal(t, "", ExtractPathFromDiff("no diff here"))
}

func TestParse(t *testing.T) {
	diff := "diff --git a/x b/x\n" +
		"--- a/x\n" +
		"+++ b/x\n" +
		"@@ -1,2 +1,2 @@\n" +
		"-a\n" +
		"+A\n" +
		"\n" +
		"--- /dev/null\n" +
		"+++ b/y\n" +
		"@@ -0,0 +1 @@\n" +
		"+y\n" +
		"\\ No newline at end of file\n"

	files, err := Parse(diff)
	require.NoError(t, err)
	require.Len(t, files, 2)

	require.Equal(t, "x", files[0].Path())
	require.Len(t, files[0].Hunks, 1)
	require.Equal(t, []string{"-a", "+A", " "}, files[0].Hunks[0].Lines, "blank body line is context")

	require.True(t, files[1].IsCreate())
	require.Equal(t, 1, files[1].Hunks[0].NewCount, "omitted count means one")
	require.Equal(t, []string{"+y", `\ No newline at end of file`}, files[1].Hunks[0].Lines)
}

func TestParseRejectsShortHunk(t *testing.T) {
	_, err := Parse("--- a/x\n+++ b/x\n@@ -1,3 +1,3 @@\n a\n")
	require.True(t, errors.Is(err, ErrMalformed))
}

func TestApply(t *testing.T) {
	files, err := Parse("--- a/f\n+++ b/f\n@@ -1,3 +1,3 @@\n line1\n-line2\n+LINE_TWO\n line3\n")
	require.NoError(t, err)

	got, err := Apply("line1\nline2\nline3\n", files[0])
	require.NoError(t, err)
	require.Equal(t, "line1\nLINE_TWO\nline3\n", got)

	_, err = Apply("line1\nother\nline3\n", files[0])
	require.True(t, errors.Is(err, ErrContextMismatch))
}

func TestApplyNoNewlineAtEOF(t *testing.T) {
	diff := "--- a/f\n+++ b/f\n@@ -1,2 +1,2 @@\n a\n-b\n\\ No newline at end of file\n+B\n"
	files, err := Parse(diff)
	require.NoError(t, err)

	got, err := Apply("a\nb", files[0])
	require.NoError(t, err)
	require.Equal(t, "a\nB\n", got)

	_, err = Apply("a\nb\n", files[0])
	require.True(t, errors.Is(err, ErrContextMismatch), "file has a newline the hunk says is missing")
}

func TestApplyAll(t *testing.T) {
	originals := model.FileSnapshot{
		"keep.txt": "k\n",
		"gone.txt": "x\ny\n",
	}
	diff := "--- a/gone.txt\n+++ /dev/null\n@@ -1,2 +0,0 @@\n-x\n-y\n" +
		"\n" +
		"--- /dev/null\n+++ b/new.txt\n@@ -0,0 +1,2 @@\n+a\n+b\n"

	got, err := ApplyAll(diff, originals)
	require.NoError(t, err)
	require.Equal(t, model.FileSnapshot{"keep.txt": "k\n", "new.txt": "a\nb\n"}, got)
	require.Contains(t, originals, "gone.txt", "input snapshot is not modified")

	_, err = ApplyAll("--- /dev/null\n+++ b/keep.txt\n@@ -0,0 +1 @@\n+k\n", originals)
	require.Error(t, err)

	_, err = ApplyAll("--- a/gone.txt\n+++ /dev/null\n@@ -1 +0,0 @@\n-x\n", originals)
	require.True(t, errors.Is(err, ErrContextMismatch), "partial delete leaves lines behind")
}

func TestApplyFollowsGitMatchingRules(t *testing.T) {
	tests := []struct {
		name     string
		original string
		diff     string
		reason   string
	}{
		{
			name:     "hunks sharing a line",
			original: "a\nb\nc\nd\ne\n",
			diff: "--- a/f\n+++ b/f\n" +
				"@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n" +
				"@@ -3,3 +3,3 @@\n c\n-d\n+D\n e\n",
			reason: "already changed by an earlier hunk",
		},
		{
			name:     "missing trailing context away from the end",
			original: "a\nb\nc\n",
			diff:     "--- a/f\n+++ b/f\n@@ -1,2 +1,2 @@\n a\n-b\n+B\n",
			reason:   "end of the file",
		},
		{
			name:     "first-line hunk below the top",
			original: "a\nb\nc\n",
			diff:     "--- a/f\n+++ b/f\n@@ -1,2 +2,2 @@\n-b\n+B\n c\n",
			reason:   "start of the file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := Parse(tt.diff)
			require.NoError(t, err)
			_, err = Apply(tt.original, files[0])
			require.True(t, errors.Is(err, ErrContextMismatch), "got %v", err)
			require.Contains(t, err.Error(), tt.reason)
		})
	}

	t.Run("separate hunks", func(t *testing.T) {
		diff := "--- a/f\n+++ b/f\n" +
			"@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n" +
			"@@ -4,2 +4,2 @@\n-d\n+D\n e\n"
		files, err := Parse(diff)
		require.NoError(t, err)
		got, err := Apply("a\nb\nc\nd\ne\n", files[0])
		require.NoError(t, err)
		require.Equal(t, "a\nB\nc\nD\ne\n", got)
	})
}
