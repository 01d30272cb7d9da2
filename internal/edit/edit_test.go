package edit

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sokinpui/patchgen/internal/ui"
	"github.com/sokinpui/patchgen/model"
)

func silenceUI(t *testing.T) {
	t.Helper()
	prev := ui.SetOutput(io.Discard)
	t.Cleanup(func() { ui.SetOutput(prev) })
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lf untouched", "a\nb\n", "a\nb\n"},
		{"crlf", "a\r\nb\r\n", "a\nb\n"},
		{"lone cr", "a\rb\r", "a\nb\n"},
		{"mixed", "a\r\nb\rc\n", "a\nb\nc\n"},
		{"replacement char", "caf\uFFFDe\n", "cafe\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestNormalizeLineEndings(t *testing.T) {
	require.Equal(t, "a\nb\nc\n", NormalizeLineEndings("a\r\nb\rc\n"))
	require.Equal(t, "caf\uFFFDe\n", NormalizeLineEndings("caf\uFFFDe\r\n"), "only line endings change")
}

func TestSplitLines(t *testing.T) {
	require.Nil(t, SplitLines(""))
	require.Equal(t, []string{""}, SplitLines("\n"))
	require.Equal(t, []string{"a", "b"}, SplitLines("a\nb\n"))
	require.Equal(t, []string{"a", "b"}, SplitLines("a\nb"))
	require.Equal(t, []string{"a", ""}, SplitLines("a\n\n"))
}

func TestSameLines(t *testing.T) {
	require.True(t, SameLines([]string{"  x :=  1"}, []string{"\tx := 1"}))
	require.True(t, SameLines([]string{"a", ""}, []string{"a"}))
	require.False(t, SameLines([]string{"a"}, []string{"b"}))
	require.False(t, SameLines([]string{"a", "b"}, []string{"a"}))
}

func TestMerge(t *testing.T) {
	silenceUI(t)

	t.Run("modify edits are concatenated", func(t *testing.T) {
		ops := []model.Operation{
			model.Modify{FilePath: "b.txt", Edits: []model.LineEdit{{StartLine: 5, EndLine: 5}}},
			model.Create{FilePath: "a.txt", Content: "x\n"},
			model.Modify{FilePath: "b.txt", Edits: []model.LineEdit{{StartLine: 1, EndLine: 1}}},
		}
		merged, err := Merge(ops)
		require.NoError(t, err)
		require.Len(t, merged, 2)
		require.Equal(t, "a.txt", merged[0].Path())
		m, ok := merged[1].(model.Modify)
		require.True(t, ok)
		require.Len(t, m.Edits, 2)
		require.Equal(t, 5, m.Edits[0].StartLine)
		require.Equal(t, 1, m.Edits[1].StartLine)
	})

	t.Run("first create or delete wins", func(t *testing.T) {
		ops := []model.Operation{
			model.Delete{FilePath: "a.txt"},
			model.Modify{FilePath: "a.txt", Edits: []model.LineEdit{{StartLine: 1, EndLine: 1}}},
		}
		merged, err := Merge(ops)
		require.NoError(t, err)
		require.Equal(t, []model.Operation{model.Delete{FilePath: "a.txt"}}, merged)
	})

	t.Run("identical creates collapse", func(t *testing.T) {
		ops := []model.Operation{
			model.Create{FilePath: "a.txt", Content: "x\r\n"},
			model.Create{FilePath: "a.txt", Content: "x\n"},
		}
		merged, err := Merge(ops)
		require.NoError(t, err)
		require.Len(t, merged, 1)
	})

	t.Run("conflicting creates are a contract error", func(t *testing.T) {
		ops := []model.Operation{
			model.Create{FilePath: "a.txt", Content: "x\n"},
			model.Create{FilePath: "a.txt", Content: "y\n"},
		}
		_, err := Merge(ops)
		require.True(t, errors.Is(err, ErrConflictingCreate))
	})
}

func TestSorted(t *testing.T) {
	edits := []model.LineEdit{
		{StartLine: 9, NewCode: "nine"},
		{OldCode: model.AppendSentinel, NewCode: "tail"},
		{StartLine: 2, NewCode: "two-a"},
		{StartLine: 2, NewCode: "two-b"},
	}
	sorted := Sorted(edits)
	var got []string
	for _, e := range sorted {
		got = append(got, e.NewCode)
	}
	require.Equal(t, []string{"two-a", "two-b", "nine", "tail"}, got)
	require.Equal(t, "nine", edits[0].NewCode, "input must not be reordered")
}

func TestBufferSpan(t *testing.T) {
	b := NewBuffer("1\n2\n3\n4\n")

	pos, n := b.Span(model.LineEdit{StartLine: 2, EndLine: 3})
	require.Equal(t, 1, pos)
	require.Equal(t, 2, n)

	pos, n = b.Span(model.LineEdit{StartLine: 3, EndLine: 2})
	require.Equal(t, 2, pos)
	require.Equal(t, 0, n, "end before start is an insertion")

	pos, n = b.Span(model.LineEdit{StartLine: 40, EndLine: 41})
	require.Equal(t, 4, pos)
	require.Equal(t, 0, n, "start past the end clamps to append")

	pos, n = b.Span(model.LineEdit{StartLine: 3, EndLine: 10})
	require.Equal(t, 2, pos)
	require.Equal(t, 2, n, "range clamps to the end")

	b.Splice(0, 1, []string{"one", "uno"})
	require.Equal(t, 1, b.Offset())
	pos, _ = b.Span(model.LineEdit{StartLine: 3, EndLine: 3})
	require.Equal(t, 3, pos, "original line 3 moved down by the insertion")

	var origins []int
	for i := 0; i < b.Len(); i++ {
		origins = append(origins, b.Origin(i))
	}
	require.Equal(t, []int{-1, -1, 1, 2, 3}, origins)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		content string
		edits   []model.LineEdit
		want    string
	}{
		{
			name:    "replace one line",
			content: "line1\nline2\nline3\n",
			edits:   []model.LineEdit{{StartLine: 2, EndLine: 2, OldCode: "line2", NewCode: "LINE_TWO"}},
			want:    "line1\nLINE_TWO\nline3\n",
		},
		{
			name:    "edits are placed against original numbering",
			content: "a\nb\nc\nd\n",
			edits: []model.LineEdit{
				{StartLine: 4, EndLine: 4, NewCode: "D"},
				{StartLine: 1, EndLine: 1, NewCode: "A1\nA2\nA3"},
			},
			want: "A1\nA2\nA3\nb\nc\nD\n",
		},
		{
			name:    "deletion",
			content: "a\nb\nc\n",
			edits:   []model.LineEdit{{StartLine: 2, EndLine: 2, OldCode: "b"}},
			want:    "a\nc\n",
		},
		{
			name:    "append sentinel",
			content: "a\n",
			edits:   []model.LineEdit{{OldCode: model.AppendSentinel, NewCode: "b\nc\n"}},
			want:    "a\nb\nc\n",
		},
		{
			name:    "insertion before a line",
			content: "a\nc\n",
			edits:   []model.LineEdit{{StartLine: 2, EndLine: 1, NewCode: "b"}},
			want:    "a\nb\nc\n",
		},
		{
			name:    "missing trailing newline is kept",
			content: "a\nb",
			edits:   []model.LineEdit{{StartLine: 2, EndLine: 2, NewCode: "B"}},
			want:    "a\nB",
		},
		{
			name:    "crlf input is normalized",
			content: "a\r\nb\r\n",
			edits:   []model.LineEdit{{StartLine: 1, EndLine: 1, NewCode: "A\r\n"}},
			want:    "A\nb\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Apply(tt.content, tt.edits))
		})
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
	}{
		{"replace middle", "a\nb\nc\n", "a\nB\nc\n"},
		{"insert", "a\nc\n", "a\nb\nc\n"},
		{"delete", "a\nb\nc\n", "a\nc\n"},
		{"several regions", "1\n2\n3\n4\n5\n6\n", "0\n1\n3\n4\nfive\n6\n7\n"},
		{"from empty", "", "x\ny\n"},
		{"to empty", "x\ny\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edits := Derive(tt.old, tt.new)
			require.Equal(t, tt.new, Apply(tt.old, edits))
		})
	}

	t.Run("identical texts yield no edits", func(t *testing.T) {
		require.Empty(t, Derive("a\nb\n", "a\nb\n"))
	})
}
