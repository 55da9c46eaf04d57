package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePatternPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Dot", input: ".", expected: ""},
		{name: "Trim", input: "  ./foo/bar.py  ", expected: "foo/bar.py"},
		{name: "Relative", input: "foo/../bar", expected: "bar"},
		{name: "Backslash", input: `pkg\mod.py`, expected: "pkg/mod.py"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, NormalizePatternPath(tc.input))
		})
	}
}

func TestIsPythonFile(t *testing.T) {
	assert.True(t, IsPythonFile("a/b.py"))
	assert.True(t, IsPythonFile("stub.PYI"))
	assert.False(t, IsPythonFile("notes.txt"))
	assert.False(t, IsPythonFile("py"))
}

func TestSortedStringKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedStringKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, SortedStringKeys(map[string]bool{}))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.py")
	require.NoError(t, WriteFileAtomic(path, []byte("x = 1\n"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("x = 2\n"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x = 2\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
