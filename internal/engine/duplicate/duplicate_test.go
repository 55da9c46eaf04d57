package duplicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/engine/syntax"
)

const twoProcessors = `def process_a(data):
    cleaned = data.strip()
    parts = cleaned.split(',')
    count = len(parts)
    print(count)
    return count

def process_b(data):
    cleaned = data.strip()
    parts = cleaned.split(',')
    count = len(parts)
    print(count)
    return count * 2
`

func parse(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := syntax.Parse([]byte(src), syntax.ParseConfig{})
	require.NoError(t, err)
	return tree
}

func TestDetect_LongestWindowWins(t *testing.T) {
	tree := parse(t, twoProcessors)
	groups := Detect(tree, Options{})
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, 4, g.Size)
	require.Len(t, g.Occurrences, 2)
	assert.Equal(t, [][2]int{{2, 5}, {9, 12}}, g.Ranges())
	assert.NotZero(t, g.Hash)
}

func TestRun_ExtractsSharedHelper(t *testing.T) {
	tree := parse(t, twoProcessors)
	out := Run(tree, Options{Rewrite: true})
	require.Len(t, out, 1)
	assert.Equal(t, suggest.CategoryDuplicate, out[0].Category)
	assert.Equal(t, 2, out[0].Line)
	assert.Equal(t, "Found duplicate block of 4 statements at lines 2-5, 9-12; extracted into 'shared_strip'", out[0].Message)

	want := "def shared_strip(data):\n" +
		"    cleaned = data.strip()\n" +
		"    parts = cleaned.split(',')\n" +
		"    count = len(parts)\n" +
		"    print(count)\n" +
		"    return count\n" +
		"\n\n" +
		"def process_a(data):\n" +
		"    count = shared_strip(data)\n" +
		"    return count\n" +
		"\n\n" +
		"def process_b(data):\n" +
		"    count = shared_strip(data)\n" +
		"    return count * 2\n"
	assert.Equal(t, want, syntax.Print(tree))
}

func TestRun_ReportOnlyWithoutRewrite(t *testing.T) {
	tree := parse(t, twoProcessors)
	before := syntax.Print(tree)
	out := Run(tree, Options{})
	require.Len(t, out, 1)
	assert.Equal(t, "Found duplicate block of 4 statements at lines 2-5, 9-12", out[0].Message)
	assert.Equal(t, before, syntax.Print(tree))
}

func TestDetect_GroupsAreTransitive(t *testing.T) {
	src := "def f1(v):\n    w = v + 1\n    w = w * 2\n    print(w)\n\n" +
		"def f2(v):\n    w = v + 1\n    w = w * 2\n    print(w)\n\n" +
		"def f3(v):\n    w = v + 1\n    w = w * 2\n    print(w)\n"
	tree := parse(t, src)
	groups := Detect(tree, Options{})
	require.Len(t, groups, 1)
	assert.Equal(t, [][2]int{{2, 4}, {7, 9}, {12, 14}}, groups[0].Ranges())

	out := Run(tree, Options{Rewrite: true})
	require.Len(t, out, 1)
	assert.Equal(t, "Found duplicate block of 3 statements at lines 2-4, 7-9, 12-14; extracted into 'shared_block_1'", out[0].Message)
	text := syntax.Print(tree)
	assert.Contains(t, text, "def shared_block_1(v):\n    w = v + 1\n    w = w * 2\n    print(w)\n")
	assert.Contains(t, text, "def f3(v):\n    shared_block_1(v)\n")
}

func TestRun_DifferentNamesBecomeArguments(t *testing.T) {
	src := "def a(xs):\n    total = 0\n    for x in xs:\n        total += x\n    print(total)\n    return total\n\n" +
		"def b(ys):\n    acc = 0\n    for y in ys:\n        acc += y\n    print(acc)\n    return acc\n"
	tree := parse(t, src)
	out := Run(tree, Options{Rewrite: true})
	require.Len(t, out, 1)
	text := syntax.Print(tree)
	assert.Contains(t, text, "def shared_block_1(xs):\n    total = 0\n    for x in xs:\n")
	assert.Contains(t, text, "def a(xs):\n    return shared_block_1(xs)\n")
	assert.Contains(t, text, "def b(ys):\n    return shared_block_1(ys)\n")
}

func TestRun_UnhoistableStillReported(t *testing.T) {
	src := "def a(xs):\n    for x in xs:\n        if x:\n            return x\n    print(xs)\n    print(xs)\n\n" +
		"def b(xs):\n    for x in xs:\n        if x:\n            return x\n    print(xs)\n    print(xs)\n"
	tree := parse(t, src)
	before := syntax.Print(tree)
	out := Run(tree, Options{Rewrite: true})
	require.Len(t, out, 1)
	assert.NotContains(t, out[0].Message, "extracted")
	assert.Equal(t, before, syntax.Print(tree))
}

func TestDetect_IgnoresModuleLevelAndTrivialRuns(t *testing.T) {
	src := "x = 1\ny = 2\nz = 3\nx = 1\ny = 2\nz = 3\n\n" +
		"def f():\n    pass\n    pass\n    pass\n\n" +
		"def g():\n    pass\n    pass\n    pass\n"
	assert.Empty(t, Detect(parse(t, src), Options{}))
}

func TestDetect_LiteralsMustMatch(t *testing.T) {
	src := "def a(v):\n    w = v + 1\n    w = w * 2\n    print(w)\n\n" +
		"def b(v):\n    w = v + 1\n    w = w * 3\n    print(w)\n"
	assert.Empty(t, Detect(parse(t, src), Options{}))
}

func TestEncode_PlaceholdersFollowFirstAppearance(t *testing.T) {
	a := parse(t, "def f():\n    p = q + 1\n    q = p\n")
	b := parse(t, "def g():\n    m = n + 1\n    n = m\n")
	c := parse(t, "def h():\n    m = n + 1\n    m = n\n")
	body := func(tree *syntax.Tree) []syntax.NodeID {
		fn := tree.Children(tree.Body())[0]
		return tree.Children(tree.Child(fn, syntax.SlotFuncBody))
	}
	ca, na := encode(a, body(a))
	cb, nb := encode(b, body(b))
	cc, _ := encode(c, body(c))
	assert.Equal(t, ca, cb)
	assert.NotEqual(t, ca, cc)
	assert.Equal(t, []string{"p", "q"}, na)
	assert.Equal(t, []string{"m", "n"}, nb)
}
