package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/engine/syntax"
)

const arithmetic = "def f(a, b):\n    c = a + b\n    d = c * 2\n    e = d - a\n    return e\n"

func run(t *testing.T, src string, opts Options) (string, []suggest.Suggestion) {
	t.Helper()
	tree, err := syntax.Parse([]byte(src), syntax.ParseConfig{})
	require.NoError(t, err)
	out := Run(tree, opts)
	return syntax.Print(tree), out
}

func TestSize(t *testing.T) {
	tree, err := syntax.Parse([]byte("def g(xs):\n    for x in xs:\n        if x:\n            while x:\n                if x > 1:\n                    x -= 1\n    # done\n    return xs\n"), syntax.ParseConfig{})
	require.NoError(t, err)
	fn := tree.Children(tree.Body())[0]
	count, depth := Size(tree, tree.Child(fn, syntax.SlotFuncBody))
	assert.Equal(t, 6, count)
	assert.Equal(t, 5, depth)
}

func TestRun_ExtractsLongestRun(t *testing.T) {
	text, out := run(t, arithmetic, Options{MaxStatements: 3, Rewrite: true})
	want := "def extracted_helper_1(c, a):\n" +
		"    d = c * 2\n" +
		"    e = d - a\n" +
		"    return e\n" +
		"\n\n" +
		"def f(a, b):\n" +
		"    c = a + b\n" +
		"    return extracted_helper_1(c, a)\n"
	assert.Equal(t, want, text)
	require.Len(t, out, 1)
	assert.Equal(t, suggest.CategoryExtractMethod, out[0].Category)
	assert.Equal(t, 1, out[0].Line)
	assert.Equal(t, "Function 'f' is too complex (4 statements, depth 1); extracted lines 3-5 into 'extracted_helper_1'", out[0].Message)
}

func TestRun_ReportOnly(t *testing.T) {
	text, out := run(t, arithmetic, Options{MaxStatements: 3})
	assert.Equal(t, arithmetic, text)
	require.Len(t, out, 1)
	assert.Equal(t, "Function 'f' is too complex (4 statements, depth 1); lines 3-5 can become 'extracted_helper_1'", out[0].Message)
}

const longFunction = `def report(orders, tax, discount):
    total = 0
    for o in orders:
        total += o.price * o.qty
    t = total * tax
    d = total * discount
    net = total + t - d
    if net < 0:
        net = 0
    lines = []
    lines.append("total: %s" % total)
    lines.append("tax: %s" % t)
    lines.append("discount: %s" % d)
    lines.append("net: %s" % net)
    header = "report"
    body = "\n".join(lines)
    footer = "end"
    text = header + "\n" + body + "\n" + footer
    return text
`

func TestRun_ExtractionConverges(t *testing.T) {
	first, out := run(t, longFunction, Options{Rewrite: true})
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Message, "extracted lines 5-19 into '")

	tree, err := syntax.Parse([]byte(first), syntax.ParseConfig{})
	require.NoError(t, err)
	for _, fn := range tree.Children(tree.Body()) {
		count, depth := Size(tree, tree.Child(fn, syntax.SlotFuncBody))
		assert.LessOrEqual(t, count, DefaultMaxStatements, tree.Name(fn))
		assert.LessOrEqual(t, depth, DefaultMaxDepth, tree.Name(fn))
	}

	second, again := run(t, first, Options{Rewrite: true})
	assert.Empty(t, again)
	assert.Equal(t, first, second)
}

func TestRun_VerbNamesHelper(t *testing.T) {
	src := "def check(data, limit):\n    validate_input(data)\n    validate_range(data, limit)\n    print(data)\n    return data\n"
	text, out := run(t, src, Options{MaxStatements: 3, Rewrite: true})
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Message, "'validate_step'")
	assert.Contains(t, text, "def validate_step(data, limit):\n")
	assert.Contains(t, text, "def check(data, limit):\n    validate_step(data, limit)\n    return data\n")
}

func TestRun_InputLimit(t *testing.T) {
	text, out := run(t, arithmetic, Options{MaxStatements: 3, MaxInputs: 1, Rewrite: true})
	assert.Equal(t, arithmetic, text)
	require.Len(t, out, 1)
	assert.Equal(t, "Function 'f' is too complex (4 statements, depth 1); no extractable run found", out[0].Message)
}

func TestRun_DeepNestingWithoutRun(t *testing.T) {
	src := "def g(xs):\n    for x in xs:\n        if x:\n            while x:\n                if x > 1:\n                    x -= 1\n"
	_, out := run(t, src, Options{Rewrite: true})
	require.Len(t, out, 1)
	assert.Equal(t, "Function 'g' is too complex (5 statements, depth 5); no extractable run found", out[0].Message)
}

func TestRun_SmallFunctionsIgnored(t *testing.T) {
	text, out := run(t, arithmetic, Options{Rewrite: true})
	assert.Empty(t, out)
	assert.Equal(t, arithmetic, text)
}

func TestRun_MethodHelperTakesSelf(t *testing.T) {
	src := "class Account:\n    def settle(self, amount):\n        fee = amount * 2\n        net = amount - fee\n        self.balance = net\n        return self.balance\n"
	text, out := run(t, src, Options{MaxStatements: 3, Rewrite: true})
	require.Len(t, out, 1)
	assert.Contains(t, text, "def extracted_helper_1(amount, self):\n")
	assert.Contains(t, text, "        extracted_helper_1(amount, self)\n        return self.balance\n")
	assert.Less(t, strings.Index(text, "def extracted_helper_1"), strings.Index(text, "class Account:"))
}
