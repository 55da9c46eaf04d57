package syntax

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_ReplaceRangeReparents(t *testing.T) {
	tree := mustParse(t, "a = 1\nb = 2\nc = 3\n")
	body := tree.Body()
	stmts := append([]NodeID(nil), tree.Children(body)...)

	p := Pos{Line: 2, Column: 1}
	pass := tree.New(KindPass, p)
	tree.ReplaceRange(body, 1, 2, pass)

	assert.Equal(t, []NodeID{stmts[0], pass, stmts[2]}, tree.Children(body))
	assert.Equal(t, body, tree.Parent(pass))
	assert.Equal(t, Nil, tree.Parent(stmts[1]))
	assert.False(t, tree.Attached(stmts[1]))
	assert.Equal(t, "a = 1\npass\nc = 3\n", Print(tree))
}

func TestTree_AdoptPanicsOnSecondParent(t *testing.T) {
	tree := mustParse(t, "a = 1\n")
	stmt := tree.Children(tree.Body())[0]
	assert.Panics(t, func() {
		tree.New(KindBlock, Pos{}, stmt)
	})
}

func TestTree_CloneIsDetachedDeepCopy(t *testing.T) {
	tree := mustParse(t, "if x:\n    y = x + 1\n")
	stmt := tree.Children(tree.Body())[0]

	cp := tree.Clone(stmt)
	assert.Equal(t, Nil, tree.Parent(cp))
	assert.True(t, Equal(tree, stmt, tree, cp))

	tree.Node(tree.Child(cp, SlotTest)).Name = "z"
	assert.Equal(t, "x", tree.Name(tree.Child(stmt, SlotTest)))
}

func TestTree_CopyKeepsIDs(t *testing.T) {
	tree := mustParse(t, "def f(a):\n    return a\n")
	cp := tree.Copy()
	require.Equal(t, tree.Len(), cp.Len())

	fn := tree.Children(tree.Body())[0]
	cp.Node(fn).Name = "g"
	assert.Equal(t, "f", tree.Name(fn))
	assert.Equal(t, "def g(a):\n    return a\n", Print(cp))
	assert.Equal(t, "def f(a):\n    return a\n", Print(tree))
}

func TestTree_EnclosingHelpers(t *testing.T) {
	tree := mustParse(t, "def f(a):\n    if a:\n        return a + 1\n")
	fn := tree.Children(tree.Body())[0]
	var plus NodeID = Nil
	tree.Inspect(tree.Root, func(id NodeID) bool {
		if tree.Kind(id) == KindBinOp {
			plus = id
		}
		return true
	})
	require.NotEqual(t, Nil, plus)
	assert.Equal(t, fn, tree.EnclosingFunction(plus))
	assert.Equal(t, KindReturn, tree.Kind(tree.EnclosingStatement(plus)))
	assert.True(t, tree.Contains(fn, plus))
	assert.True(t, tree.Mentions(fn, "a"))
	assert.False(t, tree.Mentions(fn, "b"))
}

func TestTree_Pure(t *testing.T) {
	tree := mustParse(t, "a = x + 1\nb = f(x)\nc = o.attr\nd = f'{x}'\ne = -x if y else 0\n")
	want := []bool{true, false, false, false, true}
	for i, stmt := range tree.Children(tree.Body()) {
		assert.Equal(t, want[i], tree.Pure(tree.Child(stmt, SlotValue)), "statement %d", i)
	}
}

func TestIdentifiers(t *testing.T) {
	assert.Equal(t, []string{"from", "os", "import", "path"}, Identifiers("from os import path"))
	assert.Equal(t, []string{"x", "y2"}, Identifiers("x + 10 * y2 + 3e5"))
	assert.True(t, HasToken("global counter", "counter"))
	assert.False(t, HasToken("cost = 1", "os"))
	assert.True(t, IsFString(`f"{name}"`))
	assert.True(t, IsFString(`rf'{name}'`))
	assert.False(t, IsFString(`"plain"`))
	assert.True(t, IsReserved("len"))
	assert.True(t, IsReserved("lambda"))
	assert.False(t, IsReserved("index"))
}

func TestParserPool_GetPut(t *testing.T) {
	pool := NewParserPool(PythonLanguage())

	sp := pool.Get()
	require.NotNil(t, sp)
	assert.Equal(t, 1, pool.Stats())
	pool.Put(sp)
	assert.Equal(t, 0, pool.Stats())

	pool.Put(nil)
}

func TestParserPool_ConcurrentParses(t *testing.T) {
	pool := NewParserPool(PythonLanguage())
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ParseWithPool(pool, []byte("for i in range(3):\n    print(i)\n"), ParseConfig{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("parse failed: %v", err)
	}
	assert.Equal(t, 0, pool.Stats())
}
