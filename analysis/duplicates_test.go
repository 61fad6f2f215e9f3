package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/v8lens/graph"
	"github.com/prateek/v8lens/internal/stringtable"
)

func buildDuplicateFixture(t *testing.T) *graph.CompactGraph {
	t.Helper()
	strs := stringtable.New(0)
	root := strs.Append("")
	hay := strs.Append("hay")
	point := strs.Append("Point")
	x := strs.Append("x")
	y := strs.Append("y")

	// root -> a, b, c; a,b,c are structurally identical Point{x,y} objects
	// whose leaves are equivalent (but not always the same) number nodes,
	// so grouping must go through the leaf equivalence class, not leaf
	// identity.
	b := graph.NewBuilder(strs, 8, 16)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindSynthetic, NameIdx: root, EdgeCount: 3})              // 0
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: point, EdgeCount: 2, SelfSize: 32}) // 1: a
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: point, EdgeCount: 2, SelfSize: 32}) // 2: b
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: point, EdgeCount: 2, SelfSize: 32}) // 3: c
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindNumber, NameIdx: hay, SelfSize: 8})                  // 4
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindNumber, NameIdx: hay, SelfSize: 8})                  // 5

	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: x, Dst: 1}) // root -> a
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: y, Dst: 2}) // root -> b
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: x, Dst: 3}) // root -> c

	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: x, Dst: 4})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: y, Dst: 4})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: x, Dst: 5})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: y, Dst: 5})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: x, Dst: 4})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: y, Dst: 5})

	g, err := b.Finish()
	require.NoError(t, err)
	return g
}

func TestFindDuplicatesGroupsIdenticalObjects(t *testing.T) {
	g := buildDuplicateFixture(t)
	result := FindDuplicates(g, DefaultMaxRefinementRounds, true)

	require.False(t, result.LimitHit)

	var pointGroup *DuplicateGroup
	for i := range result.Groups {
		if result.Groups[i].Kind == graph.NodeKindObject {
			pointGroup = &result.Groups[i]
		}
	}
	require.NotNil(t, pointGroup)
	assert.Len(t, pointGroup.Members, 3)
	assert.Equal(t, uint32(32), pointGroup.SizePerObject)
	assert.Equal(t, uint64(64), pointGroup.TotalWasted)
	assert.Equal(t, graph.NodeIndex(1), pointGroup.Representative)
}

func TestFindDuplicatesSkipsSingletons(t *testing.T) {
	strs := stringtable.New(0)
	empty := strs.Append("")
	b := graph.NewBuilder(strs, 2, 0)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindSynthetic, NameIdx: empty})
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: empty, SelfSize: 16})
	g, err := b.Finish()
	require.NoError(t, err)

	result := FindDuplicates(g, DefaultMaxRefinementRounds, true)
	assert.Empty(t, result.Groups)
}

func TestFindDuplicatesExcludesHiddenClassesByDefault(t *testing.T) {
	strs := stringtable.New(0)
	empty := strs.Append("")
	mapName := strs.Append("Map")

	b := graph.NewBuilder(strs, 4, 0)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindSynthetic, NameIdx: empty})
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindHidden, NameIdx: mapName, SelfSize: 24})
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindHidden, NameIdx: mapName, SelfSize: 24})
	g, err := b.Finish()
	require.NoError(t, err)

	excluded := FindDuplicates(g, DefaultMaxRefinementRounds, false)
	assert.Empty(t, excluded.Groups)

	included := FindDuplicates(g, DefaultMaxRefinementRounds, true)
	require.Len(t, included.Groups, 1)
	assert.Equal(t, graph.NodeKindHidden, included.Groups[0].Kind)
}

func TestFindDuplicatesGroupsIdenticalStrings(t *testing.T) {
	strs := stringtable.New(0)
	empty := strs.Append("")
	long := strs.Append("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")

	const count = 1000
	b := graph.NewBuilder(strs, count+1, count)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindArray, NameIdx: empty, EdgeCount: count})
	for i := 0; i < count; i++ {
		b.AddNode(graph.DecodedNode{Kind: graph.NodeKindString, NameIdx: long, SelfSize: 24})
		b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindElement, NameOrIndex: uint32(i), Dst: graph.NodeIndex(i + 1)})
	}
	g, err := b.Finish()
	require.NoError(t, err)

	result := FindDuplicates(g, DefaultMaxRefinementRounds, false)
	require.False(t, result.LimitHit)

	var stringGroup *DuplicateGroup
	for i := range result.Groups {
		if result.Groups[i].Kind == graph.NodeKindString {
			stringGroup = &result.Groups[i]
		}
	}
	require.NotNil(t, stringGroup)
	assert.Len(t, stringGroup.Members, count)
	assert.Equal(t, uint32(24), stringGroup.SizePerObject)
	assert.Equal(t, uint64((count-1)*24), stringGroup.TotalWasted)
}

func TestFindDuplicatesUnicodeStrings(t *testing.T) {
	strs := stringtable.New(0)
	empty := strs.Append("")
	values := []uint32{
		strs.Append("你好世界"),
		strs.Append("こんにちは"),
		strs.Append("🎉🎊🎈"),
		strs.Append("mixed 混合 text with émojis 🚀"),
	}

	const copies = 200
	total := copies * len(values)
	b := graph.NewBuilder(strs, total+1, total)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindArray, NameIdx: empty, EdgeCount: uint32(total)})
	next := graph.NodeIndex(1)
	for _, v := range values {
		for i := 0; i < copies; i++ {
			b.AddNode(graph.DecodedNode{Kind: graph.NodeKindString, NameIdx: v, SelfSize: 24})
			b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindElement, NameOrIndex: uint32(next - 1), Dst: next})
			next++
		}
	}
	g, err := b.Finish()
	require.NoError(t, err)

	result := FindDuplicates(g, DefaultMaxRefinementRounds, false)

	var stringGroups []DuplicateGroup
	for _, grp := range result.Groups {
		if grp.Kind == graph.NodeKindString {
			stringGroups = append(stringGroups, grp)
		}
	}
	require.Len(t, stringGroups, len(values))
	for _, grp := range stringGroups {
		assert.Len(t, grp.Members, copies)
	}
}

func TestFindDuplicatesIsDeterministic(t *testing.T) {
	g := buildDuplicateFixture(t)
	first := FindDuplicates(g, DefaultMaxRefinementRounds, true)
	second := FindDuplicates(g, DefaultMaxRefinementRounds, true)
	assert.Equal(t, first, second)
}

func TestFindDuplicatesHandlesCycles(t *testing.T) {
	strs := stringtable.New(0)
	empty := strs.Append("")
	nameA := strs.Append("A")
	child := strs.Append("child")
	parent := strs.Append("parent")

	b := graph.NewBuilder(strs, 6, 8)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindSynthetic, NameIdx: empty, EdgeCount: 2})           // 0: root
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: nameA, EdgeCount: 1, SelfSize: 16}) // 1: A
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: nameA, EdgeCount: 1, SelfSize: 16}) // 2: B (A.child)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: nameA, EdgeCount: 1, SelfSize: 16}) // 3: A'
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: nameA, EdgeCount: 1, SelfSize: 16}) // 4: B'

	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: nameA, Dst: 1})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: nameA, Dst: 3})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: child, Dst: 2})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: parent, Dst: 1})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: child, Dst: 4})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: parent, Dst: 3})

	g, err := b.Finish()
	require.NoError(t, err)

	result := FindDuplicates(g, DefaultMaxRefinementRounds, true)
	require.Len(t, result.Groups, 2)
}
