package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/v8lens/graph"
	"github.com/prateek/v8lens/internal/stringtable"
)

func TestFindHiddenClassesAggregatesByConstructor(t *testing.T) {
	strs := stringtable.New(0)
	empty := strs.Append("")
	point := strs.Append("Point")
	x := strs.Append("x")
	y := strs.Append("y")
	z := strs.Append("z")

	b := graph.NewBuilder(strs, 8, 8)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindSynthetic, NameIdx: empty})                        // 0
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: point, EdgeCount: 2, SelfSize: 24}) // 1: {x,y}
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: point, EdgeCount: 2, SelfSize: 24}) // 2: {x,y}
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: point, EdgeCount: 3, SelfSize: 32}) // 3: {x,y,z}

	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: x, Dst: 0})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: y, Dst: 0})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: x, Dst: 0})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: y, Dst: 0})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: x, Dst: 0})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: y, Dst: 0})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: z, Dst: 0})

	g, err := b.Finish()
	require.NoError(t, err)

	groups := FindHiddenClasses(g, DefaultShapeFanoutThreshold)
	require.Len(t, groups, 1)
	assert.Equal(t, "Point", groups[0].ConstructorName)
	assert.Len(t, groups[0].Members, 3)
	assert.Equal(t, uint64(80), groups[0].TotalSize)
	assert.Equal(t, 2, groups[0].DistinctShapes)
	assert.False(t, groups[0].HighFanout)
}

func TestFindHiddenClassesFlagsHighFanout(t *testing.T) {
	strs := stringtable.New(0)
	empty := strs.Append("")
	ctor := strs.Append("Dynamic")

	b := graph.NewBuilder(strs, 20, 0)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindSynthetic, NameIdx: empty})
	for i := 0; i < 15; i++ {
		name := strs.Append(string(rune('a' + i)))
		b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: ctor, EdgeCount: 1, SelfSize: 16})
		b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: name, Dst: 0})
	}
	g, err := b.Finish()
	require.NoError(t, err)

	groups := FindHiddenClasses(g, 10)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].HighFanout)
	assert.Equal(t, 15, groups[0].DistinctShapes)
}
