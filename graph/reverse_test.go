// ABOUTME: Tests for the lazily-built predecessor index
// ABOUTME: Validates reverse adjacency and that weak edges are excluded

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/v8lens/internal/stringtable"
)

func TestPredecessorsBasic(t *testing.T) {
	g := buildSample(t)

	preds := g.Predecessors(1)
	require.Len(t, preds, 1)
	assert.Equal(t, NodeIndex(0), preds[0].Src)

	preds = g.Predecessors(2)
	require.Len(t, preds, 1)
	assert.Equal(t, NodeIndex(1), preds[0].Src)

	assert.Empty(t, g.Predecessors(0))
}

func TestPredecessorsExcludeWeakEdges(t *testing.T) {
	strs := stringtable.New(0)
	empty := strs.Append("")

	b := NewBuilder(strs, 2, 2)
	b.AddNode(DecodedNode{Kind: NodeKindSynthetic, NameIdx: empty, EdgeCount: 2})
	b.AddNode(DecodedNode{Kind: NodeKindObject, NameIdx: empty, EdgeCount: 0})
	b.AddEdge(DecodedEdge{Kind: EdgeKindWeak, NameOrIndex: 0, Dst: 1})
	b.AddEdge(DecodedEdge{Kind: EdgeKindProperty, NameOrIndex: empty, Dst: 1})

	g, err := b.Finish()
	require.NoError(t, err)

	preds := g.Predecessors(1)
	require.Len(t, preds, 1)
	assert.Equal(t, EdgeKindProperty, g.Edge(preds[0].Edge).Kind)
}

func TestPredecessorIndexCached(t *testing.T) {
	g := buildSample(t)
	first := g.predecessors()
	second := g.predecessors()
	assert.Same(t, first, second)
}
