package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/v8lens/analysis"
	"github.com/prateek/v8lens/graph"
	"github.com/prateek/v8lens/internal/stringtable"
)

func buildFixture(t *testing.T) *graph.CompactGraph {
	t.Helper()
	strs := stringtable.New(0)
	empty := strs.Append("")
	name := strs.Append("Widget")
	prop := strs.Append("w")

	b := graph.NewBuilder(strs, 4, 3)
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindSynthetic, NameIdx: empty, EdgeCount: 3})
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: name, SelfSize: 16})
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: name, SelfSize: 16})
	b.AddNode(graph.DecodedNode{Kind: graph.NodeKindObject, NameIdx: name, SelfSize: 16})

	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: prop, Dst: 1})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: prop, Dst: 2})
	b.AddEdge(graph.DecodedEdge{Kind: graph.EdgeKindProperty, NameOrIndex: prop, Dst: 3})

	g, err := b.Finish()
	require.NoError(t, err)
	return g
}

func TestAssembleProducesSummaryAndPaths(t *testing.T) {
	g := buildFixture(t)
	dup := analysis.FindDuplicates(g, analysis.DefaultMaxRefinementRounds, true)
	hidden := analysis.FindHiddenClasses(g, analysis.DefaultShapeFanoutThreshold)

	r := Assemble(g, dup, hidden, Options{TopK: 10, MaxPathsPerGroup: 1})

	require.NotEmpty(t, r.RunID)
	assert.Equal(t, 4, r.Summary.TotalObjects)
	require.Len(t, r.DuplicateGroups, 1)
	assert.Equal(t, 3, r.DuplicateGroups[0].Count)
	assert.Equal(t, uint64(32), r.DuplicateGroups[0].TotalWasted)
	require.Len(t, r.DuplicateGroups[0].RetentionPaths, 1)
	assert.NotEmpty(t, r.DuplicateGroups[0].RetentionPaths[0])
	assert.Empty(t, r.Warnings)
}

func TestAssembleAcceptsZeroOptions(t *testing.T) {
	g := buildFixture(t)
	dup := analysis.FindDuplicates(g, analysis.DefaultMaxRefinementRounds, true)
	hidden := analysis.FindHiddenClasses(g, analysis.DefaultShapeFanoutThreshold)

	r := Assemble(g, dup, hidden, Options{TopK: 0, MaxPathsPerGroup: 0})
	assert.NotNil(t, r)
}
