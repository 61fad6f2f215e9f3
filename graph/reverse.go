// ABOUTME: Lazily-built predecessor index over the compact graph
// ABOUTME: Answers "what retains node X" queries; the path finder's BFS walks forward edges instead

package graph

// predecessorIndex is a CSR-style reverse adjacency list: for node i,
// predStart[i]:predStart[i+1] is the slice of predEdge entries describing
// every edge that targets i. It mirrors the forward edgeStart/edge* arrays
// so it costs no more memory than the forward graph itself.
//
// Weak edges are omitted entirely — they never retain their target,
// so including them would only cost memory and never produce a shorter
// retention path.
type predecessorIndex struct {
	predStart []uint32
	predSrc   []NodeIndex
	predEdge  []EdgeIndex
}

// predecessors builds the index on first use and caches it on the graph.
// The sweep is O(E): one pass to count incoming edges per node, a prefix
// sum, and a second pass to place each entry — no per-node allocation.
func (g *CompactGraph) predecessors() *predecessorIndex {
	if g.pred != nil {
		return g.pred
	}

	n := g.NodeCount()
	counts := make([]uint32, n+1)
	for e := 0; e < g.EdgeCount(); e++ {
		if !g.edgeKind[e].RetainsTarget() {
			continue
		}
		counts[g.edgeDst[e]+1]++
	}
	for i := 0; i < n; i++ {
		counts[i+1] += counts[i]
	}

	predStart := counts
	cursor := make([]uint32, n)
	copy(cursor, predStart[:n])

	total := predStart[n]
	predSrc := make([]NodeIndex, total)
	predEdge := make([]EdgeIndex, total)

	for nodeIdx := 0; nodeIdx < n; nodeIdx++ {
		start, end := g.edgeStart[nodeIdx], g.edgeStart[nodeIdx+1]
		for e := start; e < end; e++ {
			if !g.edgeKind[e].RetainsTarget() {
				continue
			}
			dst := g.edgeDst[e]
			slot := cursor[dst]
			predSrc[slot] = NodeIndex(nodeIdx)
			predEdge[slot] = EdgeIndex(e)
			cursor[dst]++
		}
	}

	g.pred = &predecessorIndex{
		predStart: predStart,
		predSrc:   predSrc,
		predEdge:  predEdge,
	}
	return g.pred
}

// Predecessors returns, for node idx, the (source node, edge used) pairs of
// every retaining edge that targets it.
func (g *CompactGraph) Predecessors(idx NodeIndex) []PredRef {
	p := g.predecessors()
	start, end := p.predStart[idx], p.predStart[idx+1]
	refs := make([]PredRef, 0, end-start)
	for i := start; i < end; i++ {
		refs = append(refs, PredRef{Src: p.predSrc[i], Edge: p.predEdge[i]})
	}
	return refs
}

// PredRef is one incoming edge: the node it came from and which edge it was.
type PredRef struct {
	Src  NodeIndex
	Edge EdgeIndex
}
