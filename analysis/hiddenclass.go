// ABOUTME: Hidden-class aggregation over object nodes
// ABOUTME: Groups by constructor name, tracking distinct property-edge shapes

package analysis

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/prateek/v8lens/graph"
)

// DefaultShapeFanoutThreshold is the distinct-shape count above which a
// constructor is flagged as a candidate for inline-cache thrash.
const DefaultShapeFanoutThreshold = 10

// HiddenClassGroup aggregates every object node sharing a constructor name,
// independent of how many distinct property shapes they actually have.
type HiddenClassGroup struct {
	ConstructorName string
	Representative  graph.NodeIndex
	Members         []graph.NodeIndex
	TotalSize       uint64
	DistinctShapes  int
	HighFanout      bool
}

// FindHiddenClasses walks every object-kind node, keys it by (constructor
// name, ordered property-edge name sequence), and rolls the per-shape
// counts up into one group per constructor name.
func FindHiddenClasses(g *graph.CompactGraph, shapeFanoutThreshold int) []HiddenClassGroup {
	if shapeFanoutThreshold <= 0 {
		shapeFanoutThreshold = DefaultShapeFanoutThreshold
	}

	type ctorState struct {
		members   []graph.NodeIndex
		totalSize uint64
		shapes    map[uint64]struct{}
	}
	byCtor := make(map[uint32]*ctorState)

	n := g.NodeCount()
	for i := 0; i < n; i++ {
		idx := graph.NodeIndex(i)
		if g.NodeKind(idx) != graph.NodeKindObject {
			continue
		}
		ctor := g.NodeNameIndex(idx)
		st, ok := byCtor[ctor]
		if !ok {
			st = &ctorState{shapes: make(map[uint64]struct{})}
			byCtor[ctor] = st
		}
		st.members = append(st.members, idx)
		st.totalSize += uint64(g.NodeSelfSize(idx))
		st.shapes[shapeKey(g, idx)] = struct{}{}
	}

	groups := make([]HiddenClassGroup, 0, len(byCtor))
	for ctor, st := range byCtor {
		sort.Slice(st.members, func(a, b int) bool { return st.members[a] < st.members[b] })
		distinct := len(st.shapes)
		groups = append(groups, HiddenClassGroup{
			ConstructorName: g.String(ctor),
			Representative:  st.members[0],
			Members:         st.members,
			TotalSize:       st.totalSize,
			DistinctShapes:  distinct,
			HighFanout:      distinct > shapeFanoutThreshold,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TotalSize != groups[j].TotalSize {
			return groups[i].TotalSize > groups[j].TotalSize
		}
		return groups[i].ConstructorName < groups[j].ConstructorName
	})

	return groups
}

// shapeKey hashes the ordered sequence of property-edge names owned by idx,
// used only to count distinct shapes — not exposed, since callers only need
// the count. Order is significant here and deliberately NOT sorted, unlike
// the duplicate analyzer's structural comparison: a hidden class is V8's
// record of property insertion order, so two objects with the same property
// names added in different orders are different shapes (see GLOSSARY).
func shapeKey(g *graph.CompactGraph, idx graph.NodeIndex) uint64 {
	start, end := g.EdgeRange(idx)
	names := make([]uint32, 0, end-start)
	for e := start; e < end; e++ {
		ref := g.Edge(e)
		if ref.Kind != graph.EdgeKindProperty {
			continue
		}
		names = append(names, ref.NameOrIndex)
	}

	h := xxhash.New()
	buf := make([]byte, 4)
	for _, nm := range names {
		buf[0] = byte(nm)
		buf[1] = byte(nm >> 8)
		buf[2] = byte(nm >> 16)
		buf[3] = byte(nm >> 24)
		h.Write(buf)
	}
	return h.Sum64()
}
