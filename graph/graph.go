// ABOUTME: Compact structure-of-arrays graph and its incremental builder
// ABOUTME: Provides O(1) random access to node attributes and edge slices

package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/prateek/v8lens/internal/stringtable"
)

var (
	// ErrSchemaMismatch means the declared field widths were inconsistent
	// with the node/edge arrays actually decoded.
	ErrSchemaMismatch = errors.New("graph: schema mismatch")

	// ErrDanglingEdge means an edge's destination resolved outside the
	// valid node index range after the to_node byte-offset conversion.
	ErrDanglingEdge = errors.New("graph: dangling edge")
)

// CompactGraph is the entire heap graph laid out as parallel arrays, one
// slot per node or edge. It is built once by a Builder and is read-only for
// the rest of a run — no component downstream of the builder mutates it,
// so no locking is needed.
//
// The column split keeps hot fields (Kind, edge ranges) dense and separate
// from cold ones (ID, TraceNodeID) so the duplicate analyzer's sweep over
// all nodes touches fewer cache lines than an array-of-structs layout
// would.
type CompactGraph struct {
	kind         []NodeKind
	nameIdx      []uint32
	id           []uint64
	selfSize     []uint32
	traceNodeID  []uint32
	detachedness []uint8
	edgeStart    []uint32 // len == NodeCount()+1, prefix sum

	edgeKind        []EdgeKind
	edgeNameOrIndex []uint32
	edgeDst         []NodeIndex

	strings *stringtable.Table

	// gcRoots is {0} ∪ destinations(out(0)), weak edges excluded — the
	// root-reachable starting set for retention path search.
	gcRoots []NodeIndex

	pred *predecessorIndex // built lazily, see reverse.go
}

// NodeCount returns the number of nodes in the graph.
func (g *CompactGraph) NodeCount() int { return len(g.kind) }

// EdgeCount returns the number of edges in the graph.
func (g *CompactGraph) EdgeCount() int { return len(g.edgeKind) }

// NodeKind returns the kind of the node at idx.
func (g *CompactGraph) NodeKind(idx NodeIndex) NodeKind { return g.kind[idx] }

// NodeNameIndex returns the string-table index naming the node at idx (the
// constructor/shape name for objects, the value for strings).
func (g *CompactGraph) NodeNameIndex(idx NodeIndex) uint32 { return g.nameIdx[idx] }

// NodeName resolves the node's name through the string table.
func (g *CompactGraph) NodeName(idx NodeIndex) string { return g.strings.Get(g.nameIdx[idx]) }

// NodeNameBytes resolves the node's name without allocating a string,
// for hot comparison paths in the duplicate analyzer.
func (g *CompactGraph) NodeNameBytes(idx NodeIndex) []byte { return g.strings.Bytes(g.nameIdx[idx]) }

// NodeID returns the snapshot's stable node id, used only for
// cross-reference in reports — never for array addressing.
func (g *CompactGraph) NodeID(idx NodeIndex) uint64 { return g.id[idx] }

// NodeSelfSize returns the node's own byte footprint, excluding children.
func (g *CompactGraph) NodeSelfSize(idx NodeIndex) uint32 { return g.selfSize[idx] }

// Edges returns the contiguous slice of edges owned by the node at idx.
func (g *CompactGraph) Edges(idx NodeIndex) []EdgeRef {
	start, end := g.edgeStart[idx], g.edgeStart[idx+1]
	refs := make([]EdgeRef, 0, end-start)
	for e := start; e < end; e++ {
		refs = append(refs, EdgeRef{
			Index:       EdgeIndex(e),
			Kind:        g.edgeKind[e],
			NameOrIndex: g.edgeNameOrIndex[e],
			Dst:         g.edgeDst[e],
		})
	}
	return refs
}

// EdgeRange returns the [start, end) edge index range owned by the node at
// idx, avoiding the EdgeRef allocation of Edges for callers that only need
// to walk the raw columns (the duplicate analyzer's hot path).
func (g *CompactGraph) EdgeRange(idx NodeIndex) (start, end EdgeIndex) {
	return EdgeIndex(g.edgeStart[idx]), EdgeIndex(g.edgeStart[idx+1])
}

// Edge returns the edge at e without going through Edges.
func (g *CompactGraph) Edge(e EdgeIndex) EdgeRef {
	return EdgeRef{
		Index:       e,
		Kind:        g.edgeKind[e],
		NameOrIndex: g.edgeNameOrIndex[e],
		Dst:         g.edgeDst[e],
	}
}

// EdgeName resolves a property/shortcut/internal edge's field name through
// the string table. Element edges carry an integer index instead and
// should use NameOrIndex directly.
func (g *CompactGraph) EdgeName(e EdgeIndex) string {
	return g.strings.Get(g.edgeNameOrIndex[e])
}

// GCRoots returns the root-reachable starting set for retention search:
// the synthetic root (index 0) and everything it directly points to over a
// non-weak edge.
func (g *CompactGraph) GCRoots() []NodeIndex { return g.gcRoots }

// String returns the decoded value of the string table at idx, used by
// callers (the CLI, tests) that already hold a raw string-table index, such
// as a node's NameIdx.
func (g *CompactGraph) String(idx uint32) string { return g.strings.Get(idx) }

// EdgeRef is a fully resolved view of one outgoing edge, returned by Edges.
type EdgeRef struct {
	Index       EdgeIndex
	Kind        EdgeKind
	NameOrIndex uint32
	Dst         NodeIndex
}

// Builder incrementally constructs a CompactGraph while the snapshot parser
// streams nodes and edges off the wire. Nodes and edges MUST be added in
// snapshot order: the parser emits the entire node array before the edge
// array, and Builder relies on this to compute edgeStart as a running
// prefix sum rather than a second pass.
type Builder struct {
	g *CompactGraph

	nextEdgeStart uint32
}

// NewBuilder creates a Builder around the given string table. The table may
// still be filling: the parser creates the builder as soon as snapshot.meta
// is read, and the `strings` section usually follows `nodes`/`edges`. The
// builder does not need per-string data until a caller resolves a name.
func NewBuilder(strings *stringtable.Table, nodeCountHint, edgeCountHint int) *Builder {
	g := &CompactGraph{
		kind:            make([]NodeKind, 0, nodeCountHint),
		nameIdx:         make([]uint32, 0, nodeCountHint),
		id:              make([]uint64, 0, nodeCountHint),
		selfSize:        make([]uint32, 0, nodeCountHint),
		traceNodeID:     make([]uint32, 0, nodeCountHint),
		detachedness:    make([]uint8, 0, nodeCountHint),
		edgeStart:       make([]uint32, 0, nodeCountHint+1),
		edgeKind:        make([]EdgeKind, 0, edgeCountHint),
		edgeNameOrIndex: make([]uint32, 0, edgeCountHint),
		edgeDst:         make([]NodeIndex, 0, edgeCountHint),
		strings:         strings,
	}
	return &Builder{g: g}
}

// DecodedNode is the parser's decoded view of one node-array window,
// already resolved against snapshot.meta's field order.
type DecodedNode struct {
	Kind         NodeKind
	NameIdx      uint32
	ID           uint64
	SelfSize     uint32
	EdgeCount    uint32
	TraceNodeID  uint32
	Detachedness uint8
}

// AddNode appends one decoded node and returns its assigned index.
func (b *Builder) AddNode(n DecodedNode) NodeIndex {
	idx := NodeIndex(len(b.g.kind))
	b.g.kind = append(b.g.kind, n.Kind)
	b.g.nameIdx = append(b.g.nameIdx, n.NameIdx)
	b.g.id = append(b.g.id, n.ID)
	b.g.selfSize = append(b.g.selfSize, n.SelfSize)
	b.g.traceNodeID = append(b.g.traceNodeID, n.TraceNodeID)
	b.g.detachedness = append(b.g.detachedness, n.Detachedness)

	b.g.edgeStart = append(b.g.edgeStart, b.nextEdgeStart)
	b.nextEdgeStart += n.EdgeCount

	return idx
}

// DecodedEdge is the parser's decoded view of one edge-array window. Dst
// has already been converted from a byte offset to a node index (dividing
// by the node field count).
type DecodedEdge struct {
	Kind        EdgeKind
	NameOrIndex uint32
	Dst         NodeIndex
}

// AddEdge appends one decoded edge. Edges must be added in the order node
// i's edges precede node i+1's, matching the snapshot's own layout; the
// builder does not reorder or validate source ownership, only records
// edgeStart as nodes are added.
func (b *Builder) AddEdge(e DecodedEdge) EdgeIndex {
	idx := EdgeIndex(len(b.g.edgeKind))
	b.g.edgeKind = append(b.g.edgeKind, e.Kind)
	b.g.edgeNameOrIndex = append(b.g.edgeNameOrIndex, e.NameOrIndex)
	b.g.edgeDst = append(b.g.edgeDst, e.Dst)
	return idx
}

// Finish closes out edgeStart's prefix sum, computes the GC-root starting
// set, and validates the structural invariants before handing back
// a read-only CompactGraph. The parser relies on these checks to reject
// malformed input: a node edge_count total that disagrees with the edges
// array fails with ErrSchemaMismatch, and a to_node outside the node range
// fails with ErrDanglingEdge.
func (b *Builder) Finish() (*CompactGraph, error) {
	g := b.g
	g.edgeStart = append(g.edgeStart, b.nextEdgeStart)

	if int(b.nextEdgeStart) != len(g.edgeKind) {
		return nil, fmt.Errorf("%w: edge_start total %d does not match %d edges actually added",
			ErrSchemaMismatch, b.nextEdgeStart, len(g.edgeKind))
	}
	for i := 0; i+1 < len(g.edgeStart); i++ {
		if g.edgeStart[i] > g.edgeStart[i+1] {
			return nil, fmt.Errorf("%w: edge_start not monotonic at node %d", ErrSchemaMismatch, i)
		}
	}
	for e, dst := range g.edgeDst {
		if int(dst) >= g.NodeCount() {
			owner := ownerOfEdge(g.edgeStart, EdgeIndex(e))
			return nil, fmt.Errorf("%w: edge %d owned by node %d targets out-of-range node %d (N=%d)",
				ErrDanglingEdge, e, owner, dst, g.NodeCount())
		}
	}

	if g.NodeCount() > 0 {
		g.gcRoots = append(g.gcRoots, 0)
		for _, e := range g.Edges(0) {
			if !e.Kind.RetainsTarget() {
				continue
			}
			g.gcRoots = append(g.gcRoots, e.Dst)
		}
	}

	return g, nil
}

// ownerOfEdge finds the node that owns edge e by binary-searching the
// edgeStart prefix sum, used only on the cold error-reporting path.
func ownerOfEdge(edgeStart []uint32, e EdgeIndex) NodeIndex {
	n := len(edgeStart) - 1
	idx := sort.Search(n, func(i int) bool { return edgeStart[i+1] > uint32(e) })
	return NodeIndex(idx)
}
