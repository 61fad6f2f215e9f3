// ABOUTME: Color-refinement duplicate detection over the compact heap graph
// ABOUTME: Assigns every node a cycle-safe content hash, then groups by hash

package analysis

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/prateek/v8lens/graph"
)

// DefaultMaxRefinementRounds bounds color refinement when the caller does
// not configure a limit; refinement gives up on full stabilization past it.
const DefaultMaxRefinementRounds = 6

// DuplicateGroup is a set of nodes the refinement pass judged structurally
// equivalent.
type DuplicateGroup struct {
	Hash           uint64
	Representative graph.NodeIndex
	Members        []graph.NodeIndex
	Kind           graph.NodeKind
	Name           string
	SizePerObject  uint32
	TotalWasted    uint64
}

// DuplicateResult is the full output of one duplicate-analysis pass.
type DuplicateResult struct {
	Groups []DuplicateGroup

	// RoundsRun is how many refinement rounds actually executed.
	RoundsRun int

	// LimitHit is true when RoundsRun == the configured max without the
	// partition having stabilized; the caller should record an
	// AnalysisLimit warning.
	LimitHit bool
}

// FindDuplicates runs color refinement to a fixed point (or maxRounds,
// whichever comes first) and groups nodes by final hash. A group is
// reported only when it has two or more members and a nonzero self-size.
// Groups whose representative is a hidden-class/shape node (kind "hidden"
// or "object shape") are dropped unless includeHiddenClasses is set, per
// the duplicate analyzer's filtering contract: these nodes are V8's own
// internal bookkeeping, not application objects, and clutter the report
// for callers who only want application-level waste.
func FindDuplicates(g *graph.CompactGraph, maxRounds int, includeHiddenClasses bool) DuplicateResult {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRefinementRounds
	}

	n := g.NodeCount()
	hashes := make([]uint64, n)
	for i := 0; i < n; i++ {
		hashes[i] = initialHash(g, graph.NodeIndex(i))
	}

	// Each round folds a node's own previous color into its new one, so
	// classes can only split, never merge. The partition has stabilized
	// exactly when a round produces no new class — raw hash values keep
	// changing forever on cyclic graphs, so they cannot be compared
	// directly.
	distinct := countDistinct(hashes)
	rounds := 0
	stable := false
	next := make([]uint64, n)
	for rounds < maxRounds {
		refineRound(g, hashes, next)
		hashes, next = next, hashes
		rounds++
		d := countDistinct(hashes)
		if d == distinct {
			stable = true
			break
		}
		distinct = d
	}

	buckets := make(map[uint64][]graph.NodeIndex)
	for i := 0; i < n; i++ {
		h := hashes[i]
		buckets[h] = append(buckets[h], graph.NodeIndex(i))
	}

	var groups []DuplicateGroup
	for h, members := range buckets {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(a, b int) bool { return members[a] < members[b] })
		rep := members[0]
		size := g.NodeSelfSize(rep)
		if size == 0 {
			continue
		}
		kind := g.NodeKind(rep)
		if !includeHiddenClasses && (kind == graph.NodeKindHidden || kind == graph.NodeKindObjectShape) {
			continue
		}
		groups = append(groups, DuplicateGroup{
			Hash:           h,
			Representative: rep,
			Members:        members,
			Kind:           g.NodeKind(rep),
			Name:           g.NodeName(rep),
			SizePerObject:  size,
			TotalWasted:    uint64(len(members)-1) * uint64(size),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TotalWasted != groups[j].TotalWasted {
			return groups[i].TotalWasted > groups[j].TotalWasted
		}
		return g.NodeID(groups[i].Representative) < g.NodeID(groups[j].Representative)
	})

	return DuplicateResult{Groups: groups, RoundsRun: rounds, LimitHit: !stable}
}

// initialHash is a node's round-0 color: (kind, name_idx), plus its own
// string bytes when the node is a string, since two distinct string nodes
// with coincidentally equal name_idx values never actually happens (each
// string value is interned once in the string table) but hashing the bytes
// directly keeps the string case explicit and independent of string-table
// layout.
func initialHash(g *graph.CompactGraph, idx graph.NodeIndex) uint64 {
	h := xxhash.New()
	var buf [5]byte
	buf[0] = byte(g.NodeKind(idx))
	binary.LittleEndian.PutUint32(buf[1:5], g.NodeNameIndex(idx))
	h.Write(buf[:])
	if g.NodeKind(idx) == graph.NodeKindString {
		h.Write(g.NodeNameBytes(idx))
	}
	return h.Sum64()
}

// refineRound computes next[i] from prev (the previous round's colors) for
// every node. A container's new color hashes its own previous color plus
// the sorted sequence of participating edges; primitives and strings keep
// the color they were assigned at round 0, which already encodes
// everything their equivalence depends on.
func refineRound(g *graph.CompactGraph, prev, next []uint64) {
	n := g.NodeCount()

	type neighborKey struct {
		edgeKind    graph.EdgeKind
		nameOrIndex uint32
		prevHash    uint64
	}

	for i := 0; i < n; i++ {
		idx := graph.NodeIndex(i)
		if !g.NodeKind(idx).IsContainer() {
			next[i] = prev[i]
			continue
		}

		h := xxhash.New()
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], prev[i])
		h.Write(buf[:])

		start, end := g.EdgeRange(idx)
		neighbors := make([]neighborKey, 0, end-start)
		for e := start; e < end; e++ {
			ref := g.Edge(e)
			if !ref.Kind.ParticipatesInDuplicateShape() {
				continue
			}
			neighbors = append(neighbors, neighborKey{
				edgeKind:    ref.Kind,
				nameOrIndex: ref.NameOrIndex,
				prevHash:    prev[ref.Dst],
			})
		}
		sort.Slice(neighbors, func(a, b int) bool {
			if neighbors[a].edgeKind != neighbors[b].edgeKind {
				return neighbors[a].edgeKind < neighbors[b].edgeKind
			}
			return neighbors[a].nameOrIndex < neighbors[b].nameOrIndex
		})
		var nbuf [13]byte
		for _, nb := range neighbors {
			nbuf[0] = byte(nb.edgeKind)
			binary.LittleEndian.PutUint32(nbuf[1:5], nb.nameOrIndex)
			binary.LittleEndian.PutUint64(nbuf[5:13], nb.prevHash)
			h.Write(nbuf[:])
		}

		next[i] = h.Sum64()
	}
}

func countDistinct(hashes []uint64) int {
	seen := make(map[uint64]struct{}, len(hashes))
	for _, h := range hashes {
		seen[h] = struct{}{}
	}
	return len(seen)
}
