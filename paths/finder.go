// ABOUTME: Multi-source BFS retention-path search from GC roots
// ABOUTME: Finds shortest (and optionally node-disjoint) paths to target nodes

package paths

import (
	"github.com/prateek/v8lens/graph"
)

// Step is one hop in a retention path: the node reached, and the edge used
// to reach it from its predecessor.
type Step struct {
	Node        graph.NodeIndex
	EdgeKind    graph.EdgeKind
	NameOrIndex uint32
}

// Path is an ordered list of steps from a root-reachable starting node to a
// target, inclusive of both endpoints.
type Path []Step

// TargetResult is the outcome of searching for one target node.
type TargetResult struct {
	Target      graph.NodeIndex
	Paths       []Path
	Unreachable bool
}

const unvisited = ^uint32(0)

// FindRetentionPaths returns, for every target, up to maxPaths shortest
// node-disjoint paths from the graph's GC-root starting set. maxPaths <= 1
// is treated as exactly one path per target.
func FindRetentionPaths(g *graph.CompactGraph, targets []graph.NodeIndex, maxPaths int) []TargetResult {
	if maxPaths < 1 {
		maxPaths = 1
	}

	results := make([]TargetResult, len(targets))
	excluded := make(map[graph.NodeIndex]bool)

	for round := 0; round < maxPaths; round++ {
		parentNode, parentEdge, reached := bfs(g, excluded, targets)

		anyFound := false
		for i, target := range targets {
			if _, ok := reached[target]; !ok {
				if round == 0 {
					results[i].Target = target
					results[i].Unreachable = true
				}
				continue
			}
			path := walkBack(g, target, parentNode, parentEdge)
			if round > 0 && len(path) == 1 {
				// The target is itself in the starting set; every later
				// round would only find this same one-node path again.
				continue
			}
			anyFound = true
			results[i].Target = target
			results[i].Unreachable = false
			results[i].Paths = append(results[i].Paths, path)

			// Exclude every node on this path except the target, so the
			// next round is forced through a different root entry and a
			// node-disjoint interior.
			for _, step := range path[:len(path)-1] {
				excluded[step.Node] = true
			}
		}
		if !anyFound {
			break
		}
	}

	return results
}

// bfs runs a multi-source breadth-first search from the graph's GC roots,
// skipping weak edges and any node in excluded, recording each visited
// node's parent (node + edge used) so shortest paths can be recovered by
// walking backward. The search stops early once every requested target has
// been reached.
func bfs(g *graph.CompactGraph, excluded map[graph.NodeIndex]bool, targets []graph.NodeIndex) (parentNode []graph.NodeIndex, parentEdge []graph.EdgeIndex, reached map[graph.NodeIndex]struct{}) {
	n := g.NodeCount()
	parentNode = make([]graph.NodeIndex, n)
	parentEdge = make([]graph.EdgeIndex, n)
	for i := range parentNode {
		parentNode[i] = graph.NodeIndex(unvisited)
	}
	reached = make(map[graph.NodeIndex]struct{})

	pending := make(map[graph.NodeIndex]bool, len(targets))
	for _, t := range targets {
		pending[t] = true
	}

	queue := make([]graph.NodeIndex, 0, len(g.GCRoots()))
	for _, root := range g.GCRoots() {
		if excluded[root] {
			continue
		}
		if _, ok := reached[root]; ok {
			continue
		}
		reached[root] = struct{}{}
		delete(pending, root)
		queue = append(queue, root)
	}

	for head := 0; head < len(queue) && len(pending) > 0; head++ {
		cur := queue[head]
		start, end := g.EdgeRange(cur)
		for e := start; e < end; e++ {
			ref := g.Edge(e)
			if !ref.Kind.RetainsTarget() {
				continue
			}
			if excluded[ref.Dst] {
				continue
			}
			if _, ok := reached[ref.Dst]; ok {
				continue
			}
			reached[ref.Dst] = struct{}{}
			delete(pending, ref.Dst)
			parentNode[ref.Dst] = cur
			parentEdge[ref.Dst] = e
			queue = append(queue, ref.Dst)
		}
	}

	return parentNode, parentEdge, reached
}

// walkBack reconstructs the path ending at target by following parent
// pointers back to a root (a node with no recorded parent), then reversing.
func walkBack(g *graph.CompactGraph, target graph.NodeIndex, parentNode []graph.NodeIndex, parentEdge []graph.EdgeIndex) Path {
	var steps []Step
	cur := target
	for {
		steps = append(steps, Step{Node: cur})
		p := parentNode[cur]
		if p == graph.NodeIndex(unvisited) {
			break
		}
		e := parentEdge[cur]
		ref := g.Edge(e)
		steps[len(steps)-1].EdgeKind = ref.Kind
		steps[len(steps)-1].NameOrIndex = ref.NameOrIndex
		cur = p
	}

	path := make(Path, len(steps))
	for i, s := range steps {
		path[len(steps)-1-i] = s
	}
	return path
}
