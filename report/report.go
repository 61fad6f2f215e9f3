// ABOUTME: Assembles the logical report record from analyzer output
// ABOUTME: Picks top-K groups by impact and attaches retention paths

package report

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/prateek/v8lens/analysis"
	"github.com/prateek/v8lens/graph"
	"github.com/prateek/v8lens/paths"
)

// WarningKind classifies a non-fatal condition accumulated during a run.
type WarningKind string

const (
	WarningAnalysisLimit WarningKind = "analysis_limit"
	WarningUnreachable   WarningKind = "unreachable"
)

// Warning is one non-fatal condition surfaced in the final report rather
// than aborting the run.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Detail string      `json:"detail"`
}

// Summary is the top-level roll-up of a run.
type Summary struct {
	TotalObjects    int    `json:"total_objects"`
	DuplicateGroups int    `json:"duplicate_groups"`
	TotalWasted     uint64 `json:"total_wasted"`
}

// PathStep is one hop of a rendered retention path.
type PathStep struct {
	NodeName string `json:"node_name"`
	NodeType string `json:"node_type"`
	EdgeKind string `json:"edge_kind"`
	EdgeName string `json:"edge_label"`
}

// DuplicateEntry is one reported duplicate-object group.
type DuplicateEntry struct {
	ObjectType         string       `json:"object_type"`
	RepresentativeName string       `json:"representative_name"`
	Count              int          `json:"count"`
	SizePerObject      uint32       `json:"size_per_object"`
	TotalWasted        uint64       `json:"total_wasted"`
	RepresentativeID   uint64       `json:"representative_id"`
	NodeIDs            []uint64     `json:"node_ids"`
	RetentionPaths     [][]PathStep `json:"retention_paths"`
}

// HiddenClassEntry is one reported hidden-class group.
type HiddenClassEntry struct {
	ConstructorName string `json:"constructor_name"`
	TotalSize       uint64 `json:"total_size"`
	InstanceCount   int    `json:"instance_count"`
	DistinctShapes  int    `json:"distinct_shapes"`
	HighFanout      bool   `json:"high_fanout"`
}

// Report is the full logical output of a run, independent of rendering.
type Report struct {
	RunID             string             `json:"run_id"`
	Summary           Summary            `json:"summary"`
	DuplicateGroups   []DuplicateEntry   `json:"duplicate_groups"`
	HiddenClassGroups []HiddenClassEntry `json:"hidden_class_groups"`
	Warnings          []Warning          `json:"warnings"`
}

// Options configures report assembly.
type Options struct {
	TopK             int
	MaxPathsPerGroup int
}

// Assemble builds the final Report from analyzer output, querying the path
// finder once in a single batch for every representative node across both
// the duplicate and hidden-class top-K selections.
func Assemble(
	g *graph.CompactGraph,
	dup analysis.DuplicateResult,
	hidden []analysis.HiddenClassGroup,
	opts Options,
) *Report {
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}
	maxPaths := opts.MaxPathsPerGroup
	if maxPaths <= 0 {
		maxPaths = 1
	}

	dupGroups := dup.Groups
	if len(dupGroups) > topK {
		dupGroups = dupGroups[:topK]
	}
	hiddenGroups := hidden
	if len(hiddenGroups) > topK {
		hiddenGroups = hiddenGroups[:topK]
	}

	targets := make([]graph.NodeIndex, 0, len(dupGroups)+len(hiddenGroups))
	for _, dg := range dupGroups {
		targets = append(targets, dg.Representative)
	}
	for _, hg := range hiddenGroups {
		targets = append(targets, hg.Representative)
	}

	pathResults := paths.FindRetentionPaths(g, targets, maxPaths)
	pathByTarget := make(map[graph.NodeIndex]paths.TargetResult, len(pathResults))
	for _, r := range pathResults {
		pathByTarget[r.Target] = r
	}

	var warnings []Warning
	if dup.LimitHit {
		warnings = append(warnings, Warning{
			Kind:   WarningAnalysisLimit,
			Detail: "color refinement reached the round limit before the partition stabilized",
		})
	}

	// Summary totals cover every group found, not just the top-K slice
	// that gets fully rendered below.
	totalWasted := uint64(0)
	for _, dg := range dup.Groups {
		totalWasted += dg.TotalWasted
	}

	entries := make([]DuplicateEntry, 0, len(dupGroups))
	for _, dg := range dupGroups {
		entries = append(entries, DuplicateEntry{
			ObjectType:         dg.Kind.String(),
			RepresentativeName: dg.Name,
			Count:              len(dg.Members),
			SizePerObject:      dg.SizePerObject,
			TotalWasted:        dg.TotalWasted,
			RepresentativeID:   g.NodeID(dg.Representative),
			NodeIDs:            nodeIDs(g, dg.Members),
			RetentionPaths:     renderPaths(g, pathByTarget[dg.Representative], dg.Representative, &warnings),
		})
	}

	hiddenEntries := make([]HiddenClassEntry, 0, len(hiddenGroups))
	for _, hg := range hiddenGroups {
		hiddenEntries = append(hiddenEntries, HiddenClassEntry{
			ConstructorName: hg.ConstructorName,
			TotalSize:       hg.TotalSize,
			InstanceCount:   len(hg.Members),
			DistinctShapes:  hg.DistinctShapes,
			HighFanout:      hg.HighFanout,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalWasted != entries[j].TotalWasted {
			return entries[i].TotalWasted > entries[j].TotalWasted
		}
		return entries[i].RepresentativeID < entries[j].RepresentativeID
	})

	return &Report{
		RunID: uuid.NewString(),
		Summary: Summary{
			TotalObjects:    g.NodeCount(),
			DuplicateGroups: len(dup.Groups),
			TotalWasted:     totalWasted,
		},
		DuplicateGroups:   entries,
		HiddenClassGroups: hiddenEntries,
		Warnings:          warnings,
	}
}

func nodeIDs(g *graph.CompactGraph, members []graph.NodeIndex) []uint64 {
	ids := make([]uint64, len(members))
	for i, m := range members {
		ids[i] = g.NodeID(m)
	}
	return ids
}

func renderPaths(g *graph.CompactGraph, tr paths.TargetResult, target graph.NodeIndex, warnings *[]Warning) [][]PathStep {
	if tr.Unreachable {
		*warnings = append(*warnings, Warning{
			Kind:   WarningUnreachable,
			Detail: "no retention path found to node id " + strconv.FormatUint(g.NodeID(target), 10),
		})
		return nil
	}

	rendered := make([][]PathStep, 0, len(tr.Paths))
	for _, p := range tr.Paths {
		steps := make([]PathStep, 0, len(p))
		for i, step := range p {
			s := PathStep{
				NodeName: g.NodeName(step.Node),
				NodeType: g.NodeKind(step.Node).String(),
			}
			// The first step is a root-set entry; it was not reached over
			// any edge, so its edge fields stay empty.
			if i > 0 {
				s.EdgeKind = step.EdgeKind.String()
				s.EdgeName = edgeLabel(g, step)
			}
			steps = append(steps, s)
		}
		rendered = append(rendered, steps)
	}
	return rendered
}

func edgeLabel(g *graph.CompactGraph, step paths.Step) string {
	if step.EdgeKind == graph.EdgeKindElement {
		return strconv.FormatUint(uint64(step.NameOrIndex), 10)
	}
	return g.String(step.NameOrIndex)
}
