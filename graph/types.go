// ABOUTME: Core data types for the compact heap graph
// ABOUTME: Defines node/edge kinds and the index types used throughout

package graph

// NodeIndex identifies a node by its position in the compact graph's
// parallel arrays. It is NOT the snapshot's stable node id (see
// CompactGraph.NodeID) —
// indices are dense and assigned in node-array order, ids are whatever V8
// chose and are not necessarily contiguous.
type NodeIndex uint32

// EdgeIndex identifies an edge by its position in the compact graph's edge
// arrays.
type EdgeIndex uint32

// NodeKind mirrors V8's node-type enumeration, resolved from
// snapshot.meta.node_types[0] at parse time rather than hardcoded, since the
// numeric encoding is assigned per-snapshot.
type NodeKind uint8

const (
	NodeKindUnknown NodeKind = iota
	NodeKindHidden
	NodeKindArray
	NodeKindString
	NodeKindObject
	NodeKindCode
	NodeKindClosure
	NodeKindRegExp
	NodeKindNumber
	NodeKindNative
	NodeKindSynthetic
	NodeKindConcatenatedString
	NodeKindSlicedString
	NodeKindSymbol
	NodeKindBigInt
	NodeKindObjectShape
)

var nodeKindNames = map[string]NodeKind{
	"hidden":              NodeKindHidden,
	"array":               NodeKindArray,
	"string":              NodeKindString,
	"object":              NodeKindObject,
	"code":                NodeKindCode,
	"closure":             NodeKindClosure,
	"regexp":              NodeKindRegExp,
	"number":              NodeKindNumber,
	"native":              NodeKindNative,
	"synthetic":           NodeKindSynthetic,
	"concatenated string": NodeKindConcatenatedString,
	"sliced string":       NodeKindSlicedString,
	"symbol":              NodeKindSymbol,
	"bigint":              NodeKindBigInt,
	"object shape":        NodeKindObjectShape,
}

// NodeKindFromName resolves one entry of snapshot.meta.node_types[0] (a
// string like "object" or "concatenated string") to a NodeKind. Unknown
// names resolve to NodeKindUnknown rather than erroring, per the schema's
// forward-compatibility contract.
func NodeKindFromName(name string) NodeKind {
	if k, ok := nodeKindNames[name]; ok {
		return k
	}
	return NodeKindUnknown
}

func (k NodeKind) String() string {
	for name, kind := range nodeKindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// IsContainer reports whether nodes of this kind participate in the
// duplicate analyzer's structural (property/element edge) comparison
// rather than the simpler (kind, name) comparison used for primitives.
func (k NodeKind) IsContainer() bool {
	switch k {
	case NodeKindObject, NodeKindArray, NodeKindClosure, NodeKindSynthetic, NodeKindHidden:
		return true
	default:
		return false
	}
}

// EdgeKind mirrors V8's edge-type enumeration, resolved the same way as
// NodeKind.
type EdgeKind uint8

const (
	EdgeKindUnknown EdgeKind = iota
	EdgeKindContext
	EdgeKindElement
	EdgeKindProperty
	EdgeKindInternal
	EdgeKindHidden
	EdgeKindShortcut
	EdgeKindWeak
)

var edgeKindNames = map[string]EdgeKind{
	"context":  EdgeKindContext,
	"element":  EdgeKindElement,
	"property": EdgeKindProperty,
	"internal": EdgeKindInternal,
	"hidden":   EdgeKindHidden,
	"shortcut": EdgeKindShortcut,
	"weak":     EdgeKindWeak,
}

// EdgeKindFromName resolves one entry of snapshot.meta.edge_types[0].
func EdgeKindFromName(name string) EdgeKind {
	if k, ok := edgeKindNames[name]; ok {
		return k
	}
	return EdgeKindUnknown
}

func (k EdgeKind) String() string {
	for name, kind := range edgeKindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// RetainsTarget reports whether an edge of this kind is traversed by the
// retention path finder. Weak edges do not keep their target alive, so they
// are excluded.
func (k EdgeKind) RetainsTarget() bool {
	return k != EdgeKindWeak
}

// ParticipatesInDuplicateShape reports whether an edge of this kind is
// considered by the duplicate analyzer's structural comparison:
// only property and element edges define an object's shape for this
// purpose.
func (k EdgeKind) ParticipatesInDuplicateShape() bool {
	return k == EdgeKindProperty || k == EdgeKindElement
}
