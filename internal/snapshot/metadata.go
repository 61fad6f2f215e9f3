// ABOUTME: Parses and resolves the snapshot.meta schema section
// ABOUTME: Maps field names to positions so node/edge decoding never hardcodes offsets

package snapshot

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/prateek/v8lens/graph"
)

// fieldRole identifies what a node or edge field at a given position means,
// resolved once from snapshot.meta.{node,edge}_fields by name. Unrecognized
// field names resolve to fieldRoleSkip — read and discarded, never an error,
// because V8's snapshot schema grows fields across releases.
type fieldRole int

const (
	fieldRoleSkip fieldRole = iota
	fieldNodeType
	fieldNodeName
	fieldNodeID
	fieldNodeSelfSize
	fieldNodeEdgeCount
	fieldNodeTraceNodeID
	fieldNodeDetachedness
	fieldEdgeType
	fieldEdgeNameOrIndex
	fieldEdgeToNode
)

var nodeFieldRoles = map[string]fieldRole{
	"type":          fieldNodeType,
	"name":          fieldNodeName,
	"id":            fieldNodeID,
	"self_size":     fieldNodeSelfSize,
	"edge_count":    fieldNodeEdgeCount,
	"trace_node_id": fieldNodeTraceNodeID,
	"detachedness":  fieldNodeDetachedness,
}

var edgeFieldRoles = map[string]fieldRole{
	"type":          fieldEdgeType,
	"name_or_index": fieldEdgeNameOrIndex,
	"to_node":       fieldEdgeToNode,
}

// Metadata is the decoded snapshot.meta section: field layout, the two
// type enumerations, and the snapshot's declared (not necessarily
// accurate) node/edge counts.
type Metadata struct {
	NodeFields []string
	NodeKinds  []graph.NodeKind // node_types[0], resolved once

	EdgeFields []string
	EdgeKinds  []graph.EdgeKind // edge_types[0], resolved once

	DeclaredNodeCount int
	DeclaredEdgeCount int

	nodeRoles []fieldRole // len == len(NodeFields)
	edgeRoles []fieldRole // len == len(EdgeFields)
}

// NodeFieldCount is the width of one node-array window.
func (m *Metadata) NodeFieldCount() int { return len(m.NodeFields) }

// EdgeFieldCount is the width of one edge-array window.
func (m *Metadata) EdgeFieldCount() int { return len(m.EdgeFields) }

// rawMeta mirrors the JSON shape of snapshot.meta closely enough for
// jsoniter's reflection-based ReadVal; node_types/edge_types are decoded
// as []interface{} because only their first element (the node/edge kind
// enumeration) is structured data the rest are descriptive strings like
// "string" or "number" that this parser does not need.
type rawMeta struct {
	NodeFields []string      `json:"node_fields"`
	NodeTypes  []interface{} `json:"node_types"`
	EdgeFields []string      `json:"edge_fields"`
	EdgeTypes  []interface{} `json:"edge_types"`
	NodeCount  int           `json:"node_count"`
	EdgeCount  int           `json:"edge_count"`
}

func decodeMetadata(iter *jsoniter.Iterator) (*Metadata, error) {
	var raw rawMeta
	iter.ReadVal(&raw)
	if iter.Error != nil {
		return nil, wrapMalformed(iter.Error)
	}

	m := &Metadata{
		NodeFields:        raw.NodeFields,
		EdgeFields:        raw.EdgeFields,
		DeclaredNodeCount: raw.NodeCount,
		DeclaredEdgeCount: raw.EdgeCount,
	}

	m.NodeKinds = decodeKindEnum(raw.NodeTypes, graph.NodeKindFromName)
	m.EdgeKinds = decodeKindEnum(raw.EdgeTypes, graph.EdgeKindFromName)

	m.nodeRoles = make([]fieldRole, len(m.NodeFields))
	for i, name := range m.NodeFields {
		if role, ok := nodeFieldRoles[name]; ok {
			m.nodeRoles[i] = role
		} else {
			m.nodeRoles[i] = fieldRoleSkip
		}
	}

	m.edgeRoles = make([]fieldRole, len(m.EdgeFields))
	for i, name := range m.EdgeFields {
		if role, ok := edgeFieldRoles[name]; ok {
			m.edgeRoles[i] = role
		} else {
			m.edgeRoles[i] = fieldRoleSkip
		}
	}

	return m, nil
}

// decodeKindEnum extracts the first element of a *_types array (the list
// of kind names, e.g. ["hidden","array","string",...]) and resolves each
// name through fromName. If the first element isn't a string list, the
// enum is empty and every raw type value will resolve to "unknown" —
// deliberately lenient, matching the schema's forward-compatible contract.
func decodeKindEnum[K ~uint8](raw []interface{}, fromName func(string) K) []K {
	if len(raw) == 0 {
		return nil
	}
	names, ok := raw[0].([]interface{})
	if !ok {
		return nil
	}
	kinds := make([]K, len(names))
	for i, n := range names {
		if s, ok := n.(string); ok {
			kinds[i] = fromName(s)
		}
	}
	return kinds
}
