// ABOUTME: Streams a V8 heap snapshot JSON document into a CompactGraph
// ABOUTME: Never materializes the full document; honors snapshot.meta's field layout

package snapshot

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/prateek/v8lens/graph"
	"github.com/prateek/v8lens/internal/stringtable"
)

// progressInterval bounds how often Progress callbacks fire; the parser is
// driven by decode volume, not wall clock, so this caps callback overhead on
// a snapshot with hundreds of millions of nodes.
const progressInterval = 200 * time.Millisecond

// Progress reports parser advancement as record counts and elapsed time. It
// carries no count of bytes read.
type Progress struct {
	NodesDecoded  int64
	EdgesDecoded  int64
	StringsLoaded int64
	Elapsed       time.Duration
}

// Options configures a single Parse call.
type Options struct {
	// OnProgress, if set, is invoked at a bounded cadence while nodes,
	// edges, and strings stream in.
	OnProgress func(Progress)

	// OnWarning, if set, is invoked for non-fatal schema anomalies, such
	// as a declared node_count/edge_count that disagrees with what was
	// actually decoded.
	OnWarning func(string)
}

// Result bundles the parsed graph with the metadata that produced it, for
// callers that want to report the schema version/fields used.
type Result struct {
	Graph    *graph.CompactGraph
	Metadata *Metadata
}

// Parse streams r (transparently gunzipped if it starts with the gzip magic
// number) into a CompactGraph. r is read exactly once, front to back; no
// seeking is performed, which is what lets this run in bounded memory on a
// multi-gigabyte snapshot.
func Parse(r io.Reader, opts Options) (*Result, error) {
	br := bufio.NewReaderSize(r, 4<<20)

	reader, err := maybeGunzip(br)
	if err != nil {
		return nil, wrapIO(err)
	}

	iter := jsoniter.Parse(jsoniter.ConfigDefault, reader, 4<<20)

	p := &parseState{
		iter:     iter,
		opts:     opts,
		strings:  stringtable.New(0),
		start:    time.Now(),
		lastEmit: time.Now(),
	}

	return p.run()
}

func maybeGunzip(br *bufio.Reader) (io.Reader, error) {
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return gz, nil
	}
	return br, nil
}

type parseState struct {
	iter *jsoniter.Iterator
	opts Options

	meta    *Metadata
	strings *stringtable.Table
	builder *graph.Builder

	nodesSeen   int64
	edgesSeen   int64
	stringsSeen int64

	start    time.Time
	lastEmit time.Time
}

func (p *parseState) run() (*Result, error) {
	field := p.iter.ReadObject()
	if field == "" && p.iter.Error != nil && p.iter.Error != io.EOF {
		return nil, wrapMalformed(p.iter.Error)
	}

	for field != "" {
		var err error
		switch field {
		case "snapshot":
			err = p.readSnapshotSection()
		case "strings":
			err = p.readStrings()
		case "nodes":
			err = p.readNodes()
		case "edges":
			err = p.readEdges()
		default:
			p.iter.Skip()
		}
		if err != nil {
			return nil, err
		}
		field = p.iter.ReadObject()
	}
	if p.iter.Error != nil && p.iter.Error != io.EOF {
		return nil, wrapMalformed(p.iter.Error)
	}

	if p.meta == nil {
		return nil, fmt.Errorf("%w: missing snapshot.meta section", ErrMalformedInput)
	}
	if p.builder == nil {
		// The builder is created as soon as snapshot.meta is read, so a
		// document without a "nodes" key already reaches Finish as a
		// zero-node snapshot; this only guards a nil builder.
		p.builder = graph.NewBuilder(p.strings, 0, 0)
	}

	g, err := p.builder.Finish()
	if err != nil {
		return nil, err
	}

	p.checkDeclaredCounts()

	return &Result{Graph: g, Metadata: p.meta}, nil
}

func (p *parseState) readSnapshotSection() error {
	field := p.iter.ReadObject()
	for field != "" {
		if field == "meta" {
			meta, err := decodeMetadata(p.iter)
			if err != nil {
				return err
			}
			p.meta = meta
			p.builder = graph.NewBuilder(p.strings, meta.DeclaredNodeCount, meta.DeclaredEdgeCount)
		} else {
			p.iter.Skip()
		}
		field = p.iter.ReadObject()
	}
	if p.iter.Error != nil && p.iter.Error != io.EOF {
		return wrapMalformed(p.iter.Error)
	}
	return nil
}

func (p *parseState) readStrings() error {
	for p.iter.ReadArray() {
		s := p.iter.ReadString()
		p.strings.Append(s)
		p.stringsSeen++
		p.maybeEmitProgress()
	}
	if p.iter.Error != nil && p.iter.Error != io.EOF {
		return wrapMalformed(p.iter.Error)
	}
	return nil
}

func (p *parseState) readNodes() error {
	if p.meta == nil {
		return fmt.Errorf("%w: nodes array encountered before snapshot.meta", ErrMalformedInput)
	}
	width := p.meta.NodeFieldCount()
	if width == 0 {
		return fmt.Errorf("%w: snapshot.meta declared zero node fields", graph.ErrSchemaMismatch)
	}

	window := make([]uint64, 0, width)
	for p.iter.ReadArray() {
		v := p.iter.ReadUint64()
		window = append(window, v)
		if len(window) == width {
			node, err := p.decodeNode(window)
			if err != nil {
				return err
			}
			p.builder.AddNode(node)
			p.nodesSeen++
			window = window[:0]
			p.maybeEmitProgress()
		}
	}
	if p.iter.Error != nil && p.iter.Error != io.EOF {
		return wrapMalformed(p.iter.Error)
	}
	if len(window) != 0 {
		return fmt.Errorf("%w: nodes array length is not a multiple of node_fields width %d",
			graph.ErrSchemaMismatch, width)
	}
	return nil
}

func (p *parseState) readEdges() error {
	if p.meta == nil {
		return fmt.Errorf("%w: edges array encountered before snapshot.meta", ErrMalformedInput)
	}
	width := p.meta.EdgeFieldCount()
	if width == 0 {
		return fmt.Errorf("%w: snapshot.meta declared zero edge fields", graph.ErrSchemaMismatch)
	}

	window := make([]uint64, 0, width)
	for p.iter.ReadArray() {
		v := p.iter.ReadUint64()
		window = append(window, v)
		if len(window) == width {
			edge := p.decodeEdge(window)
			p.builder.AddEdge(edge)
			p.edgesSeen++
			window = window[:0]
			p.maybeEmitProgress()
		}
	}
	if p.iter.Error != nil && p.iter.Error != io.EOF {
		return wrapMalformed(p.iter.Error)
	}
	if len(window) != 0 {
		return fmt.Errorf("%w: edges array length is not a multiple of edge_fields width %d",
			graph.ErrSchemaMismatch, width)
	}
	return nil
}

func (p *parseState) decodeNode(window []uint64) (graph.DecodedNode, error) {
	var n graph.DecodedNode
	for i, role := range p.meta.nodeRoles {
		raw := window[i]
		switch role {
		case fieldNodeType:
			if int(raw) < len(p.meta.NodeKinds) {
				n.Kind = p.meta.NodeKinds[raw]
			}
		case fieldNodeName:
			n.NameIdx = uint32(raw)
		case fieldNodeID:
			n.ID = raw
		case fieldNodeSelfSize:
			n.SelfSize = uint32(raw)
		case fieldNodeEdgeCount:
			n.EdgeCount = uint32(raw)
		case fieldNodeTraceNodeID:
			n.TraceNodeID = uint32(raw)
		case fieldNodeDetachedness:
			n.Detachedness = uint8(raw)
		case fieldRoleSkip:
			// intentionally discarded
		}
	}
	return n, nil
}

func (p *parseState) decodeEdge(window []uint64) graph.DecodedEdge {
	var e graph.DecodedEdge
	for i, role := range p.meta.edgeRoles {
		raw := window[i]
		switch role {
		case fieldEdgeType:
			if int(raw) < len(p.meta.EdgeKinds) {
				e.Kind = p.meta.EdgeKinds[raw]
			}
		case fieldEdgeNameOrIndex:
			e.NameOrIndex = uint32(raw)
		case fieldEdgeToNode:
			// to_node is a BYTE OFFSET into the flat nodes array, not a
			// node index — divide by the node field count.
			e.Dst = graph.NodeIndex(raw / uint64(p.meta.NodeFieldCount()))
		case fieldRoleSkip:
			// intentionally discarded
		}
	}
	return e
}

func (p *parseState) maybeEmitProgress() {
	if p.opts.OnProgress == nil {
		return
	}
	now := time.Now()
	if now.Sub(p.lastEmit) < progressInterval {
		return
	}
	p.lastEmit = now
	p.opts.OnProgress(Progress{
		NodesDecoded:  p.nodesSeen,
		EdgesDecoded:  p.edgesSeen,
		StringsLoaded: p.stringsSeen,
		Elapsed:       now.Sub(p.start),
	})
}

func (p *parseState) checkDeclaredCounts() {
	if p.opts.OnWarning == nil {
		return
	}
	if p.meta.DeclaredNodeCount > 0 && int64(p.meta.DeclaredNodeCount) != p.nodesSeen {
		p.opts.OnWarning(fmt.Sprintf(
			"declared node_count %d does not match %d nodes actually decoded",
			p.meta.DeclaredNodeCount, p.nodesSeen))
	}
	if p.meta.DeclaredEdgeCount > 0 && int64(p.meta.DeclaredEdgeCount) != p.edgesSeen {
		p.opts.OnWarning(fmt.Sprintf(
			"declared edge_count %d does not match %d edges actually decoded",
			p.meta.DeclaredEdgeCount, p.edgesSeen))
	}
}
