package graph

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-va/dsp/block"
	"github.com/cwbudde/algo-va/dsp/core"
)

var (
	// ErrFrozen indicates structural mutation after a successful Prepare.
	ErrFrozen = errors.New("graph: structure frozen after Prepare")
	// ErrCycle indicates the connections contain a cycle.
	ErrCycle = errors.New("graph: contains cycle")
	// ErrUnknownNode indicates a reference to a node that was never added.
	ErrUnknownNode = errors.New("graph: unknown node")
	// ErrDuplicateNode indicates Add with a name already in use.
	ErrDuplicateNode = errors.New("graph: duplicate node")
	// ErrDuplicateEdge indicates Connect over an existing edge.
	ErrDuplicateEdge = errors.New("graph: duplicate edge")
	// ErrNilBlock indicates Add with a nil block.
	ErrNilBlock = errors.New("graph: nil block")
	// ErrEndpoints indicates a missing or invalid input/output designation.
	ErrEndpoints = errors.New("graph: input and output nodes must be set")
)

type edge struct {
	from   string
	weight float64
}

type node struct {
	name  string
	block block.Block
	ins   []edge

	buf   []float64
	srcs  [][]float64
	mixer *block.Mixer
}

// Graph is a DAG of named processing blocks with one input and one
// output node.
type Graph struct {
	nodes map[string]*node
	order []*node

	input  string
	output string

	prepared   bool
	sampleRate float64
	maxBlock   int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// NewChain builds a linear graph from blocks, connected in order, with
// the first block as input and the last as output.
func NewChain(blocks ...block.Block) (*Graph, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("graph: chain needs at least one block")
	}

	g := New()

	prev := ""

	for i, b := range blocks {
		name := fmt.Sprintf("stage%d", i)
		if err := g.Add(name, b); err != nil {
			return nil, err
		}

		if prev != "" {
			if err := g.Connect(prev, name); err != nil {
				return nil, err
			}
		}

		prev = name
	}

	if err := g.SetInput("stage0"); err != nil {
		return nil, err
	}

	return g, g.SetOutput(prev)
}

// Add registers a named block.
func (g *Graph) Add(name string, b block.Block) error {
	if g.prepared {
		return ErrFrozen
	}

	if name == "" {
		return fmt.Errorf("graph: empty node name")
	}

	if b == nil {
		return fmt.Errorf("%w: %q", ErrNilBlock, name)
	}

	if _, ok := g.nodes[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}

	g.nodes[name] = &node{name: name, block: b}

	return nil
}

// Connect adds a unit-weight edge from one node to another.
func (g *Graph) Connect(from, to string) error {
	return g.ConnectWeighted(from, to, 1)
}

// ConnectWeighted adds an edge whose signal is scaled by weight when
// mixed into the destination.
func (g *Graph) ConnectWeighted(from, to string, weight float64) error {
	if g.prepared {
		return ErrFrozen
	}

	if !core.IsFinite(weight) {
		return fmt.Errorf("graph: edge weight must be finite: %v", weight)
	}

	if from == to {
		return fmt.Errorf("%w: self edge %q", ErrCycle, from)
	}

	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, from)
	}

	dst, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, to)
	}

	for _, e := range dst.ins {
		if e.from == from {
			return fmt.Errorf("%w: %q -> %q", ErrDuplicateEdge, from, to)
		}
	}

	dst.ins = append(dst.ins, edge{from: from, weight: weight})

	return nil
}

// SetInput designates the node fed by the caller's buffer. It must
// have no incoming edges at Prepare time.
func (g *Graph) SetInput(name string) error {
	if g.prepared {
		return ErrFrozen
	}

	if _, ok := g.nodes[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}

	g.input = name

	return nil
}

// SetOutput designates the node whose buffer is returned to the caller.
func (g *Graph) SetOutput(name string) error {
	if g.prepared {
		return ErrFrozen
	}

	if _, ok := g.nodes[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}

	g.output = name

	return nil
}

// Prepared reports whether the graph is compiled and processable.
func (g *Graph) Prepared() bool { return g.prepared }

// Order returns the node names in execution order, or nil before Prepare.
func (g *Graph) Order() []string {
	if !g.prepared {
		return nil
	}

	names := make([]string, len(g.order))
	for i, n := range g.order {
		names[i] = n.name
	}

	return names
}

// Prepare validates the topology, sorts it, and prepares every block in
// execution order. It is all or nothing: on any failure the graph stays
// unprepared. Calling it again with the same rate and block size is a
// no-op; a different rate or size recompiles.
func (g *Graph) Prepare(sampleRate float64, maxBlockSize int) error {
	if g.prepared && sampleRate == g.sampleRate && maxBlockSize == g.maxBlock {
		return nil
	}

	g.prepared = false

	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return fmt.Errorf("graph: sample rate must be > 0 and finite: %f", sampleRate)
	}

	if maxBlockSize < 1 {
		return fmt.Errorf("graph: max block size must be >= 1: %d", maxBlockSize)
	}

	if g.input == "" || g.output == "" {
		return ErrEndpoints
	}

	if len(g.nodes[g.input].ins) > 0 {
		return fmt.Errorf("%w: input node %q has incoming edges", ErrEndpoints, g.input)
	}

	order, err := g.sort()
	if err != nil {
		return err
	}

	for _, n := range order {
		if err := n.block.Prepare(sampleRate, maxBlockSize); err != nil {
			return fmt.Errorf("graph: prepare %q: %w", n.name, err)
		}

		n.buf = core.EnsureLen(n.buf, maxBlockSize)

		if len(n.ins) > 1 {
			weights := make([]float64, len(n.ins))
			srcs := make([][]float64, len(n.ins))

			for i, e := range n.ins {
				weights[i] = e.weight
				srcs[i] = g.nodes[e.from].buf
			}

			mixer, err := block.NewMixer(weights...)
			if err != nil {
				return fmt.Errorf("graph: mix %q: %w", n.name, err)
			}

			if err := mixer.Prepare(sampleRate, maxBlockSize); err != nil {
				return fmt.Errorf("graph: mix %q: %w", n.name, err)
			}

			n.mixer = mixer
			n.srcs = srcs
		} else {
			n.mixer = nil
			n.srcs = nil
		}
	}

	g.order = order
	g.sampleRate = sampleRate
	g.maxBlock = maxBlockSize
	g.prepared = true

	return nil
}

// sort runs Kahn's algorithm over the node set.
func (g *Graph) sort() ([]*node, error) {
	indegree := make(map[string]int, len(g.nodes))
	outgoing := make(map[string][]string, len(g.nodes))

	for name := range g.nodes {
		indegree[name] = 0
	}

	for name, n := range g.nodes {
		indegree[name] = len(n.ins)
		for _, e := range n.ins {
			outgoing[e.from] = append(outgoing[e.from], name)
		}
	}

	queue := make([]string, 0, len(g.nodes))

	for name, d := range indegree {
		if d == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]*node, 0, len(g.nodes))

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		order = append(order, g.nodes[name])

		for _, next := range outgoing[name] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, ErrCycle
	}

	return order, nil
}

// Process runs buf through the graph in place. Before Prepare the
// buffer passes through untouched. A block longer than the prepared
// maximum is processed only up to that maximum.
func (g *Graph) Process(buf []float64) {
	if !g.prepared || len(buf) == 0 {
		return
	}

	n := len(buf)
	if n > g.maxBlock {
		n = g.maxBlock
	}

	for _, nd := range g.order {
		switch {
		case nd.name == g.input:
			copy(nd.buf[:n], buf[:n])

		case len(nd.ins) == 0:
			// Detached source node: runs on silence.
			core.Zero(nd.buf[:n])

		case len(nd.ins) == 1:
			e := nd.ins[0]
			copy(nd.buf[:n], g.nodes[e.from].buf[:n])

			if e.weight != 1 {
				for i := range n {
					nd.buf[i] *= e.weight
				}
			}

		default:
			nd.mixer.MixTo(nd.buf[:n], nd.srcs...)
		}

		nd.block.Process(nd.buf[:n])
	}

	copy(buf[:n], g.nodes[g.output].buf[:n])
}

// Reset clears the processing state of every block.
func (g *Graph) Reset() {
	for _, n := range g.nodes {
		n.block.Reset()
	}
}
