// Package graph routes audio through a directed acyclic graph of
// processing blocks.
//
// A graph is assembled on a setup thread (Add, Connect, SetInput,
// SetOutput), then compiled by Prepare: the topology is validated and
// topologically sorted, every block is prepared in order, and per-node
// buffers are allocated. A successful Prepare freezes the structure;
// later structural calls return ErrFrozen. Prepare may be called again
// for a new sample rate or block size.
//
// Process executes the sorted nodes on the audio thread without
// allocating: each node's inputs are gathered from upstream buffers
// (fan-in is mixed with per-edge weights) and its block runs in place
// on the node buffer.
package graph
