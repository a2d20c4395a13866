package sim

import (
	"fmt"
	"sort"
)

// Node is implemented by every device participating in part flow.
type Node interface {
	ID() NodeID
	Name() string

	// GivePart offers a part to this node. It returns true iff the node
	// accepted (and now owns) the part.
	GivePart(p *Part) bool

	// SpaceAvailableDownstream signals that an immediate downstream node
	// freed capacity; a node blocked trying to push a part schedules a retry
	// rather than retrying synchronously.
	SpaceAvailableDownstream()

	// NotifyUpstreamOfAvailableSpace informs every immediate upstream node
	// that this node can accept a part. Redundant notifications are
	// idempotent no-ops on the receiving side.
	NotifyUpstreamOfAvailableSpace()

	// WaitingForPartSince returns the time this node started waiting for a
	// part, and false if it is not waiting.
	WaitingForPartSince() (float64, bool)

	attach(sys *System, self Node, id NodeID)
	start()
	acceptsUpstream() bool
	acceptsDownstream() bool
	memberGroups() []*Group
	joinGroup(g *Group)
}

// Graph is the arena holding all flow nodes, addressed by stable NodeIDs.
// Upstream and downstream edges are stored as ID lists and are bidirectional
// by construction: every mutation goes through SetUpstream, which maintains
// both directions atomically.
type Graph struct {
	nodes      map[NodeID]Node
	order      []NodeID
	upstream   map[NodeID][]NodeID
	downstream map[NodeID][]NodeID
}

func newGraph() *Graph {
	return &Graph{
		nodes:      make(map[NodeID]Node),
		upstream:   make(map[NodeID][]NodeID),
		downstream: make(map[NodeID][]NodeID),
	}
}

func (g *Graph) add(id NodeID, n Node) {
	g.nodes[id] = n
	g.order = append(g.order, id)
}

// Node returns the node registered under id, or nil.
func (g *Graph) Node(id NodeID) Node {
	return g.nodes[id]
}

// Upstream returns the IDs of nodes that can pass parts to id.
func (g *Graph) Upstream(id NodeID) []NodeID {
	out := make([]NodeID, len(g.upstream[id]))
	copy(out, g.upstream[id])
	return out
}

// Downstream returns the IDs of nodes id can pass parts to.
func (g *Graph) Downstream(id NodeID) []NodeID {
	out := make([]NodeID, len(g.downstream[id]))
	copy(out, g.downstream[id])
	return out
}

// SetUpstream replaces the upstream set of n. The reverse downstream edges of
// the old upstream nodes are removed and those of the new ones added in the
// same mutation, so both directions never disagree.
//
// Wiring is validated first and rejected with ErrTopology before any edge
// changes: a node cannot be upstream of itself, a Sink (or any node that
// cannot have downstreams) cannot gain a downstream, a Source cannot gain an
// upstream, and edges may not cross group boundaries.
func (g *Graph) SetUpstream(n Node, ups []Node) error {
	id := n.ID()
	if g.nodes[id] == nil {
		return fmt.Errorf("%w: node %q is not registered", ErrTopology, n.Name())
	}
	if len(ups) > 0 && !n.acceptsUpstream() {
		return fmt.Errorf("%w: %q cannot have an upstream", ErrTopology, n.Name())
	}
	for _, up := range ups {
		if up == nil {
			return fmt.Errorf("%w: nil upstream for %q", ErrTopology, n.Name())
		}
		if up.ID() == id {
			return fmt.Errorf("%w: %q cannot be upstream of itself", ErrTopology, n.Name())
		}
		if g.nodes[up.ID()] == nil {
			return fmt.Errorf("%w: upstream %q is not registered", ErrTopology, up.Name())
		}
		if !up.acceptsDownstream() {
			return fmt.Errorf("%w: %q cannot have a downstream", ErrTopology, up.Name())
		}
		if !sameGroups(n.memberGroups(), up.memberGroups()) {
			return fmt.Errorf("%w: %q and %q are not members of the same groups", ErrTopology, n.Name(), up.Name())
		}
	}

	for _, old := range g.upstream[id] {
		g.removeDownstreamEdge(old, id)
	}
	g.upstream[id] = nil
	for _, up := range ups {
		g.upstream[id] = append(g.upstream[id], up.ID())
		g.downstream[up.ID()] = append(g.downstream[up.ID()], id)
	}
	return nil
}

func (g *Graph) removeDownstreamEdge(from, to NodeID) {
	edges := g.downstream[from]
	for i, d := range edges {
		if d == to {
			g.downstream[from] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

func (g *Graph) upstreamNodes(id NodeID) []Node {
	out := make([]Node, 0, len(g.upstream[id]))
	for _, u := range g.upstream[id] {
		out = append(out, g.nodes[u])
	}
	return out
}

func (g *Graph) downstreamNodes(id NodeID) []Node {
	out := make([]Node, 0, len(g.downstream[id]))
	for _, d := range g.downstream[id] {
		out = append(out, g.nodes[d])
	}
	return out
}

func sameGroups(a, b []*Group) bool {
	if len(a) != len(b) {
		return false
	}
	for _, ga := range a {
		found := false
		for _, gb := range b {
			if ga == gb {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DownstreamSorter orders candidate downstream nodes in place; earlier
// entries are offered parts first. Different experiments can plug in
// different fairness policies per node.
type DownstreamSorter func(nodes []Node)

// LongestWaitingFirst is the default downstream priority: nodes that have
// been waiting for a part the longest are tried first, nodes that are not
// waiting sort last. The sort is stable so arena wiring order breaks ties.
func LongestWaitingFirst(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		ti, wi := nodes[i].WaitingForPartSince()
		tj, wj := nodes[j].WaitingForPartSince()
		if wi != wj {
			return wi // waiting nodes before non-waiting ones
		}
		if !wi {
			return false
		}
		return ti < tj
	})
}
