package sim

import "fmt"

// Group makes one sub-graph of devices usable from multiple places in a
// production line. Parts enter through a GroupPath, flow through the shared
// devices, and exit back out of the same GroupPath they entered: each part
// carries an explicit stack of return addresses, so exit routing is a pure
// data lookup with no shared hidden state.
//
// Member devices may only be wired to other members; the group's entry and
// exit adapters are the sole border crossings.
type Group struct {
	sys     *System
	name    string
	members []Node
	input   *groupInput
	output  *groupOutput
	paths   []*GroupPath
}

// NewGroup creates a group around the given member devices. The first member
// receives entering parts and the last member feeds the exit. Members must
// not have edges to nodes outside the group.
func NewGroup(sys *System, name string, members []Node) (*Group, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: group %q needs at least one member device", ErrTopology, name)
	}
	inside := make(map[NodeID]bool, len(members))
	for _, m := range members {
		inside[m.ID()] = true
	}
	for _, m := range members {
		for _, d := range sys.graph.Downstream(m.ID()) {
			if !inside[d] {
				return nil, fmt.Errorf("%w: group member %q has a downstream outside the group", ErrTopology, m.Name())
			}
		}
		for _, u := range sys.graph.Upstream(m.ID()) {
			if !inside[u] {
				return nil, fmt.Errorf("%w: group member %q has an upstream outside the group", ErrTopology, m.Name())
			}
		}
	}

	g := &Group{sys: sys, name: name, members: members}
	for _, m := range members {
		m.joinGroup(g)
	}

	g.input = &groupInput{group: g}
	sys.register(g.input, &g.input.node, name+"_in", "GroupInput")
	g.input.joinGroup(g)

	g.output = &groupOutput{group: g}
	sys.register(g.output, &g.output.node, name+"_out", "GroupOutput")
	g.output.joinGroup(g)

	if err := sys.Connect(members[0], g.input); err != nil {
		return nil, err
	}
	if err := sys.Connect(g.output, members[len(members)-1]); err != nil {
		return nil, err
	}
	return g, nil
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// NewPath creates a GroupPath: a device standing in for the whole group at
// one location of the production line. Wire it like any other node.
func (g *Group) NewPath(name string) *GroupPath {
	p := &GroupPath{group: g}
	g.sys.register(p, &p.node, name, "GroupPath")
	g.paths = append(g.paths, p)
	return p
}

// GroupPath is one usage site of a shared device group. Parts given to the
// path are routed into the group with the path recorded as their return
// address; once they leave the group they continue into this path's
// downstream.
type GroupPath struct {
	node
	group       *Group
	inWaitQuery bool
}

// WaitingForPartSince reports the earliest waiting time among this path's
// downstream nodes, mirroring a pass-through device.
func (p *GroupPath) WaitingForPartSince() (float64, bool) {
	if p.inWaitQuery {
		return 0, false
	}
	p.inWaitQuery = true
	defer func() { p.inWaitQuery = false }()

	best := 0.0
	found := false
	for _, d := range p.graph().downstreamNodes(p.id) {
		if t, ok := d.WaitingForPartSince(); ok && (!found || t < best) {
			best = t
			found = true
		}
	}
	return best, found
}

// GivePart routes the part into the group, recording this path as its return
// address. Both the address and the routing-history entry are rolled back if
// the group cannot accept the part.
func (p *GroupPath) GivePart(part *Part) bool {
	if part == nil || p.blockInput {
		return false
	}
	part.addRoutingHistory(p.id)
	part.pushReturn(p.id)
	if p.group.input.forward(part) {
		return true
	}
	part.popReturn()
	part.removeLastRoutingHistory()
	return false
}

// SpaceAvailableDownstream fires when space frees up past this path's exit;
// the relief must reach the group's exit device so it can retry passing.
func (p *GroupPath) SpaceAvailableDownstream() {
	p.group.output.NotifyUpstreamOfAvailableSpace()
}

// NotifyUpstreamOfAvailableSpace relays the group's entry relief to this
// path's upstream nodes.
func (p *GroupPath) NotifyUpstreamOfAvailableSpace() {
	p.notifyUpstream()
}

// groupInput feeds entering parts to the group's first device and fans entry
// relief back out to every path's upstream.
type groupInput struct {
	FlowController
	group *Group
}

// forward offers the part to the group's entry device(s) without adding the
// adapter to the routing history.
func (gi *groupInput) forward(part *Part) bool {
	return gi.givePartHelper(part, false)
}

func (gi *groupInput) acceptsUpstream() bool { return false }

func (gi *groupInput) SpaceAvailableDownstream() {
	gi.NotifyUpstreamOfAvailableSpace()
}

func (gi *groupInput) NotifyUpstreamOfAvailableSpace() {
	for _, path := range gi.group.paths {
		path.NotifyUpstreamOfAvailableSpace()
	}
}

// groupOutput receives parts leaving the group and hands them to the
// downstream of the path each part entered through.
type groupOutput struct {
	node
	group *Group
}

func (o *groupOutput) acceptsDownstream() bool { return false }

// WaitingForPartSince reports the earliest waiting time beyond any path
// exit, so in-group devices see downstream demand.
func (o *groupOutput) WaitingForPartSince() (float64, bool) {
	best := 0.0
	found := false
	for _, path := range o.group.paths {
		if t, ok := path.WaitingForPartSince(); ok && (!found || t < best) {
			best = t
			found = true
		}
	}
	return best, found
}

// GivePart pops the part's return address and offers it to that path's
// downstream. The address is only consumed once a taker accepts.
func (o *groupOutput) GivePart(part *Part) bool {
	if part == nil {
		return false
	}
	pathID, ok := part.peekReturn()
	if !ok {
		violation(o.env(), o.id, "part %s leaving group %q has no return address", part.ID(), o.group.name)
	}
	path, isPath := o.graph().Node(pathID).(*GroupPath)
	if !isPath || path.group != o.group {
		violation(o.env(), o.id, "part %s carries return address %d that is not a path of group %q",
			part.ID(), pathID, o.group.name)
	}
	for _, dwn := range path.sortedDownstream() {
		if dwn.GivePart(part) {
			part.popReturn()
			return true
		}
	}
	return false
}

// SpaceAvailableDownstream is unused: relief flows in through the paths.
func (o *groupOutput) SpaceAvailableDownstream() {}

// NotifyUpstreamOfAvailableSpace signals the group's exit devices to retry.
func (o *groupOutput) NotifyUpstreamOfAvailableSpace() {
	o.notifyUpstream()
}
