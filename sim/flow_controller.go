package sim

// node carries the identity, wiring access, and accounting shared by every
// flow device. Concrete devices embed it and register with a System via
// attach.
type node struct {
	id     NodeID
	name   string
	sys    *System
	self   Node // the embedding device, for dispatching protocol calls
	value  float64
	groups []*Group

	blockInput   bool
	waitingSince float64
	waiting      bool

	sorter DownstreamSorter
}

func (n *node) ID() NodeID { return n.id }
func (n *node) Name() string { return n.name }

// Value returns the node's accumulated value (negative for net cost).
func (n *node) Value() float64 { return n.value }

func (n *node) attach(sys *System, self Node, id NodeID) {
	n.sys = sys
	n.self = self
	n.id = id
	if n.sorter == nil {
		n.sorter = LongestWaitingFirst
	}
}

func (n *node) start() {}

func (n *node) env() *Environment { return n.sys.env }
func (n *node) graph() *Graph { return n.sys.graph }
func (n *node) record(category string, payload any) {
	n.sys.recorder.Record(category, n.name, payload)
}

func (n *node) acceptsUpstream() bool { return true }
func (n *node) acceptsDownstream() bool { return true }
func (n *node) memberGroups() []*Group { return n.groups }
func (n *node) joinGroup(g *Group) { n.groups = append(n.groups, g) }

// AddValue adds to the node's value and records the change.
func (n *node) AddValue(label string, delta float64) {
	n.value += delta
	n.record("value_change", valueChange{Label: label, Time: n.env().Now(), Delta: delta, NewValue: n.value})
}

// AddCost decreases the node's value and records the change.
func (n *node) AddCost(label string, cost float64) {
	n.AddValue(label, -cost)
}

type valueChange struct {
	Label    string
	Time     float64
	Delta    float64
	NewValue float64
}

// SetDownstreamSorter replaces the downstream priority policy for this node.
// Must be called before simulation starts to keep runs reproducible.
func (n *node) SetDownstreamSorter(s DownstreamSorter) {
	if s != nil {
		n.sorter = s
	}
}

// SetBlockInput manually blocks or unblocks part acceptance. Unblocking
// signals upstream so blocked senders retry.
func (n *node) SetBlockInput(blocked bool) {
	if n.blockInput == blocked {
		return
	}
	n.blockInput = blocked
	if !blocked && n.sys != nil {
		n.self.NotifyUpstreamOfAvailableSpace()
	}
}

// sortedDownstream returns this node's downstream candidates in priority
// order according to the configured sorter.
func (n *node) sortedDownstream() []Node {
	nodes := n.graph().downstreamNodes(n.id)
	n.sorter(nodes)
	return nodes
}

// setWaitingForPart maintains the lazily tracked waiting-since timestamp.
// Redundant "start waiting" calls are no-ops unless reset is true; accepting
// a part clears the marker immediately.
func (n *node) setWaitingForPart(isWaiting, reset bool) {
	if !isWaiting {
		n.waiting = false
		return
	}
	if n.waiting && !reset {
		return
	}
	if n.sys != nil {
		n.waiting = true
		n.waitingSince = n.env().Now()
	}
}

// notifyUpstream calls SpaceAvailableDownstream on every immediate upstream.
func (n *node) notifyUpstream() {
	for _, up := range n.graph().upstreamNodes(n.id) {
		up.SpaceAvailableDownstream()
	}
}

// FlowController is the base production-line device: it routes parts from
// upstream to downstream without holding them or adding delay. Parts offered
// to it are forwarded in the same call; if no downstream taker is found the
// part is refused and stays with the sender.
type FlowController struct {
	node
	inWaitQuery bool // guards reentrant waiting-time lookups through cycles
}

// NewFlowController creates and registers a pass-through routing device.
func NewFlowController(sys *System, name string) *FlowController {
	fc := &FlowController{}
	sys.register(fc, &fc.node, name, "FlowController")
	return fc
}

// WaitingForPartSince reports the earliest waiting time among immediate
// downstream nodes, because a FlowController holds no parts of its own.
func (fc *FlowController) WaitingForPartSince() (float64, bool) {
	if fc.inWaitQuery {
		return 0, false
	}
	fc.inWaitQuery = true
	defer func() { fc.inWaitQuery = false }()

	best := 0.0
	found := false
	for _, d := range fc.graph().downstreamNodes(fc.id) {
		if t, ok := d.WaitingForPartSince(); ok && (!found || t < best) {
			best = t
			found = true
		}
	}
	return best, found
}

// GivePart forwards the part to the highest-priority downstream taker. The
// node's identity is appended to the part's routing history before the
// forwarding attempt and rolled back if no taker is found.
func (fc *FlowController) GivePart(p *Part) bool {
	return fc.givePartHelper(p, true)
}

func (fc *FlowController) givePartHelper(p *Part, addHistory bool) bool {
	if !fc.canAcceptPart(p) {
		return false
	}
	if addHistory {
		p.addRoutingHistory(fc.id)
	}
	for _, dwn := range fc.sortedDownstream() {
		if dwn.GivePart(p) {
			return true
		}
	}
	if addHistory {
		p.removeLastRoutingHistory()
	}
	return false
}

func (fc *FlowController) canAcceptPart(p *Part) bool {
	return p != nil && !fc.blockInput
}

// SpaceAvailableDownstream relays the relief signal upstream; the controller
// itself never holds a part to retry.
func (fc *FlowController) SpaceAvailableDownstream() {
	fc.NotifyUpstreamOfAvailableSpace()
}

// NotifyUpstreamOfAvailableSpace tells every immediate upstream node that a
// part can now be accepted through this controller.
func (fc *FlowController) NotifyUpstreamOfAvailableSpace() {
	fc.notifyUpstream()
}
