package sim

// DecisionGate filters which parts may pass between its upstream and
// downstream. It holds no parts and adds no delay; a part the predicate
// rejects simply stays with the sender, which triggers routing rollback
// there.
type DecisionGate struct {
	FlowController
	shouldPass func(*Part) bool
}

// NewDecisionGate creates and registers a gate that forwards only parts for
// which shouldPass returns true.
func NewDecisionGate(sys *System, name string, shouldPass func(*Part) bool) *DecisionGate {
	if shouldPass == nil {
		panic("decision gate requires a shouldPass predicate")
	}
	g := &DecisionGate{shouldPass: shouldPass}
	sys.register(g, &g.node, name, "DecisionGate")
	return g
}

// GivePart forwards the part downstream iff the predicate admits it. The
// gate leaves no trace in the part's routing history.
func (g *DecisionGate) GivePart(p *Part) bool {
	if p == nil || g.blockInput || !g.shouldPass(p) {
		return false
	}
	return g.givePartHelper(p, false)
}
