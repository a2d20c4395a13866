package sim

import (
	"fmt"

	"github.com/google/uuid"
)

// Part is an item moving between devices in a production network. It carries
// an identity, a value accumulator, a quality scalar, and an append-only
// routing history of the nodes it has visited.
//
// Parts are transitory: they are produced by a Source as copies of a template
// and terminated when a Sink collects them.
type Part struct {
	id      string
	name    string
	value   float64
	quality float64

	routingHistory []NodeID
	returnStack    []NodeID // GroupPath entry points, innermost last
	copyCounter    int
}

// NewPart creates a part template with the given starting value and quality.
// An empty name gets a generated one.
func NewPart(name string, value, quality float64) *Part {
	id := uuid.NewString()
	if name == "" {
		name = fmt.Sprintf("Part_%.8s", id)
	}
	return &Part{
		id:      id,
		name:    name,
		value:   value,
		quality: quality,
	}
}

// ID returns the part's unique identity.
func (p *Part) ID() string { return p.id }

// Name returns the part's display name.
func (p *Part) Name() string { return p.name }

// Value returns the part's accumulated value.
func (p *Part) Value() float64 { return p.value }

// AddValue adjusts the part's value accumulator.
func (p *Part) AddValue(delta float64) { p.value += delta }

// Quality returns the part's quality scalar.
func (p *Part) Quality() float64 { return p.quality }

// SetQuality replaces the part's quality scalar.
func (p *Part) SetQuality(q float64) { p.quality = q }

// RoutingHistory returns a copy of the node IDs this part has visited, in
// visitation order. The first entry is usually a Source.
func (p *Part) RoutingHistory() []NodeID {
	out := make([]NodeID, len(p.routingHistory))
	copy(out, p.routingHistory)
	return out
}

// addRoutingHistory appends a visited node. Called by a device the moment it
// accepts the part, before any further forwarding.
func (p *Part) addRoutingHistory(id NodeID) {
	p.routingHistory = append(p.routingHistory, id)
}

// removeLastRoutingHistory rolls back the most recent visit. Used when a
// pass-through route fails to find a downstream taker and the part stays in
// its previous holder.
func (p *Part) removeLastRoutingHistory() {
	if len(p.routingHistory) == 0 {
		return
	}
	p.routingHistory = p.routingHistory[:len(p.routingHistory)-1]
}

// pushReturn records the GroupPath through which the part entered a shared
// sub-graph, so exit routing is a pure data lookup.
func (p *Part) pushReturn(id NodeID) {
	p.returnStack = append(p.returnStack, id)
}

// peekReturn returns the innermost recorded entry path.
func (p *Part) peekReturn() (NodeID, bool) {
	if len(p.returnStack) == 0 {
		return 0, false
	}
	return p.returnStack[len(p.returnStack)-1], true
}

func (p *Part) popReturn() {
	if len(p.returnStack) == 0 {
		return
	}
	p.returnStack = p.returnStack[:len(p.returnStack)-1]
}

// Copy creates a fresh logical copy of the part: a new identity, the same
// value and quality, and an empty routing history.
func (p *Part) Copy() *Part {
	p.copyCounter++
	id := uuid.NewString()
	return &Part{
		id:      id,
		name:    fmt.Sprintf("%s_%d", p.name, p.copyCounter),
		value:   p.value,
		quality: p.quality,
	}
}
