package pattern

import (
	"github.com/turtacn/KappaForge/pkg/errors"
)

// Pattern is an ordered list of slots, each an agent or a nil hole.  Holes are
// the fixed positions rewrites use to create or delete agents: a rule's left
// and right patterns pair up slot by slot.  Construction resolves integer bond
// labels into reciprocal site cross-references and computes the connected
// components over the non-hole slots.
type Pattern struct {
	slots      []*Agent
	slotIndex  map[*Agent]int
	components []*Component
}

// Hole is the nil slot marker, provided for call-site readability:
//
//	pattern.NewPattern(a, pattern.Hole, b)
var Hole *Agent

// NewPattern constructs a pattern over the given slots and resolves its bond
// labels.  A label appearing on one site or on more than two is a construction
// error; the live engine never sees an unresolved label.
func NewPattern(slots ...*Agent) (*Pattern, error) {
	p := &Pattern{
		slots:     slots,
		slotIndex: make(map[*Agent]int, len(slots)),
	}
	for i, a := range slots {
		if a == nil {
			continue
		}
		if _, dup := p.slotIndex[a]; dup {
			return nil, errors.Newf(errors.CodeInvalidParam,
				"agent %s occupies two slots of the same pattern", a.Type())
		}
		p.slotIndex[a] = i
	}

	if err := p.resolveBondLabels(); err != nil {
		return nil, err
	}
	p.components = connectedComponents(p.Agents())
	return p, nil
}

// MustNewPattern is NewPattern for statically-known-good patterns (model
// builders, tests); it panics on a construction error.
func MustNewPattern(slots ...*Agent) *Pattern {
	p, err := NewPattern(slots...)
	if err != nil {
		panic(err)
	}
	return p
}

// resolveBondLabels pairs up the sites sharing each integer bond label and
// replaces the labels with reciprocal cross-references.
func (p *Pattern) resolveBondLabels() error {
	byLabel := make(map[int][]*Site)
	var order []int
	for _, a := range p.slots {
		if a == nil {
			continue
		}
		for _, s := range a.Sites() {
			if n, ok := s.Link.Label(); ok {
				if _, seen := byLabel[n]; !seen {
					order = append(order, n)
				}
				byLabel[n] = append(byLabel[n], s)
			}
		}
	}
	for _, n := range order {
		sites := byLabel[n]
		switch len(sites) {
		case 2:
			sites[0].BindTo(sites[1])
		case 1:
			return errors.Newf(errors.CodeBondLabelUnpaired,
				"bond label %d appears on a single site (%s.%s)",
				n, sites[0].Agent().Type(), sites[0].Label)
		default:
			return errors.Newf(errors.CodeBondLabelOverloaded,
				"bond label %d appears on %d sites", n, len(sites))
		}
	}
	return nil
}

// connectedComponents partitions agents into connected components under the
// bond relation.  Components appear in the order of their first agent; within
// a component, agents follow depth-first traversal order from that agent.
func connectedComponents(agents []*Agent) []*Component {
	assigned := make(map[*Agent]bool, len(agents))
	var components []*Component
	for _, a := range agents {
		if assigned[a] {
			continue
		}
		members := DepthFirstTraversal(a)
		for _, m := range members {
			assigned[m] = true
		}
		components = append(components, NewComponent(members))
	}
	return components
}

// Slots returns the pattern's slots in order, nil marking holes.  The slice is
// shared; callers must not modify it.
func (p *Pattern) Slots() []*Agent { return p.slots }

// NSlots returns the slot count, holes included.
func (p *Pattern) NSlots() int { return len(p.slots) }

// Agents returns the non-hole slots in order.
func (p *Pattern) Agents() []*Agent {
	out := make([]*Agent, 0, len(p.slots))
	for _, a := range p.slots {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// SlotOf returns the slot index of the given agent.
func (p *Pattern) SlotOf(a *Agent) (int, bool) {
	i, ok := p.slotIndex[a]
	return i, ok
}

// Components returns the connected components of the pattern's non-hole slots.
func (p *Pattern) Components() []*Component { return p.components }

// Underspecified reports whether any site carries a predicate state (wildcard
// internal state; wildcard, bound-anywhere, or site-type partner), which
// makes the pattern unusable for instantiation.  Undetermined states do not
// count: an uninstantiated internal state simply stays untracked, and an
// unmentioned partner instantiates as empty.
func (p *Pattern) Underspecified() bool {
	for _, a := range p.slots {
		if a == nil {
			continue
		}
		for _, s := range a.Sites() {
			if s.State.IsWildcard() {
				return true
			}
			if s.Link.IsWildcard() || s.Link.IsBoundPredicate() {
				return true
			}
			if _, _, ok := s.Link.SiteType(); ok {
				return true
			}
		}
	}
	return false
}

// String renders the pattern in Kappa notation.
func (p *Pattern) String() string { return p.KappaString() }
