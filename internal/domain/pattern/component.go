package pattern

import (
	"github.com/turtacn/KappaForge/pkg/errors"
)

// Component is a non-empty connected set of agents under the bond relation,
// with a secondary index from agent type to the agents of that type.  The same
// type describes a connected piece of a match pattern and a connected complex
// in the live mixture; the mixture's partition maintenance mutates components
// through AddAgent/RemoveAgent.
type Component struct {
	uid    int64
	agents []*Agent
	member map[*Agent]int
	byType map[string][]*Agent
}

// NewComponent constructs a component over the given agents, which must be
// non-empty.  Connectivity is the caller's invariant: pattern construction and
// the mixture's partition maintenance only ever build connected agent sets.
func NewComponent(agents []*Agent) *Component {
	if len(agents) == 0 {
		panic(errors.New(errors.CodeInvalidParam, "component must contain at least one agent"))
	}
	c := &Component{
		uid:    nextUID(),
		member: make(map[*Agent]int, len(agents)),
		byType: make(map[string][]*Agent),
	}
	for _, a := range agents {
		c.AddAgent(a)
	}
	return c
}

// UID returns the component's process-wide unique identity.
func (c *Component) UID() int64 { return c.uid }

// Agents returns the member agents in insertion order.  The slice is shared;
// callers must not modify it.
func (c *Component) Agents() []*Agent { return c.agents }

// Root returns the component's designated root agent (the first inserted),
// used as the anchor of embedding searches and of the per-component embedding
// index.
func (c *Component) Root() *Agent { return c.agents[0] }

// Size returns the number of member agents.
func (c *Component) Size() int { return len(c.agents) }

// Contains reports membership of a.
func (c *Component) Contains(a *Agent) bool {
	_, ok := c.member[a]
	return ok
}

// AgentsOfType returns the member agents of the given type, in insertion order.
func (c *Component) AgentsOfType(typ string) []*Agent { return c.byType[typ] }

// AddAgent inserts a into the component and its type index.
func (c *Component) AddAgent(a *Agent) {
	if _, dup := c.member[a]; dup {
		panic(errors.Newf(errors.CodeInternal, "agent %d already in component", a.uid))
	}
	c.member[a] = len(c.agents)
	c.agents = append(c.agents, a)
	c.byType[a.typ] = append(c.byType[a.typ], a)
}

// RemoveAgent deletes a from the component and its type index, preserving the
// insertion order of the remaining agents.
func (c *Component) RemoveAgent(a *Agent) {
	pos, ok := c.member[a]
	if !ok {
		panic(errors.Newf(errors.CodeInternal, "agent %d not in component", a.uid))
	}
	delete(c.member, a)
	c.agents = append(c.agents[:pos], c.agents[pos+1:]...)
	for i := pos; i < len(c.agents); i++ {
		c.member[c.agents[i]] = i
	}
	typed := c.byType[a.typ]
	for i, b := range typed {
		if b == a {
			c.byType[a.typ] = append(typed[:i], typed[i+1:]...)
			break
		}
	}
	if len(c.byType[a.typ]) == 0 {
		delete(c.byType, a.typ)
	}
}

// ── Host interface ────────────────────────────────────────────────────────────

// CandidatesOfType implements Host over the component's own agents.
func (c *Component) CandidatesOfType(typ string) []*Agent { return c.AgentsOfType(typ) }

// ContainsAgent implements Host.
func (c *Component) ContainsAgent(a *Agent) bool { return c.Contains(a) }

// ── Structure ─────────────────────────────────────────────────────────────────

// DepthFirstTraversal returns the agents reachable from start over concrete
// bonds, start included, in a deterministic visit order.
func DepthFirstTraversal(start *Agent) []*Agent {
	visited := map[*Agent]struct{}{}
	var traversal []*Agent
	stack := []*Agent{start}
	for len(stack) > 0 {
		a := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[a]; seen {
			continue
		}
		visited[a] = struct{}{}
		traversal = append(traversal, a)
		neighbors := a.Neighbors()
		for i := len(neighbors) - 1; i >= 0; i-- {
			stack = append(stack, neighbors[i])
		}
	}
	return traversal
}

// Diameter returns the longest shortest path between two member agents, in
// bond hops.  A single-agent component has diameter 0.  It bounds how far an
// embedding of this component can reach from any one of its image agents,
// which is what sizes the mixture's post-update neighborhood rescans.
func (c *Component) Diameter() int {
	diameter := 0
	for _, start := range c.agents {
		dist := map[*Agent]int{start: 0}
		queue := []*Agent{start}
		for len(queue) > 0 {
			a := queue[0]
			queue = queue[1:]
			for _, n := range a.Neighbors() {
				if !c.Contains(n) {
					continue
				}
				if _, seen := dist[n]; !seen {
					dist[n] = dist[a] + 1
					queue = append(queue, n)
				}
			}
		}
		for _, d := range dist {
			if d > diameter {
				diameter = d
			}
		}
	}
	return diameter
}

// Isomorphic reports whether c and other are the same site graph up to agent
// identity: equal agent counts and at least one exact embedding, where exact
// matching requires site-state equality (predicate kinds included) and full
// interface coverage on both sides.
func (c *Component) Isomorphic(other *Component) bool {
	if c.Size() != other.Size() {
		return false
	}
	return len(c.EmbeddingsInto(other, true)) > 0
}

// String renders the component in Kappa notation with numeric bond labels.
func (c *Component) String() string { return c.KappaString() }
