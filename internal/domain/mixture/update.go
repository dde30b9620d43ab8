package mixture

import (
	"github.com/turtacn/KappaForge/internal/domain/pattern"
)

// Update is the graph delta a rule selection produces: agents to add and
// remove, edges to add and remove, and agents whose internal site states
// changed.  A rule never edits the mixture directly (internal-state overwrites
// excepted, which it must register here); it describes the rewrite as an
// Update and the mixture applies it atomically.
//
// All collections preserve insertion order and deduplicate, so that applying
// an Update is deterministic run to run.
type Update struct {
	agentsToAdd    []*pattern.Agent
	agentsToRemove []*pattern.Agent
	addSet         map[*pattern.Agent]struct{}
	removeSet      map[*pattern.Agent]struct{}

	edgesToAdd    []Edge
	edgesToRemove []Edge
	addEdgeSet    map[Edge]struct{}
	removeEdgeSet map[Edge]struct{}

	agentsChanged []*pattern.Agent
	changedSet    map[*pattern.Agent]struct{}
}

// NewUpdate constructs an empty update.
func NewUpdate() *Update {
	return &Update{
		addSet:        make(map[*pattern.Agent]struct{}),
		removeSet:     make(map[*pattern.Agent]struct{}),
		addEdgeSet:    make(map[Edge]struct{}),
		removeEdgeSet: make(map[Edge]struct{}),
		changedSet:    make(map[*pattern.Agent]struct{}),
	}
}

// Empty reports whether the update carries no edits.
func (u *Update) Empty() bool {
	return len(u.agentsToAdd) == 0 && len(u.agentsToRemove) == 0 &&
		len(u.edgesToAdd) == 0 && len(u.edgesToRemove) == 0 &&
		len(u.agentsChanged) == 0
}

// AddAgent schedules a detached agent for insertion.
func (u *Update) AddAgent(a *pattern.Agent) {
	if _, dup := u.addSet[a]; dup {
		return
	}
	u.addSet[a] = struct{}{}
	u.agentsToAdd = append(u.agentsToAdd, a)
}

// CreateAgent instantiates a detached clone of the template (concrete states
// carried over, links empty) and schedules it for insertion.  Desired bonds
// are added separately with ConnectSites.
func (u *Update) CreateAgent(template *pattern.Agent) (*pattern.Agent, error) {
	clone, err := template.Instantiate()
	if err != nil {
		return nil, err
	}
	u.AddAgent(clone)
	return clone, nil
}

// RemoveAgent schedules an agent for removal along with every bond it holds.
func (u *Update) RemoveAgent(a *pattern.Agent) {
	if _, dup := u.removeSet[a]; dup {
		return
	}
	u.removeSet[a] = struct{}{}
	u.agentsToRemove = append(u.agentsToRemove, a)

	for _, s := range a.Sites() {
		if p := s.Partner(); p != nil {
			u.removeEdge(NewEdge(s, p))
		}
	}
}

// RegisterChanged records that an agent's internal site states changed, so
// that its embedding coverage is invalidated and rescanned.
func (u *Update) RegisterChanged(a *pattern.Agent) {
	if _, dup := u.changedSet[a]; dup {
		return
	}
	u.changedSet[a] = struct{}{}
	u.agentsChanged = append(u.agentsChanged, a)
}

// DisconnectSite schedules the removal of the site's bond, if it holds one.
func (u *Update) DisconnectSite(s *pattern.Site) {
	if p := s.Partner(); p != nil {
		u.removeEdge(NewEdge(s, p))
	}
}

// ConnectSites schedules a bond between two sites.  A conflicting existing
// bond on either endpoint is scheduled for removal first; removals are always
// applied before additions, so the new bond lands on free sites.  Connecting
// two sites that already share a bond is a no-op.
func (u *Update) ConnectSites(s1, s2 *pattern.Site) {
	if p := s1.Partner(); p != nil && p != s2 {
		u.DisconnectSite(s1)
	}
	if p := s2.Partner(); p != nil && p != s1 {
		u.DisconnectSite(s2)
	}
	if s1.Partner() == s2 && s2.Partner() == s1 {
		return
	}
	u.addEdge(NewEdge(s1, s2))
}

// AddEdge schedules a bond between two sites of agents being added (mirroring
// a pattern's internal bonds during instantiation).
func (u *Update) AddEdge(e Edge) { u.addEdge(e) }

func (u *Update) addEdge(e Edge) {
	if _, dup := u.addEdgeSet[e]; dup {
		return
	}
	u.addEdgeSet[e] = struct{}{}
	u.edgesToAdd = append(u.edgesToAdd, e)
}

func (u *Update) removeEdge(e Edge) {
	if _, dup := u.removeEdgeSet[e]; dup {
		return
	}
	u.removeEdgeSet[e] = struct{}{}
	u.edgesToRemove = append(u.edgesToRemove, e)
}

// AgentsToAdd returns the scheduled insertions in order.
func (u *Update) AgentsToAdd() []*pattern.Agent { return u.agentsToAdd }

// AgentsToRemove returns the scheduled removals in order.
func (u *Update) AgentsToRemove() []*pattern.Agent { return u.agentsToRemove }

// EdgesToAdd returns the scheduled bond additions in order.
func (u *Update) EdgesToAdd() []Edge { return u.edgesToAdd }

// EdgesToRemove returns the scheduled bond removals in order.
func (u *Update) EdgesToRemove() []Edge { return u.edgesToRemove }

// AgentsChanged returns the agents with internal-state changes in order.
func (u *Update) AgentsChanged() []*pattern.Agent { return u.agentsChanged }

// TouchedBefore returns the agents whose embedding coverage must be
// invalidated before the update is applied: removed agents, state-changed
// agents, and the surviving endpoints of every edge edit.  Endpoint agents
// that are themselves being added carry no embeddings yet and are skipped.
// Edge additions invalidate too: an embedding can require a site to be empty.
func (u *Update) TouchedBefore() []*pattern.Agent {
	var out []*pattern.Agent
	seen := make(map[*pattern.Agent]struct{})
	touch := func(a *pattern.Agent) {
		if _, dup := seen[a]; dup {
			return
		}
		if _, adding := u.addSet[a]; adding {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, a := range u.agentsToRemove {
		touch(a)
	}
	for _, a := range u.agentsChanged {
		touch(a)
	}
	for _, e := range u.edgesToRemove {
		a1, a2 := e.Agents()
		touch(a1)
		touch(a2)
	}
	for _, e := range u.edgesToAdd {
		a1, a2 := e.Agents()
		touch(a1)
		touch(a2)
	}
	return out
}

// TouchedAfter returns the agents whose neighborhoods must be rescanned after
// the update is applied: added agents, state-changed agents, and the
// endpoints of every edge edit that survive the update.
func (u *Update) TouchedAfter() []*pattern.Agent {
	var out []*pattern.Agent
	seen := make(map[*pattern.Agent]struct{})
	touch := func(a *pattern.Agent) {
		if _, dup := seen[a]; dup {
			return
		}
		if _, removing := u.removeSet[a]; removing {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, a := range u.agentsToAdd {
		touch(a)
	}
	for _, a := range u.agentsChanged {
		touch(a)
	}
	for _, e := range u.edgesToRemove {
		a1, a2 := e.Agents()
		touch(a1)
		touch(a2)
	}
	for _, e := range u.edgesToAdd {
		a1, a2 := e.Agents()
		touch(a1)
		touch(a2)
	}
	return out
}
