package mixture

import (
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// ApplyUpdate applies a graph delta atomically and repairs every index:
//
//  1. Invalidate: every embedding touching an agent in TouchedBefore is
//     deleted from its index.
//  2. Apply primitive edits in order: remove edges, remove agents, add
//     agents, add edges.  Edge removal may split a connected component; edge
//     addition may merge two.
//  3. Rescan: enumerate tracked-component embeddings into the neighborhood of
//     TouchedAfter within MaxEmbeddingWidth hops of the post-update graph and
//     insert the ones not already present.
//
// An embedding whose image touches no agent in either touched set cannot have
// been created, destroyed, or had a predicate invalidated, and the diameter
// bound guarantees the rescan region covers every embedding that touches one,
// so the indices after ApplyUpdate equal a from-scratch re-enumeration.
//
// Invariant violations (a non-detached added agent, a removed agent still
// holding a bond, edges on absent agents, removal of a bond that does not
// exist) abort with CodeInvariantViolation before any later phase runs.
func (m *Mixture) ApplyUpdate(u *Update) error {
	touchedBefore := u.TouchedBefore()
	touchedAfter := u.TouchedAfter()

	if err := m.checkUpdate(u); err != nil {
		return err
	}

	// 1. Invalidate embedding coverage of every touched agent.
	for _, c := range m.tracked {
		set := m.embeddings[c]
		for _, a := range touchedBefore {
			bucket := set.Lookup(indexAgent, a)
			stale := make([]*pattern.Embedding, bucket.Len())
			copy(stale, bucket.Items())
			for _, e := range stale {
				if set.Has(e) {
					set.Remove(e)
				}
			}
		}
	}

	// 2. Primitive edits.
	for _, e := range u.EdgesToRemove() {
		if err := m.removeEdge(e); err != nil {
			return err
		}
	}
	for _, a := range u.AgentsToRemove() {
		if err := m.removeAgent(a); err != nil {
			return err
		}
	}
	for _, a := range u.AgentsToAdd() {
		if err := m.addAgent(a); err != nil {
			return err
		}
	}
	for _, e := range u.EdgesToAdd() {
		if err := m.addEdge(e); err != nil {
			return err
		}
	}

	// 3. Rescan the affected neighborhood on the post-update graph.
	region := m.neighborhood(touchedAfter, m.maxEmbeddingWidth)
	if region.Len() > 0 {
		host := region
		for _, c := range m.tracked {
			set := m.embeddings[c]
			for _, e := range c.EmbeddingsInto(host, false) {
				if !set.Has(e) {
					set.Add(e)
				}
			}
		}
	}
	return nil
}

// checkUpdate front-loads the boundary assertions so that a bad update is
// rejected before any index has been modified.
func (m *Mixture) checkUpdate(u *Update) error {
	for _, a := range u.AgentsToAdd() {
		if m.agents.Has(a) {
			return errors.Newf(errors.CodeInvariantViolation,
				"agent %d added twice", a.UID())
		}
		if !a.Detached() {
			return errors.Newf(errors.CodeInvariantViolation,
				"added agent %d is not detached", a.UID())
		}
	}
	for _, a := range u.AgentsToRemove() {
		if !m.agents.Has(a) {
			return errors.Newf(errors.CodeInvariantViolation,
				"removed agent %d is not in the mixture", a.UID())
		}
	}
	for _, e := range u.EdgesToRemove() {
		s1, s2 := e.Sites()
		if s1.Partner() != s2 || s2.Partner() != s1 {
			return errors.Newf(errors.CodeInvariantViolation,
				"removed edge %s is not a current bond", e)
		}
	}
	for _, e := range u.EdgesToAdd() {
		a1, a2 := e.Agents()
		_, removing1 := u.removeSet[a1]
		_, removing2 := u.removeSet[a2]
		if removing1 || removing2 {
			return errors.Newf(errors.CodeInvariantViolation,
				"added edge %s references a removed agent", e)
		}
		for _, s := range []*pattern.Site{e.S1, e.S2} {
			p := s.Partner()
			if p == nil {
				continue
			}
			if _, scheduled := u.removeEdgeSet[NewEdge(s, p)]; !scheduled {
				return errors.Newf(errors.CodeInvariantViolation,
					"added edge %s lands on an occupied site", e)
			}
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Primitive edits
// ─────────────────────────────────────────────────────────────────────────────

// addAgent inserts a detached agent and, under component tracking, a fresh
// singleton component for it.
func (m *Mixture) addAgent(a *pattern.Agent) error {
	m.agents.Add(a)
	if m.components != nil {
		m.components.Add(pattern.NewComponent([]*pattern.Agent{a}))
	}
	return nil
}

// removeAgent deletes an agent whose bonds have all been removed already;
// under component tracking its (necessarily singleton) component goes with it.
func (m *Mixture) removeAgent(a *pattern.Agent) error {
	if !a.Detached() {
		return errors.Newf(errors.CodeInvariantViolation,
			"removed agent %d still holds a bond", a.UID())
	}
	if m.components != nil {
		c := m.ComponentOf(a)
		if c.Size() != 1 {
			return errors.Newf(errors.CodeInvariantViolation,
				"removed agent %d sits in a component of size %d", a.UID(), c.Size())
		}
		m.components.Remove(c)
	}
	m.agents.Remove(a)
	return nil
}

// addEdge installs a bond between two free sites of mixture members and
// merges their components when they differ.
func (m *Mixture) addEdge(e Edge) error {
	s1, s2 := e.Sites()
	a1, a2 := e.Agents()
	if !m.agents.Has(a1) || !m.agents.Has(a2) {
		return errors.Newf(errors.CodeInvariantViolation,
			"added edge %s has an endpoint outside the mixture", e)
	}
	if s1.Bound() || s2.Bound() {
		return errors.Newf(errors.CodeInvariantViolation,
			"added edge %s lands on an occupied site", e)
	}
	s1.BindTo(s2)

	if m.components != nil {
		m.mergeComponents(a1, a2)
	}
	return nil
}

// removeEdge clears a bond and, under component tracking, splits the
// containing component when the endpoints end up disconnected.
func (m *Mixture) removeEdge(e Edge) error {
	s1, s2 := e.Sites()
	if s1.Partner() != s2 || s2.Partner() != s1 {
		return errors.Newf(errors.CodeInvariantViolation,
			"removed edge %s is not a current bond", e)
	}
	s1.Unbind()

	if m.components != nil {
		m.maybeSplitComponent(s1.Agent(), s2.Agent())
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Partition maintenance
// ─────────────────────────────────────────────────────────────────────────────

// mergeComponents folds the smaller of the two endpoint components into the
// larger.  Embeddings keyed to the absorbed component migrate to the
// survivor; since the key is a registered index property, each one is removed
// before the partition changes and re-added after.
func (m *Mixture) mergeComponents(a1, a2 *pattern.Agent) {
	c1, c2 := m.ComponentOf(a1), m.ComponentOf(a2)
	if c1 == c2 {
		return
	}
	larger, smaller := c1, c2
	if smaller.Size() > larger.Size() {
		larger, smaller = smaller, larger
	}

	rekeyed := m.detachEmbeddingsKeyedTo(smaller, nil)

	// Both components' "agent" keys change shape: remove, mutate, re-add.
	m.components.Remove(smaller)
	m.components.Remove(larger)
	for _, a := range smaller.Agents() {
		larger.AddAgent(a)
	}
	m.components.Add(larger)

	m.reattachEmbeddings(rekeyed)
}

// maybeSplitComponent checks connectivity between the endpoints of a removed
// bond and, when the component fell apart, migrates the a1-side agents into a
// fresh component, re-keying the embeddings rooted there.
func (m *Mixture) maybeSplitComponent(a1, a2 *pattern.Agent) {
	old := m.ComponentOf(a1)

	reachable := pattern.DepthFirstTraversal(a1)
	migrated := make(map[*pattern.Agent]struct{}, len(reachable))
	for _, a := range reachable {
		if a == a2 {
			return // still connected
		}
		migrated[a] = struct{}{}
	}

	rekeyed := m.detachEmbeddingsKeyedTo(old, migrated)

	m.components.Remove(old)
	for _, a := range reachable {
		old.RemoveAgent(a)
	}
	m.components.Add(old)
	m.components.Add(pattern.NewComponent(reachable))

	m.reattachEmbeddings(rekeyed)
}

// detachEmbeddingsKeyedTo removes, from every tracked embedding set, the
// embeddings currently keyed to comp (restricted, when rootFilter is non-nil,
// to those whose root image is in the filter) and returns them grouped by set
// for re-insertion once the partition has been repaired.
func (m *Mixture) detachEmbeddingsKeyedTo(
	comp *pattern.Component,
	rootFilter map[*pattern.Agent]struct{},
) map[*pattern.Component][]*pattern.Embedding {
	out := make(map[*pattern.Component][]*pattern.Embedding)
	for _, c := range m.tracked {
		set := m.embeddings[c]
		bucket := set.Lookup(indexComponent, comp)
		if bucket.Len() == 0 {
			continue
		}
		stale := make([]*pattern.Embedding, bucket.Len())
		copy(stale, bucket.Items())
		for _, e := range stale {
			if rootFilter != nil {
				if _, ok := rootFilter[e.RootImage()]; !ok {
					continue
				}
			}
			set.Remove(e)
			out[c] = append(out[c], e)
		}
	}
	return out
}

// reattachEmbeddings re-inserts detached embeddings; their component key is
// recomputed against the repaired partition on the way in.
func (m *Mixture) reattachEmbeddings(byComponent map[*pattern.Component][]*pattern.Embedding) {
	for _, c := range m.tracked {
		for _, e := range byComponent[c] {
			m.embeddings[c].Add(e)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Rescan region
// ─────────────────────────────────────────────────────────────────────────────

// neighborhood collects the mixture members within radius bond hops of the
// seed agents on the current (post-update) graph, seeds included.
func (m *Mixture) neighborhood(seeds []*pattern.Agent, radius int) *pattern.AgentSet {
	dist := make(map[*pattern.Agent]int)
	var queue, region []*pattern.Agent
	for _, a := range seeds {
		if !m.agents.Has(a) {
			continue
		}
		if _, dup := dist[a]; dup {
			continue
		}
		dist[a] = 0
		queue = append(queue, a)
		region = append(region, a)
	}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if dist[a] == radius {
			continue
		}
		for _, n := range a.Neighbors() {
			if _, seen := dist[n]; seen {
				continue
			}
			dist[n] = dist[a] + 1
			queue = append(queue, n)
			region = append(region, n)
		}
	}
	return pattern.NewAgentSet(region)
}
