package mixture

import (
	"github.com/turtacn/KappaForge/internal/collections"
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// Index names registered on the mixture's indexed sets.
const (
	indexType      = "type"      // agents by agent type
	indexAgent     = "agent"     // embeddings / components by touched agent
	indexComponent = "component" // embeddings by containing mixture component
)

// Mixture owns the live site graph and its indices.  Tracked pattern
// components each get an IndexedSet of their current embeddings, keyed by the
// host agents they touch; with component tracking enabled the mixture also
// maintains its partition into connected components and keys each embedding
// by the component containing its root image, which is what the
// unimolecular/bimolecular rule variants consume.
type Mixture struct {
	agents *collections.IndexedSet[*pattern.Agent]

	// components is nil unless component tracking is enabled.
	components *collections.IndexedSet[*pattern.Component]

	embeddings map[*pattern.Component]*collections.IndexedSet[*pattern.Embedding]
	tracked    []*pattern.Component

	// maxEmbeddingWidth is the maximum diameter over all tracked components;
	// it sizes the post-update neighborhood rescans.
	maxEmbeddingWidth int
}

func agentIdentity(a *pattern.Agent) any         { return a }
func componentIdentity(c *pattern.Component) any { return c }
func embeddingIdentity(e *pattern.Embedding) any { return e.Key() }

// New constructs an empty mixture without component tracking.  Sufficient for
// models whose rules are all molecularity-independent.
func New() *Mixture {
	m := &Mixture{
		agents:     collections.NewIndexedSet(agentIdentity),
		embeddings: make(map[*pattern.Component]*collections.IndexedSet[*pattern.Embedding]),
	}
	m.agents.CreateIndex(indexType, collections.NewProperty(
		func(a *pattern.Agent) any { return a.Type() }, false))
	return m
}

// NewWithComponents constructs an empty mixture that also maintains the live
// partition into connected components, required by unimolecular and
// bimolecular rules.
func NewWithComponents() *Mixture {
	m := New()
	m.components = collections.NewIndexedSet(componentIdentity)
	m.components.CreateIndex(indexAgent, collections.NewSetProperty(
		func(c *pattern.Component) []any {
			agents := c.Agents()
			keys := make([]any, len(agents))
			for i, a := range agents {
				keys[i] = a
			}
			return keys
		}, true))
	return m
}

// TracksComponents reports whether the partition is maintained.
func (m *Mixture) TracksComponents() bool { return m.components != nil }

// NAgents returns the number of agents.
func (m *Mixture) NAgents() int { return m.agents.Len() }

// Agents returns the agents in internal order.  The slice is shared; callers
// must not modify it or hold it across updates.
func (m *Mixture) Agents() []*pattern.Agent { return m.agents.Items() }

// ContainsAgent implements pattern.Host.
func (m *Mixture) ContainsAgent(a *pattern.Agent) bool { return m.agents.Has(a) }

// CandidatesOfType implements pattern.Host.
func (m *Mixture) CandidatesOfType(typ string) []*pattern.Agent {
	return m.agents.Lookup(indexType, typ).Items()
}

// AgentsOfType returns the agents of the given type in internal order.
func (m *Mixture) AgentsOfType(typ string) []*pattern.Agent {
	return m.CandidatesOfType(typ)
}

// ─────────────────────────────────────────────────────────────────────────────
// Component partition access
// ─────────────────────────────────────────────────────────────────────────────

// Components returns the live connected components in internal order.
// Requires component tracking.
func (m *Mixture) Components() []*pattern.Component {
	m.requireComponents()
	return m.components.Items()
}

// NComponents returns the number of live connected components.
func (m *Mixture) NComponents() int {
	m.requireComponents()
	return m.components.Len()
}

// ComponentOf returns the connected component containing a.  Requires
// component tracking and mixture membership.
func (m *Mixture) ComponentOf(a *pattern.Agent) *pattern.Component {
	m.requireComponents()
	c, ok := m.components.LookupUnique(indexAgent, a)
	if !ok {
		panic(errors.Newf(errors.CodeAgentNotInMixture,
			"agent %d has no containing component", a.UID()))
	}
	return c
}

func (m *Mixture) requireComponents() {
	if m.components == nil {
		panic(errors.New(errors.CodeInternal,
			"operation requires a component-tracking mixture"))
	}
}

// SnapshotComponents returns the mixture's connected components: the live
// partition when tracked, otherwise a fresh traversal-order partition.  Used
// by the snapshot dump's isomorphism grouping.
func (m *Mixture) SnapshotComponents() []*pattern.Component {
	if m.components != nil {
		return m.components.Items()
	}
	assigned := make(map[*pattern.Agent]bool, m.agents.Len())
	var out []*pattern.Component
	for _, a := range m.agents.Items() {
		if assigned[a] {
			continue
		}
		members := pattern.DepthFirstTraversal(a)
		for _, member := range members {
			assigned[member] = true
		}
		out = append(out, pattern.NewComponent(members))
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Embedding tracking
// ─────────────────────────────────────────────────────────────────────────────

// TrackComponent registers a pattern component for incremental embedding
// maintenance, enumerating its current embeddings.  Tracking the same
// component value twice is a no-op; distinct isomorphic components are
// tracked independently (lookups fall back to isomorphism, see
// EmbeddingCount).
func (m *Mixture) TrackComponent(c *pattern.Component) {
	if _, dup := m.embeddings[c]; dup {
		return
	}
	set := collections.NewIndexedSet(embeddingIdentity)
	set.CreateIndex(indexAgent, collections.NewSetProperty(
		func(e *pattern.Embedding) []any {
			hosts := e.HostAgents()
			keys := make([]any, 0, len(hosts))
			seen := make(map[*pattern.Agent]struct{}, len(hosts))
			for _, h := range hosts {
				if _, dup := seen[h]; dup {
					continue
				}
				seen[h] = struct{}{}
				keys = append(keys, h)
			}
			return keys
		}, false))
	if m.components != nil {
		set.CreateIndex(indexComponent, collections.NewProperty(
			func(e *pattern.Embedding) any { return m.ComponentOf(e.RootImage()) }, false))
	}
	for _, e := range c.EmbeddingsInto(m, false) {
		set.Add(e)
	}
	m.embeddings[c] = set
	m.tracked = append(m.tracked, c)
	if d := c.Diameter(); d > m.maxEmbeddingWidth {
		m.maxEmbeddingWidth = d
	}
}

// Tracked returns the tracked pattern components in registration order.
func (m *Mixture) Tracked() []*pattern.Component { return m.tracked }

// MaxEmbeddingWidth returns the maximum diameter over the tracked components.
func (m *Mixture) MaxEmbeddingWidth() int { return m.maxEmbeddingWidth }

// Embeddings returns the live embedding set of a tracked component.  The
// returned set is read-only and not stable across updates.
func (m *Mixture) Embeddings(c *pattern.Component) (*collections.IndexedSet[*pattern.Embedding], error) {
	set, ok := m.embeddings[c]
	if !ok {
		return nil, errors.Newf(errors.CodeComponentNotTracked,
			"component %s is not tracked", c.KappaString())
	}
	return set, nil
}

// EmbeddingsOf is Embeddings for components known to be tracked (rule-left
// components, registered at system construction); it panics otherwise.
func (m *Mixture) EmbeddingsOf(c *pattern.Component) *collections.IndexedSet[*pattern.Embedding] {
	set, err := m.Embeddings(c)
	if err != nil {
		panic(err)
	}
	return set
}

// EmbeddingsInComponent returns the embeddings of tracked component c whose
// root image lies in mixture component mc.  Requires component tracking.
func (m *Mixture) EmbeddingsInComponent(c *pattern.Component, mc *pattern.Component) *collections.IndexedSet[*pattern.Embedding] {
	m.requireComponents()
	return m.EmbeddingsOf(c).Lookup(indexComponent, mc)
}

// EmbeddingCount returns the number of current embeddings of c.  When c
// itself is not tracked, the count of a tracked component isomorphic to c is
// returned, so independently-constructed observables resolve to their
// declared counterparts.
func (m *Mixture) EmbeddingCount(c *pattern.Component) (int, error) {
	if set, ok := m.embeddings[c]; ok {
		return set.Len(), nil
	}
	for _, t := range m.tracked {
		if t.Isomorphic(c) {
			return m.embeddings[t].Len(), nil
		}
	}
	return 0, errors.Newf(errors.CodeComponentNotTracked,
		"no tracked component isomorphic to %s", c.KappaString())
}

// ─────────────────────────────────────────────────────────────────────────────
// Instantiation
// ─────────────────────────────────────────────────────────────────────────────

// Instantiate adds n disjoint copies of the pattern to the mixture: for each
// copy and each connected component, a set of detached clone agents mirroring
// the component's internal bonds, submitted as one update.  The pattern must
// not be under-specified.
func (m *Mixture) Instantiate(p *pattern.Pattern, n int) error {
	if n <= 0 {
		return errors.Newf(errors.CodeInvalidParam, "copy count must be positive, got %d", n)
	}
	if p.Underspecified() {
		return errors.Newf(errors.CodePatternUnderspecified,
			"pattern %s is not specific enough to be instantiated", p.KappaString())
	}

	u := NewUpdate()
	for copyIdx := 0; copyIdx < n; copyIdx++ {
		for _, c := range p.Components() {
			if err := instantiateComponent(u, c); err != nil {
				return err
			}
		}
	}
	return m.ApplyUpdate(u)
}

// instantiateComponent schedules clone agents for one pattern component and
// mirrors its internal bond structure as edge additions.
func instantiateComponent(u *Update, c *pattern.Component) error {
	clones := make(map[*pattern.Agent]*pattern.Agent, c.Size())
	for _, a := range c.Agents() {
		clone, err := u.CreateAgent(a)
		if err != nil {
			return err
		}
		clones[a] = clone
	}
	for _, a := range c.Agents() {
		for _, s := range a.Sites() {
			partner := s.Partner()
			if partner == nil || !s.Before(partner) {
				continue
			}
			u.AddEdge(NewEdge(
				clones[a].Site(s.Label),
				clones[partner.Agent()].Site(partner.Label),
			))
		}
	}
	return nil
}
