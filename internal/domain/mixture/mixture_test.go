package mixture_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/KappaForge/internal/domain/mixture"
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test fixtures
// ─────────────────────────────────────────────────────────────────────────────

// dimerPattern is A(a[1]), B(b[1]).
func dimerPattern(t *testing.T) *pattern.Pattern {
	t.Helper()
	p, err := pattern.NewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1)))
	require.NoError(t, err)
	return p
}

// quadPattern is A(a[1]), B(b[1], x[3]), C(c[2]{p}), D(d[2]{p}, x[3]):
// a four-agent complex with a state-carrying C–D bond and a B–D bridge.
func quadPattern(t *testing.T) *pattern.Pattern {
	t.Helper()
	p, err := pattern.NewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1), pattern.NewSite("x").WithBond(3)),
		pattern.NewAgent("C", pattern.NewSite("c").WithBond(2).WithState("p")),
		pattern.NewAgent("D", pattern.NewSite("d").WithBond(2).WithState("p"), pattern.NewSite("x").WithBond(3)))
	require.NoError(t, err)
	return p
}

func singleComponent(t *testing.T, slots ...*pattern.Agent) *pattern.Component {
	t.Helper()
	p, err := pattern.NewPattern(slots...)
	require.NoError(t, err)
	require.Len(t, p.Components(), 1)
	return p.Components()[0]
}

// ─────────────────────────────────────────────────────────────────────────────
// Brute-force reference enumeration
//
// An independent implementation of the embedding semantics: enumerate every
// injective type-respecting assignment and filter by the predicate and edge
// conditions directly.  The incremental index must always agree with it.
// ─────────────────────────────────────────────────────────────────────────────

func embeddingKey(hosts []*pattern.Agent) string {
	parts := make([]string, len(hosts))
	for i, h := range hosts {
		parts[i] = fmt.Sprintf("%d", h.UID())
	}
	return strings.Join(parts, ",")
}

func bruteForceEmbeddings(c *pattern.Component, m *mixture.Mixture) map[string]bool {
	found := map[string]bool{}
	agents := c.Agents()
	images := make([]*pattern.Agent, len(agents))
	used := map[*pattern.Agent]bool{}

	var extend func(i int)
	extend = func(i int) {
		if i == len(agents) {
			if bruteForceValid(agents, images) {
				found[embeddingKey(images)] = true
			}
			return
		}
		for _, host := range m.AgentsOfType(agents[i].Type()) {
			if used[host] {
				continue
			}
			images[i] = host
			used[host] = true
			extend(i + 1)
			used[host] = false
		}
	}
	extend(0)
	return found
}

func bruteForceValid(agents []*pattern.Agent, images []*pattern.Agent) bool {
	imageOf := map[*pattern.Agent]*pattern.Agent{}
	for i, a := range agents {
		imageOf[a] = images[i]
	}
	for i, a := range agents {
		host := images[i]
		for _, s := range a.Sites() {
			hostSite := host.Site(s.Label)
			if hostSite == nil {
				if s.Undetermined() {
					continue
				}
				return false
			}
			if !s.EmbedsIn(hostSite) {
				return false
			}
			if partner := s.Partner(); partner != nil {
				expected := imageOf[partner.Agent()]
				hostPartner := hostSite.Partner()
				if hostPartner == nil || hostPartner.Agent() != expected || hostPartner.Label != partner.Label {
					return false
				}
			}
		}
	}
	return true
}

// indexKeys extracts the comparable key set from the incremental index.
func indexKeys(t *testing.T, m *mixture.Mixture, c *pattern.Component) map[string]bool {
	t.Helper()
	set, err := m.Embeddings(c)
	require.NoError(t, err)
	out := map[string]bool{}
	for i := 0; i < set.Len(); i++ {
		out[embeddingKey(set.At(i).HostAgents())] = true
	}
	return out
}

// requireIndexMatchesBruteForce asserts round-trip correctness of every
// tracked index.
func requireIndexMatchesBruteForce(t *testing.T, m *mixture.Mixture) {
	t.Helper()
	for _, c := range m.Tracked() {
		assert.Equal(t, bruteForceEmbeddings(c, m), indexKeys(t, m, c),
			"index of %s diverged from brute force", c.KappaString())
	}
}

// requirePartitionInvariants asserts the component partition covers the
// agents, is pairwise disjoint, and is internally connected.
func requirePartitionInvariants(t *testing.T, m *mixture.Mixture) {
	t.Helper()
	seen := map[*pattern.Agent]bool{}
	for _, c := range m.Components() {
		require.Positive(t, c.Size())
		for _, a := range c.Agents() {
			require.False(t, seen[a], "agent appears in two components")
			seen[a] = true
			require.Equal(t, c, m.ComponentOf(a))
		}
		reachable := pattern.DepthFirstTraversal(c.Root())
		require.Len(t, reachable, c.Size(), "component is not connected")
	}
	require.Equal(t, m.NAgents(), len(seen), "partition does not cover the mixture")
}

// ─────────────────────────────────────────────────────────────────────────────
// Instantiation and tracking
// ─────────────────────────────────────────────────────────────────────────────

func TestInstantiate_BuildsBondedCopies(t *testing.T) {
	t.Parallel()

	m := mixture.NewWithComponents()
	require.NoError(t, m.Instantiate(dimerPattern(t), 10))

	assert.Equal(t, 20, m.NAgents())
	assert.Equal(t, 10, m.NComponents())
	assert.Len(t, m.AgentsOfType("A"), 10)
	assert.Len(t, m.AgentsOfType("B"), 10)

	for _, a := range m.AgentsOfType("A") {
		partner := a.Site("a").Partner()
		require.NotNil(t, partner)
		assert.Equal(t, "B", partner.Agent().Type())
	}
	requirePartitionInvariants(t, m)
}

func TestInstantiate_RejectsUnderspecified(t *testing.T) {
	t.Parallel()

	m := mixture.New()
	p, err := pattern.NewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBound()))
	require.NoError(t, err)

	err = m.Instantiate(p, 1)
	assert.True(t, errors.IsCode(err, errors.CodePatternUnderspecified))

	err = m.Instantiate(dimerPattern(t), 0)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestTrackComponent_CountsExistingEmbeddings(t *testing.T) {
	t.Parallel()

	m := mixture.New()
	require.NoError(t, m.Instantiate(dimerPattern(t), 10))

	bound := dimerPattern(t).Components()[0]
	m.TrackComponent(bound)
	n, err := m.EmbeddingCount(bound)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	justA := singleComponent(t, pattern.NewAgent("A"))
	m.TrackComponent(justA)
	n, err = m.EmbeddingCount(justA)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	requireIndexMatchesBruteForce(t, m)
}

func TestEmbeddingCount_IsomorphicFallback(t *testing.T) {
	t.Parallel()

	m := mixture.New()
	require.NoError(t, m.Instantiate(dimerPattern(t), 7))

	tracked := dimerPattern(t).Components()[0]
	m.TrackComponent(tracked)

	// An independently built, isomorphic component resolves to the tracked one.
	independent := dimerPattern(t).Components()[0]
	n, err := m.EmbeddingCount(independent)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	// A non-isomorphic component does not.
	_, err = m.EmbeddingCount(singleComponent(t, pattern.NewAgent("Z")))
	assert.True(t, errors.IsCode(err, errors.CodeComponentNotTracked))
}

// ─────────────────────────────────────────────────────────────────────────────
// Incremental index maintenance
// ─────────────────────────────────────────────────────────────────────────────

// trackQuadObservables registers a spread of observables over the quad
// complex: the full complex, a bound-anywhere probe, a state probe, and a
// free-site probe.
func trackQuadObservables(t *testing.T, m *mixture.Mixture) {
	t.Helper()
	m.TrackComponent(quadPattern(t).Components()[0])
	m.TrackComponent(singleComponent(t, pattern.NewAgent("B", pattern.NewSite("b").WithBound())))
	m.TrackComponent(singleComponent(t, pattern.NewAgent("C", pattern.NewSite("c").WithState("u"))))
	m.TrackComponent(singleComponent(t, pattern.NewAgent("A", pattern.NewSite("a").WithEmpty())))
	m.TrackComponent(singleComponent(t,
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1))))
}

func TestApplyUpdate_EdgeRemovalIsIncremental(t *testing.T) {
	t.Parallel()

	m := mixture.NewWithComponents()
	require.NoError(t, m.Instantiate(quadPattern(t), 5))
	trackQuadObservables(t, m)
	requireIndexMatchesBruteForce(t, m)

	// Disconnect the A–B bond of each copy, one update at a time, checking
	// the indices against brute force after every step.
	freeA := singleComponent(t, pattern.NewAgent("A", pattern.NewSite("a").WithEmpty()))
	m.TrackComponent(freeA)

	for i := 0; i < 5; i++ {
		var site *pattern.Site
		for _, a := range m.AgentsOfType("A") {
			if a.Site("a").Bound() {
				site = a.Site("a")
				break
			}
		}
		require.NotNil(t, site)

		u := mixture.NewUpdate()
		u.DisconnectSite(site)
		require.NoError(t, m.ApplyUpdate(u))

		requireIndexMatchesBruteForce(t, m)
		requirePartitionInvariants(t, m)
		assert.Equal(t, 5+i+1, m.NComponents())

		n, err := m.EmbeddingCount(freeA)
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}
}

func TestApplyUpdate_StateChangeIsIncremental(t *testing.T) {
	t.Parallel()

	m := mixture.NewWithComponents()
	require.NoError(t, m.Instantiate(quadPattern(t), 4))
	trackQuadObservables(t, m)

	cU := singleComponent(t, pattern.NewAgent("C", pattern.NewSite("c").WithState("u")))
	for i := 0; i < 4; i++ {
		// Flip one C's state p → u the way rules do: mutate in place, then
		// register the change in the applied update.
		var target *pattern.Agent
		for _, c := range m.AgentsOfType("C") {
			if tag, ok := c.Site("c").State.Tag(); ok && tag == "p" {
				target = c
				break
			}
		}
		require.NotNil(t, target)
		target.Site("c").State = pattern.StateTag("u")

		u := mixture.NewUpdate()
		u.RegisterChanged(target)
		require.NoError(t, m.ApplyUpdate(u))

		requireIndexMatchesBruteForce(t, m)
		n, err := m.EmbeddingCount(cU)
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}
}

func TestApplyUpdate_AgentChurnIsIncremental(t *testing.T) {
	t.Parallel()

	m := mixture.NewWithComponents()
	require.NoError(t, m.Instantiate(quadPattern(t), 3))
	trackQuadObservables(t, m)

	// Remove one whole complex: all its edges, then its agents.
	doomed := m.ComponentOf(m.AgentsOfType("A")[0])
	u := mixture.NewUpdate()
	for _, a := range doomed.Agents() {
		u.RemoveAgent(a)
	}
	require.NoError(t, m.ApplyUpdate(u))

	assert.Equal(t, 8, m.NAgents())
	requireIndexMatchesBruteForce(t, m)
	requirePartitionInvariants(t, m)

	// Add a fresh dimer by hand: two detached agents plus one edge.
	u = mixture.NewUpdate()
	a, err := u.CreateAgent(pattern.NewAgent("A", pattern.NewSite("a").WithEmpty()))
	require.NoError(t, err)
	b, err := u.CreateAgent(pattern.NewAgent("B",
		pattern.NewSite("b").WithEmpty(), pattern.NewSite("x").WithEmpty()))
	require.NoError(t, err)
	u.AddEdge(mixture.NewEdge(a.Site("a"), b.Site("b")))
	require.NoError(t, m.ApplyUpdate(u))

	assert.Equal(t, 10, m.NAgents())
	requireIndexMatchesBruteForce(t, m)
	requirePartitionInvariants(t, m)
}

func TestApplyUpdate_MergeAndResplit(t *testing.T) {
	t.Parallel()

	m := mixture.NewWithComponents()
	require.NoError(t, m.Instantiate(dimerPattern(t), 6))
	m.TrackComponent(dimerPattern(t).Components()[0])
	m.TrackComponent(singleComponent(t, pattern.NewAgent("A")))

	// Break one dimer, then bind its A to a different B (displacement), which
	// merges two components after a split.
	a0 := m.AgentsOfType("A")[0]
	u := mixture.NewUpdate()
	u.DisconnectSite(a0.Site("a"))
	require.NoError(t, m.ApplyUpdate(u))
	assert.Equal(t, 7, m.NComponents())

	var otherB *pattern.Agent
	for _, b := range m.AgentsOfType("B") {
		if b.Site("b").Bound() {
			otherB = b
			break
		}
	}
	require.NotNil(t, otherB)

	// ConnectSites displaces the existing bond in the same update.
	u = mixture.NewUpdate()
	u.ConnectSites(a0.Site("a"), otherB.Site("b"))
	require.NoError(t, m.ApplyUpdate(u))

	requireIndexMatchesBruteForce(t, m)
	requirePartitionInvariants(t, m)
}

// ─────────────────────────────────────────────────────────────────────────────
// Invariant violations
// ─────────────────────────────────────────────────────────────────────────────

func TestApplyUpdate_RejectsCorruptUpdates(t *testing.T) {
	t.Parallel()

	m := mixture.NewWithComponents()
	require.NoError(t, m.Instantiate(dimerPattern(t), 2))

	// Adding a non-detached agent.
	stray, err := pattern.NewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1)))
	require.NoError(t, err)
	u := mixture.NewUpdate()
	u.AddAgent(stray.Agents()[0])
	err = m.ApplyUpdate(u)
	assert.True(t, errors.IsCode(err, errors.CodeInvariantViolation))

	// Removing an agent that is not a member.
	u = mixture.NewUpdate()
	u.RemoveAgent(pattern.NewAgent("A"))
	err = m.ApplyUpdate(u)
	assert.True(t, errors.IsCode(err, errors.CodeInvariantViolation))

	// Adding an edge between two sites that are already bonded.
	a := m.AgentsOfType("A")[0]
	b := m.AgentsOfType("B")[1]
	u = mixture.NewUpdate()
	u.AddEdge(mixture.NewEdge(a.Site("a"), b.Site("b"))) // both occupied
	err = m.ApplyUpdate(u)
	assert.True(t, errors.IsCode(err, errors.CodeInvariantViolation))
}
