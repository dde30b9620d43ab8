package rule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/KappaForge/internal/domain/algebra"
	"github.com/turtacn/KappaForge/internal/domain/mixture"
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/internal/domain/rule"
	"github.com/turtacn/KappaForge/internal/random"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixture builders (fresh object graphs per call — patterns are mutable)
// ─────────────────────────────────────────────────────────────────────────────

// freeAB is A(), B().
func freeAB() *pattern.Pattern {
	return pattern.MustNewPattern(pattern.NewAgent("A"), pattern.NewAgent("B"))
}

// looseBA is B(), A().
func looseBA() *pattern.Pattern {
	return pattern.MustNewPattern(pattern.NewAgent("B"), pattern.NewAgent("A"))
}

// dimerABC is A(a[1]), B(b[1]), C().
func dimerABC() *pattern.Pattern {
	return pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1)),
		pattern.NewAgent("C"))
}

// dimerAB is A(a[1]), B(b[1]).
func dimerAB() *pattern.Pattern {
	return pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1)))
}

// track registers a rule's left components (and any extra observables) the
// way a system would at construction.
func track(m *mixture.Mixture, r rule.Rule, extra ...*pattern.Component) {
	for _, c := range r.LeftComponents() {
		m.TrackComponent(c)
	}
	for _, c := range extra {
		m.TrackComponent(c)
	}
}

func instantiate(t *testing.T, m *mixture.Mixture, p *pattern.Pattern, n int) {
	t.Helper()
	require.NoError(t, m.Instantiate(p, n))
}

func mustCount(t *testing.T, m *mixture.Mixture, c *pattern.Component) int {
	t.Helper()
	n, err := m.EmbeddingCount(c)
	require.NoError(t, err)
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Embedding counts
// ─────────────────────────────────────────────────────────────────────────────

func TestKappaRule_NEmbeddings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		mixture  func() *pattern.Pattern
		left     func() *pattern.Pattern
		nCopies  int
		expected int
	}{
		{"two loose agents", freeAB, looseBA, 10, 100},
		{"self product counts automorphic picks", func() *pattern.Pattern {
			return pattern.MustNewPattern(pattern.NewAgent("A"))
		}, func() *pattern.Pattern {
			return pattern.MustNewPattern(pattern.NewAgent("A"), pattern.NewAgent("A"))
		}, 10, 100},
		{"bonded pair with spectator", dimerABC, dimerABC, 10, 100},
		{"loose triple", dimerABC, func() *pattern.Pattern {
			return pattern.MustNewPattern(pattern.NewAgent("A"), pattern.NewAgent("B"), pattern.NewAgent("C"))
		}, 10, 1000},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := mixture.New()
			instantiate(t, m, tc.mixture(), tc.nCopies)

			left := tc.left()
			r, err := rule.NewKappaRule("r", left, tc.left(), algebra.Lit(1.0))
			require.NoError(t, err)
			track(m, r)

			assert.Equal(t, tc.expected, r.NEmbeddings(m))
		})
	}
}

func TestUnimolecularRule_NEmbeddings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		mixture  func() *pattern.Pattern
		nCopies  int
		expected int
	}{
		{"disconnected agents never pair", freeAB, 10, 0},
		{"one pair per dimer", dimerAB, 10, 10},
		{"chain offers four pairings", func() *pattern.Pattern {
			// A(a1[1]), B(b1[1], b2[2]), B(b1[2], b2[3]), A(a2[3])
			return pattern.MustNewPattern(
				pattern.NewAgent("A", pattern.NewSite("a1").WithBond(1)),
				pattern.NewAgent("B", pattern.NewSite("b1").WithBond(1), pattern.NewSite("b2").WithBond(2)),
				pattern.NewAgent("B", pattern.NewSite("b1").WithBond(2), pattern.NewSite("b2").WithBond(3)),
				pattern.NewAgent("A", pattern.NewSite("a2").WithBond(3)))
		}, 10, 40},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := mixture.NewWithComponents()
			instantiate(t, m, tc.mixture(), tc.nCopies)

			r, err := rule.NewUnimolecularRule("r", looseBA(), looseBA(), algebra.Lit(1.0))
			require.NoError(t, err)
			track(m, r)

			assert.Equal(t, tc.expected, r.NEmbeddings(m))
		})
	}
}

func TestBimolecularRule_NEmbeddings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		mixture  func() *pattern.Pattern
		nCopies  int
		expected int
	}{
		{"loose agents pair across components", freeAB, 10, 100},
		{"bonded pairs exclude own component", dimerAB, 10, 90},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := mixture.NewWithComponents()
			instantiate(t, m, tc.mixture(), tc.nCopies)

			r, err := rule.NewBimolecularRule("r", looseBA(), looseBA(), algebra.Lit(1.0))
			require.NoError(t, err)
			track(m, r)

			assert.Equal(t, tc.expected, r.NEmbeddings(m))
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Construction errors
// ─────────────────────────────────────────────────────────────────────────────

func TestRuleConstructionErrors(t *testing.T) {
	t.Parallel()

	_, err := rule.NewKappaRule("r", freeAB(), pattern.MustNewPattern(pattern.NewAgent("A")), algebra.Lit(1.0))
	assert.True(t, errors.IsCode(err, errors.CodeRuleSlotMismatch))

	one := pattern.MustNewPattern(pattern.NewAgent("A"))
	_, err = rule.NewBimolecularRule("r", one, pattern.MustNewPattern(pattern.NewAgent("A")), algebra.Lit(1.0))
	assert.True(t, errors.IsCode(err, errors.CodeRuleArityInvalid))
}

// ─────────────────────────────────────────────────────────────────────────────
// Rule application
// ─────────────────────────────────────────────────────────────────────────────

func TestKappaRule_UnbindingRunsToCompletion(t *testing.T) {
	t.Parallel()

	const nCopies = 10
	rng := random.NewSource(42)

	m := mixture.New()
	instantiate(t, m, dimerAB(), nCopies)

	right := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithEmpty()),
		pattern.NewAgent("B", pattern.NewSite("b").WithEmpty()))
	r, err := rule.NewKappaRule("unbind", dimerAB(), right, algebra.Lit(1.0))
	require.NoError(t, err)

	bound := dimerAB().Components()[0]
	freeA := pattern.MustNewPattern(pattern.NewAgent("A", pattern.NewSite("a").WithEmpty())).Components()[0]
	anyB := pattern.MustNewPattern(pattern.NewAgent("B", pattern.NewSite("b").WithLinkWildcard())).Components()[0]
	track(m, r, bound, freeA, anyB)

	require.Equal(t, nCopies, r.NEmbeddings(m))
	require.Equal(t, nCopies, mustCount(t, m, bound))
	require.Equal(t, 0, mustCount(t, m, freeA))

	for i := 1; i <= nCopies; i++ {
		upd, err := r.Select(m, rng)
		require.NoError(t, err)
		require.NotNil(t, upd)
		require.Len(t, upd.EdgesToRemove(), 1)
		require.NoError(t, m.ApplyUpdate(upd))

		assert.Equal(t, nCopies-i, mustCount(t, m, bound))
		assert.Equal(t, i, mustCount(t, m, freeA))
		assert.Equal(t, nCopies, mustCount(t, m, anyB))
	}
	assert.Zero(t, r.NEmbeddings(m))
}

func TestKappaRule_BindingSaturates(t *testing.T) {
	t.Parallel()

	const nCopies = 4
	rng := random.NewSource(7)

	m := mixture.New()
	instantiate(t, m, pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithEmpty()),
		pattern.NewAgent("B", pattern.NewSite("b").WithEmpty())), nCopies)

	left := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithEmpty()),
		pattern.NewAgent("B", pattern.NewSite("b").WithEmpty()))
	r, err := rule.NewKappaRule("bind", left, dimerAB(), algebra.Lit(1.0))
	require.NoError(t, err)

	bound := dimerAB().Components()[0]
	track(m, r, bound)

	require.Equal(t, nCopies*nCopies, r.NEmbeddings(m))
	require.Equal(t, 0, mustCount(t, m, bound))

	for i := 1; i <= nCopies; i++ {
		upd, err := r.Select(m, rng)
		require.NoError(t, err)
		require.NotNil(t, upd)
		require.Len(t, upd.EdgesToAdd(), 1)
		require.NoError(t, m.ApplyUpdate(upd))
	}

	assert.Equal(t, nCopies, mustCount(t, m, bound))
	assert.Zero(t, r.NEmbeddings(m), "no further applications are possible")
}

func TestKappaRule_RewiringAndStateChange(t *testing.T) {
	t.Parallel()

	const nCopies = 50
	rng := random.NewSource(23)

	// Mixture: A(a[1]), B(b[1], x[3]), C(c[2]{p}), D(d[2]{p}, x[3])
	quad := func(cState, dState string) *pattern.Pattern {
		return pattern.MustNewPattern(
			pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
			pattern.NewAgent("B", pattern.NewSite("b").WithBond(1), pattern.NewSite("x").WithBond(3)),
			pattern.NewAgent("C", pattern.NewSite("c").WithBond(2).WithState(cState)),
			pattern.NewAgent("D", pattern.NewSite("d").WithBond(2).WithState(dState), pattern.NewSite("x").WithBond(3)))
	}
	m := mixture.New()
	instantiate(t, m, quad("p", "p"), nCopies)

	// Rule: rewire A to C, free B and D, flip C's state to u.
	right := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("b").WithEmpty(), pattern.NewSite("x").WithBond(3)),
		pattern.NewAgent("C", pattern.NewSite("c").WithBond(1).WithState("u")),
		pattern.NewAgent("D", pattern.NewSite("d").WithEmpty().WithState("p"), pattern.NewSite("x").WithBond(3)))
	r, err := rule.NewKappaRule("rewire", quad("p", "p"), right, algebra.Lit(1.0))
	require.NoError(t, err)

	acPair := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("C", pattern.NewSite("c").WithBond(1))).Components()[0]
	boundB := pattern.MustNewPattern(
		pattern.NewAgent("B", pattern.NewSite("b").WithBound())).Components()[0]
	uC := pattern.MustNewPattern(
		pattern.NewAgent("C", pattern.NewSite("c").WithState("u"))).Components()[0]
	whole := quad("p", "p").Components()[0]
	track(m, r, acPair, boundB, uC, whole)

	require.Equal(t, nCopies, r.NEmbeddings(m))
	require.Equal(t, nCopies, mustCount(t, m, whole))
	require.Equal(t, 0, mustCount(t, m, acPair))

	for i := 1; i <= nCopies; i++ {
		upd, err := r.Select(m, rng)
		require.NoError(t, err)
		require.NotNil(t, upd)

		assert.Len(t, upd.EdgesToRemove(), 2)
		assert.Len(t, upd.EdgesToAdd(), 1)
		assert.Len(t, upd.AgentsChanged(), 1)
		require.NoError(t, m.ApplyUpdate(upd))

		assert.Equal(t, nCopies-i, mustCount(t, m, whole))
		assert.Equal(t, i, mustCount(t, m, acPair))
		assert.Equal(t, nCopies-i, mustCount(t, m, boundB))
		assert.Equal(t, i, mustCount(t, m, uC))
	}
}

func TestKappaRule_SelfOverlapIsNullEvent(t *testing.T) {
	t.Parallel()

	rng := random.NewSource(5)
	m := mixture.New()
	instantiate(t, m, pattern.MustNewPattern(pattern.NewAgent("A")), 1)

	double := pattern.MustNewPattern(pattern.NewAgent("A"), pattern.NewAgent("A"))
	r, err := rule.NewKappaRule("pair", double, pattern.MustNewPattern(pattern.NewAgent("A"), pattern.NewAgent("A")), algebra.Lit(1.0))
	require.NoError(t, err)
	track(m, r)

	// One agent, two slots: every selection collides.
	require.Equal(t, 1, r.NEmbeddings(m))
	upd, err := r.Select(m, rng)
	require.NoError(t, err)
	assert.Nil(t, upd)
}

func TestUnimolecularRule_Application(t *testing.T) {
	t.Parallel()

	const nCopies = 50
	rng := random.NewSource(17)

	// Mixture: A(a[1]{u}), B(b[1]{u})
	init := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1).WithState("u")),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1).WithState("u")))
	m := mixture.NewWithComponents()
	instantiate(t, m, init, nCopies)

	// rule1 (unimolecular): A(a{u}), B(b{u}) -> A(a{p}), B(b{p})
	uniLeft := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithState("u")),
		pattern.NewAgent("B", pattern.NewSite("b").WithState("u")))
	uniRight := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithState("p")),
		pattern.NewAgent("B", pattern.NewSite("b").WithState("p")))
	rule1, err := rule.NewUnimolecularRule("phosphorylate", uniLeft, uniRight, algebra.Lit(1.0))
	require.NoError(t, err)

	// rule2 (default): A(a[1]), B(b[1]) -> A(a[.]), B(b[.])
	unbindRight := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithEmpty()),
		pattern.NewAgent("B", pattern.NewSite("b").WithEmpty()))
	rule2, err := rule.NewKappaRule("unbind", dimerAB(), unbindRight, algebra.Lit(1.0))
	require.NoError(t, err)

	boundU := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1).WithState("u")),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1).WithState("u"))).Components()[0]
	track(m, rule1)
	track(m, rule2, boundU)

	nUnbind := nCopies / 2
	require.Equal(t, nCopies, mustCount(t, m, boundU))

	for i := 1; i <= nUnbind; i++ {
		upd, err := rule2.Select(m, rng)
		require.NoError(t, err)
		require.NotNil(t, upd)
		require.NoError(t, m.ApplyUpdate(upd))

		assert.Equal(t, nCopies-i, mustCount(t, m, boundU))
		assert.Equal(t, nCopies+i, m.NComponents())
		assert.Equal(t, nCopies-i, rule1.NEmbeddings(m))
	}

	for i := 1; i <= nCopies-nUnbind; i++ {
		// The weight cache must be refreshed before every selection.
		rule1.NEmbeddings(m)
		upd, err := rule1.Select(m, rng)
		require.NoError(t, err)
		require.NotNil(t, upd)
		require.NoError(t, m.ApplyUpdate(upd))

		assert.Equal(t, nCopies-nUnbind-i, rule1.NEmbeddings(m))
		assert.Equal(t, nCopies-nUnbind-i, mustCount(t, m, boundU))
	}
}

func TestBimolecularRule_Application(t *testing.T) {
	t.Parallel()

	const nCopies = 50
	rng := random.NewSource(29)

	// Mixture: A(a[.]{u})
	m := mixture.NewWithComponents()
	instantiate(t, m, pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithEmpty().WithState("u"))), nCopies)

	// Rule: A(a{u}), A(a{u}) -> A(a{p}), B(a{p})  (bimolecular)
	left := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithState("u")),
		pattern.NewAgent("A", pattern.NewSite("a").WithState("u")))
	right := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithState("p")),
		pattern.NewAgent("B", pattern.NewSite("a").WithState("p")))
	r, err := rule.NewBimolecularRule("convert", left, right, algebra.Lit(1.0))
	require.NoError(t, err)

	pB := pattern.MustNewPattern(
		pattern.NewAgent("B", pattern.NewSite("a").WithState("p"))).Components()[0]
	track(m, r, pB)

	for i := 1; i <= nCopies/2; i++ {
		r.NEmbeddings(m)
		upd, err := r.Select(m, rng)
		require.NoError(t, err)
		require.NotNil(t, upd)
		require.NoError(t, m.ApplyUpdate(upd))

		remaining := nCopies - 2*i
		assert.Equal(t, remaining*(remaining-1), r.NEmbeddings(m))
		assert.Equal(t, i, mustCount(t, m, pB))
	}
}

func TestRuleKappaString(t *testing.T) {
	t.Parallel()

	r, err := rule.NewKappaRule("unbind", dimerAB(), pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithEmpty()),
		pattern.NewAgent("B", pattern.NewSite("b").WithEmpty())), algebra.Lit(1.0))
	require.NoError(t, err)
	assert.Equal(t, "A(a[1]), B(b[1]) -> A(a[.]), B(b[.]) @ 1", r.KappaString())
}
