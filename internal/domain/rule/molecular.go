package rule

import (
	"fmt"

	"github.com/turtacn/KappaForge/internal/domain/algebra"
	"github.com/turtacn/KappaForge/internal/domain/mixture"
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/internal/random"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// componentWeights is the per-mixture-component weight cache the molecular
// variants refresh in NEmbeddings and consume in Select, kept in mixture
// component order for deterministic weighted sampling.
type componentWeights struct {
	components []*pattern.Component
	weights    []float64
}

func (w *componentWeights) reset() {
	w.components = w.components[:0]
	w.weights = w.weights[:0]
}

func (w *componentWeights) append(c *pattern.Component, weight float64) {
	w.components = append(w.components, c)
	w.weights = append(w.weights, weight)
}

// choose samples one mixture component proportionally to the cached weights.
func (w *componentWeights) choose(rng *random.Source) (*pattern.Component, error) {
	i, err := rng.WeightedIndex(w.weights)
	if err != nil {
		return nil, err
	}
	return w.components[i], nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UnimolecularRule
// ─────────────────────────────────────────────────────────────────────────────

// UnimolecularRule restricts the default counting to selections whose chosen
// embeddings all lie in the same mixture connected component: per component M
// the weight is the product of the per-left-component embedding counts within
// M.  This is the molecularity discipline for intra-complex reactions with
// rates independent of complex size.
type UnimolecularRule struct {
	KappaRule
	cache componentWeights
}

// NewUnimolecularRule constructs a unimolecular-variant rule.
func NewUnimolecularRule(name string, left, right *pattern.Pattern, rate algebra.Expr) (*UnimolecularRule, error) {
	base, err := NewKappaRule(name, left, right, rate)
	if err != nil {
		return nil, err
	}
	return &UnimolecularRule{KappaRule: *base}, nil
}

// RequiresComponents implements Rule.
func (r *UnimolecularRule) RequiresComponents() bool { return true }

// NEmbeddings implements Rule, refreshing the per-component weight cache.
func (r *UnimolecularRule) NEmbeddings(m *mixture.Mixture) int {
	r.cache.reset()
	total := 0
	for _, mc := range m.Components() {
		weight := 1
		for _, c := range r.left.Components() {
			weight *= m.EmbeddingsInComponent(c, mc).Len()
			if weight == 0 {
				break
			}
		}
		if weight > 0 {
			r.cache.append(mc, float64(weight))
		}
		total += weight
	}
	return total
}

// Select implements Rule.  NEmbeddings must have run earlier in the same
// step; a stale cache pointing at a vacuous choice yields a null event.
func (r *UnimolecularRule) Select(m *mixture.Mixture, rng *random.Source) (*mixture.Update, error) {
	chosen, err := r.cache.choose(rng)
	if err != nil {
		if errors.IsCode(err, errors.CodeZeroReactivity) {
			return nil, nil // stale cache: no component carries weight anymore
		}
		return nil, err
	}

	selection := make(map[*pattern.Agent]*pattern.Agent)
	used := make(map[*pattern.Agent]struct{})
	for _, c := range r.left.Components() {
		embs := m.EmbeddingsInComponent(c, chosen)
		if embs.Len() == 0 {
			return nil, nil // stale weight: vacuous choice
		}
		e := embs.At(rng.Intn(embs.Len()))
		for _, a := range c.Agents() {
			host := e.Image(a)
			if _, collision := used[host]; collision {
				return nil, nil
			}
			used[host] = struct{}{}
			selection[a] = host
		}
	}
	return r.produceUpdate(selection)
}

// KappaString implements Rule: the braced rate form marks the unimolecular
// variant, the omitted bimolecular rate rendered as zero.
func (r *UnimolecularRule) KappaString() string {
	return fmt.Sprintf("%s -> %s @ 0.0 {%s}",
		r.left.KappaString(), r.right.KappaString(), r.rate.KappaString())
}

// ─────────────────────────────────────────────────────────────────────────────
// BimolecularRule
// ─────────────────────────────────────────────────────────────────────────────

// BimolecularRule requires a left pattern of exactly two connected components
// embedded in two distinct mixture components: per component M the weight is
// the count of first-component embeddings inside M times the count of
// second-component embeddings outside it.
type BimolecularRule struct {
	KappaRule
	cache componentWeights
}

// NewBimolecularRule constructs a bimolecular-variant rule.
func NewBimolecularRule(name string, left, right *pattern.Pattern, rate algebra.Expr) (*BimolecularRule, error) {
	base, err := NewKappaRule(name, left, right, rate)
	if err != nil {
		return nil, err
	}
	if n := len(left.Components()); n != 2 {
		return nil, errors.Newf(errors.CodeRuleArityInvalid,
			"rule %s: bimolecular left pattern must have exactly 2 components, has %d", name, n)
	}
	return &BimolecularRule{KappaRule: *base}, nil
}

// RequiresComponents implements Rule.
func (r *BimolecularRule) RequiresComponents() bool { return true }

// NEmbeddings implements Rule, refreshing the per-component weight cache.
func (r *BimolecularRule) NEmbeddings(m *mixture.Mixture) int {
	left := r.left.Components()
	c1, c2 := left[0], left[1]
	nGlobal := m.EmbeddingsOf(c2).Len()

	r.cache.reset()
	total := 0
	for _, mc := range m.Components() {
		inside := m.EmbeddingsInComponent(c1, mc).Len()
		outside := nGlobal - m.EmbeddingsInComponent(c2, mc).Len()
		weight := inside * outside
		if weight > 0 {
			r.cache.append(mc, float64(weight))
		}
		total += weight
	}
	return total
}

// Select implements Rule.  The second embedding is drawn by rejection from
// the global pool, excluding those inside the chosen component.
func (r *BimolecularRule) Select(m *mixture.Mixture, rng *random.Source) (*mixture.Update, error) {
	left := r.left.Components()
	c1, c2 := left[0], left[1]

	chosen, err := r.cache.choose(rng)
	if err != nil {
		if errors.IsCode(err, errors.CodeZeroReactivity) {
			return nil, nil // stale cache: no component carries weight anymore
		}
		return nil, err
	}

	inside := m.EmbeddingsInComponent(c1, chosen)
	if inside.Len() == 0 {
		return nil, nil // stale weight: vacuous choice
	}
	e1 := inside.At(rng.Intn(inside.Len()))

	e2, err := random.RejectionSample[*pattern.Embedding](rng, m.EmbeddingsOf(c2),
		func(e *pattern.Embedding) bool {
			return m.ComponentOf(e.RootImage()) == chosen
		})
	if err != nil {
		if errors.IsCode(err, errors.CodeInvalidParam) {
			return nil, nil // stale weight: nothing left outside the component
		}
		return nil, err
	}

	selection := make(map[*pattern.Agent]*pattern.Agent)
	for _, a := range c1.Agents() {
		selection[a] = e1.Image(a)
	}
	for _, a := range c2.Agents() {
		selection[a] = e2.Image(a)
	}
	return r.produceUpdate(selection)
}

// KappaString implements Rule: the leading rate is the bimolecular one, the
// omitted unimolecular rate rendered as zero in braces.
func (r *BimolecularRule) KappaString() string {
	return fmt.Sprintf("%s -> %s @ %s {0.0}",
		r.left.KappaString(), r.right.KappaString(), r.rate.KappaString())
}
