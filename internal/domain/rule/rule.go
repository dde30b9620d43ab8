// Package rule provides the rewrite rules of the engine: a left match
// pattern, a right replacement pattern of equal slot count, and a rate
// expression.  Three variants differ in how embeddings are counted and
// sampled: the default mass-action product, the unimolecular restriction to a
// single mixture component, and the bimolecular requirement of two distinct
// ones.
package rule

import (
	"fmt"

	"github.com/turtacn/KappaForge/internal/domain/algebra"
	"github.com/turtacn/KappaForge/internal/domain/mixture"
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/internal/random"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// Rule is one rewrite rule of a system.  NEmbeddings must be called before
// Select within a step: the unimolecular and bimolecular variants cache
// per-mixture-component weights there that Select consumes.  Select returns
// (nil, nil) for a null event: a selection that collided or went vacuous, no
// update produced, the clock still advances.
type Rule interface {
	// Name identifies the rule in tallies, logs, and snapshots.
	Name() string

	// LeftComponents returns the connected components of the left pattern;
	// the owning system tracks each of them in its mixture.
	LeftComponents() []*pattern.Component

	// Rate evaluates the rule's stochastic rate expression.
	Rate(env algebra.Env) (float64, error)

	// NEmbeddings counts the ways the left pattern maps into the mixture
	// under the variant's molecularity discipline.
	NEmbeddings(m *mixture.Mixture) int

	// Select samples one embedding of the left pattern and translates it into
	// a mixture update, or reports a null event as (nil, nil).
	Select(m *mixture.Mixture, rng *random.Source) (*mixture.Update, error)

	// RequiresComponents reports whether the variant needs a
	// component-tracking mixture.
	RequiresComponents() bool

	// KappaString renders the rule declaration for snapshots.
	KappaString() string
}

// Reactivity is the rule's propensity: embeddings × rate.
func Reactivity(r Rule, m *mixture.Mixture, env algebra.Env) (float64, error) {
	rate, err := r.Rate(env)
	if err != nil {
		return 0, err
	}
	return float64(r.NEmbeddings(m)) * rate, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// KappaRule — the default (molecularity-independent) variant
// ─────────────────────────────────────────────────────────────────────────────

// KappaRule counts the product of the per-left-component embedding counts and
// samples each component's embedding uniformly and independently.  Two chosen
// embeddings overlapping in the mixture make the event null; the over-count of
// such collisions is the mass-action approximation the modeling domain
// expects, and symmetry factors are deliberately not divided out (models
// compensate in the rate coefficient).
type KappaRule struct {
	name  string
	left  *pattern.Pattern
	right *pattern.Pattern
	rate  algebra.Expr
}

// NewKappaRule constructs a default-variant rule.  The left and right
// patterns must have the same slot count.
func NewKappaRule(name string, left, right *pattern.Pattern, rate algebra.Expr) (*KappaRule, error) {
	if left.NSlots() != right.NSlots() {
		return nil, errors.Newf(errors.CodeRuleSlotMismatch,
			"rule %s: left has %d slots, right has %d", name, left.NSlots(), right.NSlots())
	}
	return &KappaRule{name: name, left: left, right: right, rate: rate}, nil
}

// Name implements Rule.
func (r *KappaRule) Name() string { return r.name }

// Left returns the rule's match pattern.
func (r *KappaRule) Left() *pattern.Pattern { return r.left }

// Right returns the rule's replacement pattern.
func (r *KappaRule) Right() *pattern.Pattern { return r.right }

// LeftComponents implements Rule.
func (r *KappaRule) LeftComponents() []*pattern.Component { return r.left.Components() }

// RequiresComponents implements Rule.
func (r *KappaRule) RequiresComponents() bool { return false }

// Rate implements Rule.
func (r *KappaRule) Rate(env algebra.Env) (float64, error) {
	return r.rate.Evaluate(env)
}

// NEmbeddings implements Rule: the product over the left components of their
// embedding counts.
func (r *KappaRule) NEmbeddings(m *mixture.Mixture) int {
	n := 1
	for _, c := range r.left.Components() {
		n *= m.EmbeddingsOf(c).Len()
	}
	return n
}

// Select implements Rule.
func (r *KappaRule) Select(m *mixture.Mixture, rng *random.Source) (*mixture.Update, error) {
	selection := make(map[*pattern.Agent]*pattern.Agent)
	used := make(map[*pattern.Agent]struct{})

	for _, c := range r.left.Components() {
		embs := m.EmbeddingsOf(c)
		if embs.Len() == 0 {
			return nil, errors.Newf(errors.CodeInternal,
				"rule %s selected with no embeddings of %s", r.name, c.KappaString())
		}
		chosen := embs.At(rng.Intn(embs.Len()))
		for _, a := range c.Agents() {
			host := chosen.Image(a)
			if _, collision := used[host]; collision {
				return nil, nil // two components landed on the same agent
			}
			used[host] = struct{}{}
			selection[a] = host
		}
	}
	return r.produceUpdate(selection)
}

// KappaString implements Rule.
func (r *KappaRule) KappaString() string {
	return fmt.Sprintf("%s -> %s @ %s",
		r.left.KappaString(), r.right.KappaString(), r.rate.KappaString())
}
