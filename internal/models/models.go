// Package models provides the built-in example systems the CLI runs and the
// end-to-end tests exercise.  Each builder assembles its patterns, rules, and
// observables programmatically; the surface-language texts appear alongside
// in comments for cross-reference with the reference simulator.
package models

import (
	"github.com/turtacn/KappaForge/internal/domain/algebra"
	"github.com/turtacn/KappaForge/internal/domain/chemistry"
	"github.com/turtacn/KappaForge/internal/domain/mixture"
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/internal/domain/rule"
	"github.com/turtacn/KappaForge/internal/domain/system"
	"github.com/turtacn/KappaForge/internal/random"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// Builder assembles a ready-to-run system from a seed.
type Builder func(seed int64, opts ...system.Option) (*system.System, error)

// registry maps model names to builders; registryOrder lists the names in
// registration order.
var registry = map[string]Builder{
	"heterodimerization": func(seed int64, opts ...system.Option) (*system.System, error) {
		return Heterodimerization(chemistry.DiffusionRate*2.5, seed, opts...)
	},
	"unbinding": Unbinding,
}

var registryOrder = []string{"heterodimerization", "unbinding"}

// Names returns the registered model names.
func Names() []string {
	out := make([]string, len(registryOrder))
	copy(out, registryOrder)
	return out
}

// Build constructs a registered model by name.
func Build(name string, seed int64, opts ...system.Option) (*system.System, error) {
	b, ok := registry[name]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "unknown model %q", name)
	}
	return b(seed, opts...)
}

// Heterodimerization is the classic A + B ⇌ AB benchmark in a mammalian cell
// volume:
//
//	%init: 1000 A(x[.])
//	%init: 1000 B(x[.])
//	%obs: 'AB' |A(x[1]), B(x[1])|
//	A(x[.]), B(x[.]) <-> A(x[1]), B(x[1]) @ k_on/(N_A·V), 2.5
func Heterodimerization(kOn float64, seed int64, opts ...system.Option) (*system.System, error) {
	const (
		nA     = 1000
		nB     = 1000
		volume = 2.25e-12
		kOff   = 2.5
	)

	m := mixture.New()
	if err := m.Instantiate(pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("x").WithEmpty()),
	), nA); err != nil {
		return nil, err
	}
	if err := m.Instantiate(pattern.MustNewPattern(
		pattern.NewAgent("B", pattern.NewSite("x").WithEmpty()),
	), nB); err != nil {
		return nil, err
	}

	bindLeft := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("x").WithEmpty()),
		pattern.NewAgent("B", pattern.NewSite("x").WithEmpty()),
	)
	bindRight := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("x").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("x").WithBond(1)),
	)
	bind, err := rule.NewKappaRule("bind", bindLeft, bindRight,
		algebra.Lit(chemistry.KineticToStochasticOnRate(kOn, volume, 2)))
	if err != nil {
		return nil, err
	}

	unbindLeft := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("x").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("x").WithBond(1)),
	)
	unbindRight := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("x").WithEmpty()),
		pattern.NewAgent("B", pattern.NewSite("x").WithEmpty()),
	)
	unbind, err := rule.NewKappaRule("unbind", unbindLeft, unbindRight, algebra.Lit(kOff))
	if err != nil {
		return nil, err
	}

	dimer := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("x").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("x").WithBond(1)),
	).Components()[0]

	base := []system.Option{
		system.WithRandom(random.NewSource(seed)),
		system.WithObservables(
			system.Declaration{Name: "AB", Expr: algebra.Count(dimer)},
		),
	}
	return system.New(m, []rule.Rule{bind, unbind}, append(base, opts...)...)
}

// Unbinding dissociates ten preformed dimers to completion:
//
//	%init: 10 A(a[1]), B(b[1])
//	%obs: 'bound' |A(a[1]), B(b[1])|
//	%obs: 'freeA' |A(a[.])|
//	A(a[1]), B(b[1]) -> A(a[.]), B(b[.]) @ 1.0
func Unbinding(seed int64, opts ...system.Option) (*system.System, error) {
	const nDimers = 10

	m := mixture.New()
	if err := m.Instantiate(pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1)),
	), nDimers); err != nil {
		return nil, err
	}

	left := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithBond(1)),
		pattern.NewAgent("B", pattern.NewSite("b").WithBond(1)),
	)
	right := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithEmpty()),
		pattern.NewAgent("B", pattern.NewSite("b").WithEmpty()),
	)
	dissociate, err := rule.NewKappaRule("dissociate", left, right, algebra.Lit(1.0))
	if err != nil {
		return nil, err
	}

	bound := left.Components()[0]
	freeA := pattern.MustNewPattern(
		pattern.NewAgent("A", pattern.NewSite("a").WithEmpty()),
	).Components()[0]

	base := []system.Option{
		system.WithRandom(random.NewSource(seed)),
		system.WithObservables(
			system.Declaration{Name: "bound", Expr: algebra.Count(bound)},
			system.Declaration{Name: "freeA", Expr: algebra.Count(freeA)},
		),
	}
	return system.New(m, []rule.Rule{dissociate}, append(base, opts...)...)
}
