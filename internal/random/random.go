// Package random provides the single injectable pseudorandom source threaded
// through the scheduler, rule choice, embedding choice, and rejection
// sampling.  Every stochastic decision in the engine draws from one Source so
// that a run is fully reproducible from its seed.
package random

import (
	"math"
	"math/rand"

	"github.com/turtacn/KappaForge/pkg/errors"
)

// Source wraps a seeded math/rand generator.  It is not safe for concurrent
// use, matching the engine's single-threaded execution model.
type Source struct {
	rng *rand.Rand
}

// NewSource constructs a Source from a seed.
func NewSource(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform variate in [0, 1).
func (s *Source) Float64() float64 { return s.rng.Float64() }

// Intn returns a uniform variate in [0, n).
func (s *Source) Intn(n int) int { return s.rng.Intn(n) }

// ExpVariate returns an exponentially distributed waiting time with the given
// rate.  A non-positive rate has an infinite expected wait; callers must treat
// that as the zero-reactivity condition before sampling.
func (s *Source) ExpVariate(rate float64) (float64, error) {
	if rate <= 0 || math.IsNaN(rate) {
		return 0, errors.Newf(errors.CodeZeroReactivity, "cannot sample waiting time at rate %g", rate)
	}
	return s.rng.ExpFloat64() / rate, nil
}

// WeightedIndex returns an index drawn proportionally to the non-negative
// weights.  It fails with CodeZeroReactivity when the weights sum to zero.
func (s *Source) WeightedIndex(weights []float64) (int, error) {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 || math.IsNaN(total) {
		return 0, errors.Newf(errors.CodeZeroReactivity, "all %d weights are zero", len(weights))
	}
	x := s.rng.Float64() * total
	for i, w := range weights {
		x -= w
		if x < 0 {
			return i, nil
		}
	}
	// Floating-point underflow on the last subtraction: return the last
	// positively-weighted index.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i, nil
		}
	}
	return 0, errors.Newf(errors.CodeZeroReactivity, "all %d weights are zero", len(weights))
}

// maxRejectionAttempts bounds the fast path of RejectionSample before it falls
// back to a full scan.
const maxRejectionAttempts = 100

// Population is the sampling view RejectionSample needs: positional access to
// a fixed-size collection, satisfied by collections.IndexedSet.
type Population[T any] interface {
	Len() int
	At(i int) T
}

// RejectionSample chooses one element of population that is not excluded.
// It tries uniform draws first (O(1) expected when the exclusion set is small
// relative to the population) and falls back to a full scan.  The excluded
// predicate is consulted with candidate elements.
func RejectionSample[T any](s *Source, population Population[T], excluded func(T) bool) (T, error) {
	var zero T
	n := population.Len()
	if n == 0 {
		return zero, errors.New(errors.CodeInvalidParam, "rejection sample from empty population")
	}

	for i := 0; i < maxRejectionAttempts; i++ {
		candidate := population.At(s.rng.Intn(n))
		if !excluded(candidate) {
			return candidate, nil
		}
	}

	valid := make([]T, 0, n)
	for i := 0; i < n; i++ {
		if item := population.At(i); !excluded(item) {
			valid = append(valid, item)
		}
	}
	if len(valid) == 0 {
		return zero, errors.New(errors.CodeInvalidParam, "no valid elements to choose from")
	}
	return valid[s.rng.Intn(len(valid))], nil
}
