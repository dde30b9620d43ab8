package random_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/KappaForge/internal/random"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// slicePopulation adapts a slice to the sampling view.
type slicePopulation []int

func (p slicePopulation) Len() int     { return len(p) }
func (p slicePopulation) At(i int) int { return p[i] }

func TestSource_Reproducibility(t *testing.T) {
	t.Parallel()

	a := random.NewSource(7)
	b := random.NewSource(7)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestExpVariate(t *testing.T) {
	t.Parallel()

	src := random.NewSource(1)
	total := 0.0
	const n = 10000
	for i := 0; i < n; i++ {
		v, err := src.ExpVariate(2.0)
		require.NoError(t, err)
		require.Greater(t, v, 0.0)
		total += v
	}
	// Mean of Exp(2) is 0.5.
	assert.InDelta(t, 0.5, total/n, 0.05)

	_, err := src.ExpVariate(0)
	assert.True(t, errors.IsCode(err, errors.CodeZeroReactivity))
}

func TestWeightedIndex(t *testing.T) {
	t.Parallel()

	src := random.NewSource(3)
	weights := []float64{0, 1, 3}
	counts := make([]int, len(weights))
	const n = 20000
	for i := 0; i < n; i++ {
		idx, err := src.WeightedIndex(weights)
		require.NoError(t, err)
		counts[idx]++
	}
	assert.Zero(t, counts[0])
	assert.InDelta(t, 0.25, float64(counts[1])/n, 0.02)
	assert.InDelta(t, 0.75, float64(counts[2])/n, 0.02)

	_, err := src.WeightedIndex([]float64{0, 0})
	assert.True(t, errors.IsCode(err, errors.CodeZeroReactivity))
}

func TestRejectionSample(t *testing.T) {
	t.Parallel()

	src := random.NewSource(11)
	population := slicePopulation{1, 2, 3, 4, 5}

	for i := 0; i < 200; i++ {
		v, err := random.RejectionSample[int](src, population, func(x int) bool { return x <= 3 })
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 4)
	}
}

func TestRejectionSample_FallbackScan(t *testing.T) {
	t.Parallel()

	src := random.NewSource(13)
	population := make(slicePopulation, 1000)
	for i := range population {
		population[i] = i
	}

	// Exclude everything but one element; the fast path will almost surely
	// exhaust its attempts and the scan must still find the survivor.
	v, err := random.RejectionSample[int](src, population, func(x int) bool { return x != 617 })
	require.NoError(t, err)
	assert.Equal(t, 617, v)
}

func TestRejectionSample_Exhausted(t *testing.T) {
	t.Parallel()

	src := random.NewSource(17)
	_, err := random.RejectionSample[int](src, slicePopulation{1, 2}, func(int) bool { return true })
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = random.RejectionSample[int](src, slicePopulation{}, func(int) bool { return false })
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}
