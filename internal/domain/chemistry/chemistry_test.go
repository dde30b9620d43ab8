package chemistry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/turtacn/KappaForge/internal/domain/chemistry"
)

func TestKineticToStochasticOnRate(t *testing.T) {
	t.Parallel()

	// First order: no volume scaling.
	assert.InDelta(t, 2.5, chemistry.KineticToStochasticOnRate(2.5, 1e-12, 1), 1e-12)

	// Second order: divide by N_A·V once.
	v := chemistry.CellVolumes["fibro"]
	expected := 2.5e9 / (chemistry.Avogadro * v)
	assert.InEpsilon(t, expected, chemistry.KineticToStochasticOnRate(2.5e9, v, 2), 1e-12)

	// Third order: divide by (N_A·V)².
	expected = 1e9 / (chemistry.Avogadro * v * chemistry.Avogadro * v)
	assert.InEpsilon(t, expected, chemistry.KineticToStochasticOnRate(1e9, v, 3), 1e-12)
}

func TestReferenceTables(t *testing.T) {
	t.Parallel()

	assert.Less(t, chemistry.DissociationConstants["strong"], chemistry.DissociationConstants["weak"])
	assert.Greater(t, chemistry.CellVolumes["fibro"], chemistry.CellVolumes["yeast"])
}
