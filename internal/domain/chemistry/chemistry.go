// Package chemistry provides the kinetic constants and unit conversions
// models lean on when translating laboratory rate measurements into the
// stochastic per-event rates the scheduler consumes.
package chemistry

// Physical constants and reference values.
const (
	// Avogadro is Avogadro's number, molecules per mole.
	Avogadro = 6.02214e23

	// DiffusionRate is the diffusion-limited on-rate for protein-protein
	// association, per molar per second.
	DiffusionRate = 1e9

	// RoomTemperature in kelvin.
	RoomTemperature = 273.15 + 25
)

// DissociationConstants holds reference Kd values (molar) for weak, moderate,
// and strong binding.
var DissociationConstants = map[string]float64{
	"weak":     1e-6,
	"moderate": 1e-7,
	"strong":   1e-8,
}

// CellVolumes holds reference cell volumes in liters.
var CellVolumes = map[string]float64{
	"fibro": 2.25e-12,
	"yeast": 4.2e-14,
}

// KineticToStochasticOnRate converts a kinetic on-rate constant (per molar
// per second for order 2) into the per-event stochastic rate for a reaction
// of the given order in a compartment of the given volume (liters):
// k / (N_A · V)^(order-1).
func KineticToStochasticOnRate(kOn, volume float64, order int) float64 {
	scale := 1.0
	for i := 1; i < order; i++ {
		scale *= Avogadro * volume
	}
	return kOn / scale
}
