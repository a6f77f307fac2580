package lmp2

// Energies is the three-component result of the energy assembly.
type Energies struct {
	// Correlation sums the contributions of the solved pairs, each
	// including its truncation correction.
	Correlation float64

	// Dipole sums the estimates of the very distant pairs.
	Dipole float64

	// Truncation reports the solved pairs' truncation corrections alone.
	Truncation float64
}

// Total returns the full correlation energy including the very distant
// estimates.
func (e Energies) Total() float64 {
	return e.Correlation + e.Dipole
}

// assembleEnergies recomputes the three components from the current
// amplitudes and stores each solved pair's contribution on the pair.
func (c *Correction) assembleEnergies() Energies {
	var out Energies

	ssScale := c.ctrl.Thresholds.SameSpinScale
	osScale := c.ctrl.Thresholds.OppositeSpinScale

	for _, p := range c.solved {
		p.Energy = p.WeightedEnergy(ssScale, osScale) + p.TruncationError

		out.Correlation += p.Energy
		out.Truncation += p.TruncationError
	}

	for _, p := range c.farPairs {
		out.Dipole += p.Estimate()
	}

	return out
}
