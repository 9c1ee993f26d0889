package volume

import (
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the intensity distribution of a grid
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    byte    `json:"min"`
	Max    byte    `json:"max"`
}

// Stats computes mean, standard deviation and range over every sample
func (g *Grid) Stats() Stats {
	if len(g.data) == 0 {
		return Stats{}
	}

	values := make([]float64, len(g.data))
	lo, hi := g.data[0], g.data[0]
	for i, v := range g.data {
		values[i] = float64(v)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Stats{Mean: mean, StdDev: std, Min: lo, Max: hi}
}
