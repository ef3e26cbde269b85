package matching

import "math"

// DefaultWeights favours subject fit, then distance.
var DefaultWeights = WeightProfile{
	Distance:     0.25,
	Subjects:     0.30,
	Price:        0.15,
	Experience:   0.10,
	Availability: 0.10,
	Rating:       0.10,
}

type factor struct {
	name   string
	weight float64
	score  float64
}

// factors lists the six weighted terms in a fixed order so sums are reproducible.
func factors(w WeightProfile, b Breakdown) [6]factor {
	return [6]factor{
		{"distance", w.Distance, b.Distance},
		{"price", w.Price, b.Price},
		{"experience", w.Experience, b.Experience},
		{"availability", w.Availability, b.Availability},
		{"subjects", w.Subjects, b.Subjects},
		{"rating", w.Rating, b.Rating},
	}
}

// Validate rejects negative or non-finite weights.
func (w WeightProfile) Validate() error {
	for _, f := range factors(w, Breakdown{}) {
		switch {
		case math.IsNaN(f.weight) || math.IsInf(f.weight, 0):
			return invalid("weights."+f.name, "must be a finite number")
		case f.weight < 0:
			return invalid("weights."+f.name, "must not be negative, got %v", f.weight)
		}
	}
	return nil
}

// Sum returns the total weight.
func (w WeightProfile) Sum() float64 {
	var s float64
	for _, f := range factors(w, Breakdown{}) {
		s += f.weight
	}
	return s
}

// Normalized scales the weights to sum to 1. An all-zero profile is returned unchanged.
func (w WeightProfile) Normalized() WeightProfile {
	sum := w.Sum()
	if sum == 0 {
		return w
	}
	return WeightProfile{
		Distance:     w.Distance / sum,
		Price:        w.Price / sum,
		Experience:   w.Experience / sum,
		Availability: w.Availability / sum,
		Subjects:     w.Subjects / sum,
		Rating:       w.Rating / sum,
	}
}

func combine(w WeightProfile, b Breakdown) float64 {
	var score float64
	for _, f := range factors(w, b) {
		score += f.weight * f.score
	}
	return score
}
