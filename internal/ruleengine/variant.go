package ruleengine

import "math/rand/v2"

// RandSource yields uniform draws in [0, 1).
type RandSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand returns the process-wide random source.
func DefaultRand() RandSource { return globalRand{} }

// SelectVariant draws r in [0, totalWeight) and walks the variants in order,
// subtracting each weight until the remainder is <= 0. It returns nil when
// variants is empty.
func SelectVariant(variants []Variant, rnd RandSource) *Variant {
	if len(variants) == 0 {
		return nil
	}

	var total float64
	for i := range variants {
		total += weightOf(variants[i])
	}

	r := rnd.Float64() * total
	for i := range variants {
		r -= weightOf(variants[i])
		if r <= 0 {
			return &variants[i]
		}
	}
	// Floating point residue.
	return &variants[len(variants)-1]
}

func weightOf(v Variant) float64 {
	if v.Weight <= 0 {
		return 1
	}
	return v.Weight
}
