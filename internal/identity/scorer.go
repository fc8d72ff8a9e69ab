package identity

import "github.com/agnivade/levenshtein"

// LevenshteinScorer scores similarity as 1 - distance/maxlen, so identical
// strings score 1.0 and fully dissimilar strings score 0.0.
type LevenshteinScorer struct{}

func (LevenshteinScorer) Score(query, name string) float64 {
	if query == name {
		return 1.0
	}
	longest := len([]rune(query))
	if n := len([]rune(name)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0.0
	}
	d := levenshtein.ComputeDistance(query, name)
	return 1.0 - float64(d)/float64(longest)
}
