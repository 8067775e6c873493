// Package similarity computes character-based text similarity using the
// longest-common-substring recursion: the longest shared run is counted,
// then the parts to its left and right are compared the same way.
package similarity

import (
	"strings"
)

// Common returns the number of characters a and b have in common according
// to the longest-common-substring recursion.
func Common(a, b string) int {
	return common([]rune(a), []rune(b))
}

// Percent returns the similarity of a and b as a percentage in [0, 100]:
// twice the common character count over the combined length. The
// comparison is case-insensitive. Two empty strings are 0% similar.
func Percent(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	return float64(common(ra, rb)) * 2 * 100 / float64(total)
}

func common(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	pos1, pos2, length := longestRun(a, b)
	if length == 0 {
		return 0
	}

	sum := length
	if pos1 > 0 && pos2 > 0 {
		sum += common(a[:pos1], b[:pos2])
	}
	if pos1+length < len(a) && pos2+length < len(b) {
		sum += common(a[pos1+length:], b[pos2+length:])
	}
	return sum
}

// longestRun finds the first longest common substring of a and b.
// Ties keep the earliest position in a, then in b.
func longestRun(a, b []rune) (pos1, pos2, length int) {
	for i := range a {
		for j := range b {
			l := 0
			for i+l < len(a) && j+l < len(b) && a[i+l] == b[j+l] {
				l++
			}
			if l > length {
				length = l
				pos1 = i
				pos2 = j
			}
		}
	}
	return pos1, pos2, length
}
