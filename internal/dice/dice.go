// Package dice rolls polyhedral dice.
package dice

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// DefaultSides is the die rolled when no valid size is given.
const DefaultSides = 20

// Roll returns a uniform value in [1, sides]. Sides below 1 roll a d20.
func Roll(sides int) int {
	return rollDie(rand.IntN, Normalize(sides))
}

// Normalize maps invalid die sizes to DefaultSides.
func Normalize(sides int) int {
	if sides < 1 {
		return DefaultSides
	}
	return sides
}

// ParseSides reads a die size from a path segment, falling back to
// DefaultSides when it is absent or not a positive integer.
func ParseSides(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultSides
	}
	return Normalize(n)
}

func rollDie(intN func(int) int, sides int) int {
	return intN(sides) + 1
}
