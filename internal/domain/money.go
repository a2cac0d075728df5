package domain

import (
	"fmt"
	"math"
)

// Money is an amount in micro-dollars (6-decimal fixed point).
type Money int64

const MicrosPerDollar = 1_000_000

// Dollars converts a float dollar amount, rounding to the nearest micro-dollar.
func Dollars(d float64) Money {
	return Money(math.Round(d * MicrosPerDollar))
}

func (m Money) Float() float64 {
	return float64(m) / MicrosPerDollar
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%06d", sign, v/MicrosPerDollar, v%MicrosPerDollar)
}
