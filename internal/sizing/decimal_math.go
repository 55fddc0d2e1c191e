package sizing

import (
	"math"

	"github.com/shopspring/decimal"
)

var decOne = decimal.NewFromInt(1)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// offsetLevel returns entry shifted by pct in the stop direction for the
// given side: below entry for longs, above for shorts.
func offsetLevel(entry, pct float64, long bool) float64 {
	if entry <= 0 {
		return 0
	}
	base := decFromFloat(entry)
	pctDec := decFromFloat(pct)
	var factor decimal.Decimal
	if long {
		factor = decOne.Sub(pctDec)
	} else {
		factor = decOne.Add(pctDec)
	}
	return decToFloat(base.Mul(factor))
}

// targetLevel returns entry shifted by pct in the profit direction.
func targetLevel(entry, pct float64, long bool) float64 {
	return offsetLevel(entry, pct, !long)
}
