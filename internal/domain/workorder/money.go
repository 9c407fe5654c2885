package workorder

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor units (cents).
type Money int64

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Times multiplies a unit price by an integer quantity.
func (m Money) Times(qty int64) Money {
	return Money(int64(m) * qty)
}

// ParseMoney accepts "12", "12.5" or "12.34".
func ParseMoney(raw string) (Money, error) {
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if text == "" {
		return 0, validationf("amount is required")
	}
	negative := strings.HasPrefix(text, "-")
	text = strings.TrimPrefix(text, "-")

	whole, frac, hasFrac := strings.Cut(text, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, validationf("invalid amount %q", raw)
	}
	cents := int64(0)
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, validationf("invalid amount %q", raw)
		}
		if len(frac) == 1 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, validationf("invalid amount %q", raw)
		}
	}
	if units > (math.MaxInt64-cents)/100 {
		return 0, validationf("amount %q out of range", raw)
	}
	total := units*100 + cents
	if negative {
		total = -total
	}
	return Money(total), nil
}

// LaborCost prices a duration at an hourly rate, rounded to the nearest cent.
func LaborCost(minutes float64, hourlyRate Money) Money {
	if minutes <= 0 || hourlyRate <= 0 {
		return 0
	}
	return Money(math.Round(minutes * float64(hourlyRate) / 60))
}
