package quote

import (
	"fmt"
	"math"
)

// Money is an amount in minor units (pence, cents) to keep fare math exact.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func GBP(minorUnits int64) Money {
	return Money{Amount: minorUnits, Currency: "GBP"}
}

// Add panics on mixed currencies; FareConfig validation keeps that from
// happening at runtime.
func (m Money) Add(o Money) Money {
	if m.Currency != o.Currency {
		panic(fmt.Sprintf("mixed currencies: %s + %s", m.Currency, o.Currency))
	}
	m.Amount += o.Amount
	return m
}

// MultiplyFloat scales the amount, rounding to the nearest minor unit.
func (m Money) MultiplyFloat(f float64) Money {
	m.Amount = int64(math.Round(float64(m.Amount) * f))
	return m
}

func (m Money) String() string {
	return fmt.Sprintf("%s %d.%02d", m.Currency, m.Amount/100, m.Amount%100)
}
