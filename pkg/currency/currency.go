// Package currency represents Kenyan shilling amounts in minor units and
// formats them for display.
package currency

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// USDToKSHRate is the fixed conversion rate used for catalog imports.
const USDToKSHRate = 150

// Amount is a money value in cents (hundredths of a shilling).
type Amount int64

// KSH returns whole shillings as an Amount.
func KSH(shillings int64) Amount {
	return Amount(shillings * 100)
}

// FromFloat converts shillings to an Amount, rounding to the nearest cent.
func FromFloat(shillings float64) Amount {
	return Amount(math.Round(shillings * 100))
}

// Cents returns the amount in minor units.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Shillings returns the amount as a float number of shillings.
func (a Amount) Shillings() float64 {
	return float64(a) / 100
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return a + b
}

// Mul returns a multiplied by a quantity.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

// ApplyRate returns a × basisPoints / 10000 rounded half away from zero.
func (a Amount) ApplyRate(basisPoints int) Amount {
	prod := int64(a) * int64(basisPoints)
	if prod >= 0 {
		return Amount((prod + 5000) / 10000)
	}
	return Amount((prod - 5000) / 10000)
}

// MarshalJSON writes the amount as a plain number of shillings, the layout
// the persisted blobs use.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(a.Shillings(), 'f', -1, 64)), nil
}

// UnmarshalJSON reads a number of shillings. A null leaves the amount
// unchanged, as encoding/json does for plain numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*a = FromFloat(f)
	return nil
}

var printer = message.NewPrinter(language.MustParse("en-KE"))

// FormatPrice renders a as "KSH 44,850", rounded to whole shillings.
func FormatPrice(a Amount) string {
	whole := int64(math.Round(a.Shillings()))
	return printer.Sprintf("KSH %d", whole)
}

// FormatPriceWithDecimals renders a as "KSH 44,850.00".
func FormatPriceWithDecimals(a Amount) string {
	return printer.Sprintf("KSH %.2f", a.Shillings())
}

// ConvertUSDToKSH converts dollars to whole shillings at USDToKSHRate.
func ConvertUSDToKSH(usd float64) Amount {
	return KSH(int64(math.Round(usd * USDToKSHRate)))
}
