package presentation

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts the way the quote is shown to clients.
type Formatter struct {
	printer *message.Printer
}

func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// Currency formats v with thousands separators and at most two decimals,
// e.g. 16800 -> "$16,800".
func (f *Formatter) Currency(v float64) string {
	return "$" + f.Number(v)
}

func (f *Formatter) Number(v float64) string {
	return f.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(2)))
}

// Weeks converts working days to whole weeks, rounding half up.
func Weeks(days float64) int {
	return int(math.Floor(days/7 + 0.5))
}

// AxisLabel renders a value axis tick in thousands, e.g. 12500 -> "$12.5k".
func AxisLabel(v float64) string {
	return "$" + strconv.FormatFloat(v/1000, 'f', -1, 64) + "k"
}

// AxisTicks returns evenly spaced ticks from zero covering max.
func AxisTicks(max float64, count int) []Tick {
	if count < 1 {
		count = 4
	}
	if max <= 0 {
		return []Tick{{Value: 0, Label: AxisLabel(0)}}
	}

	step := niceStep(max / float64(count))
	ticks := []Tick{}
	for v := 0.0; ; v += step {
		ticks = append(ticks, Tick{Value: v, Label: AxisLabel(v)})
		if v >= max {
			break
		}
	}
	return ticks
}

// niceStep rounds raw up to 1, 2, 2.5 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	exp := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if raw <= m*exp {
			return m * exp
		}
	}
	return 10 * exp
}
