// Package presentation turns an accepted quote into display-ready data:
// summary cards, chart series, the line-item table and exports.
package presentation

import (
	"fmt"
	"math"

	"software-quoter/internal/models"
)

// Palette is cycled over breakdown categories.
var Palette = []string{"#8b5cf6", "#3b82f6", "#06b6d4", "#10b981", "#f59e0b", "#ec4899"}

const defaultBrand = "Smart Bytes"

type Options struct {
	Brand  string
	Locale string
}

type View struct {
	Title           string         `json:"title"`
	Summary         string         `json:"summary"`
	Total           Amount         `json:"total"`
	Cards           []Card         `json:"cards"`
	Breakdown       []Slice        `json:"breakdown"`
	Comparison      Comparison     `json:"comparison"`
	Table           []Row          `json:"table"`
	Recommendations []string       `json:"recommendations"`
	EmailDraft      string         `json:"emailDraft"`
	Reconciliation  Reconciliation `json:"reconciliation"`
}

type Amount struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
}

type Card struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Caption string `json:"caption,omitempty"`
}

// Slice is one segment of the breakdown pie.
type Slice struct {
	Category string  `json:"category"`
	Amount   Amount  `json:"amount"`
	Percent  float64 `json:"percent"`
	Color    string  `json:"color"`
}

type Comparison struct {
	Bars  []Bar  `json:"bars"`
	Ticks []Tick `json:"ticks"`
	Note  string `json:"note"`
}

type Bar struct {
	Label     string `json:"label"`
	Amount    Amount `json:"amount"`
	Highlight bool   `json:"highlight"`
}

type Tick struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

type Row struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Cost        Amount `json:"cost"`
}

// Reconciliation compares the breakdown sum with the declared total.
type Reconciliation struct {
	BreakdownSum float64 `json:"breakdownSum"`
	Declared     float64 `json:"declared"`
	Delta        float64 `json:"delta"`
	Tolerance    float64 `json:"tolerance"`
	Consistent   bool    `json:"consistent"`
}

// Reconcile allows a difference of one currency unit or 0.5% of the
// total, whichever is larger.
func Reconcile(q *models.QuoteResponse) Reconciliation {
	sum := q.BreakdownTotal()
	delta := sum - q.TotalEstimatedCost
	tolerance := math.Max(1, 0.005*math.Abs(q.TotalEstimatedCost))
	return Reconciliation{
		BreakdownSum: sum,
		Declared:     q.TotalEstimatedCost,
		Delta:        delta,
		Tolerance:    tolerance,
		Consistent:   math.Abs(delta) <= tolerance,
	}
}

// Build derives the view. emailDraft overrides the generated draft when
// the user has edited it.
func Build(q *models.QuoteResponse, emailDraft string, opts Options) View {
	if opts.Brand == "" {
		opts.Brand = defaultBrand
	}
	f := NewFormatter(opts.Locale)
	amount := func(v float64) Amount { return Amount{Value: v, Text: f.Currency(v)} }

	if emailDraft == "" {
		emailDraft = q.ClientEmailDraft
	}

	mc := q.MarketComparison
	v := View{
		Title:   q.ProjectTitle,
		Summary: q.ExecutiveSummary,
		Total:   amount(q.TotalEstimatedCost),
		Cards: []Card{
			{Label: "MVP cost", Value: f.Currency(q.MVPCost), Caption: "Minimum viable product"},
			{Label: "Critical infrastructure", Value: f.Currency(q.InfrastructureCriticalCost), Caption: "Servers, licences and cloud services"},
			{Label: "Market time", Value: fmt.Sprintf("%d weeks", Weeks(mc.AverageDays)), Caption: fmt.Sprintf("~%s working days", f.Number(mc.AverageDays))},
		},
		Recommendations: append([]string{}, q.TechnicalRecommendations...),
		EmailDraft:      emailDraft,
		Reconciliation:  Reconcile(q),
	}

	sum := q.BreakdownTotal()
	for i, item := range q.Breakdown {
		pct := 0.0
		if sum > 0 {
			pct = math.Round(item.Cost/sum*1000) / 10
		}
		v.Breakdown = append(v.Breakdown, Slice{
			Category: item.Category,
			Amount:   amount(item.Cost),
			Percent:  pct,
			Color:    Palette[i%len(Palette)],
		})
		v.Table = append(v.Table, Row{
			Category:    item.Category,
			Description: item.Description,
			Cost:        amount(item.Cost),
		})
	}

	v.Comparison = Comparison{
		Bars: []Bar{
			{Label: opts.Brand, Amount: amount(q.TotalEstimatedCost), Highlight: true},
			{Label: "Premium / Agency", Amount: amount(mc.HighEstimate)},
		},
		Ticks: AxisTicks(math.Max(q.TotalEstimatedCost, mc.HighEstimate), 4),
		Note:  mc.MarketTrend,
	}

	return v
}
