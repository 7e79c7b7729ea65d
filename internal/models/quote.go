// internal/models/quote.go
package models

type BreakdownItem struct {
	Category    string  `json:"category"`
	Cost        float64 `json:"cost"`
	Description string  `json:"description"`
}

type MarketComparison struct {
	LowEstimate  float64 `json:"lowEstimate"`
	HighEstimate float64 `json:"highEstimate"`
	AverageDays  float64 `json:"averageDays"`
	MarketTrend  string  `json:"marketTrend"`
}

// QuoteResponse is the structured quote returned by the generator.
type QuoteResponse struct {
	ProjectTitle               string           `json:"projectTitle"`
	ExecutiveSummary           string           `json:"executiveSummary"`
	TotalEstimatedCost         float64          `json:"totalEstimatedCost"`
	MVPCost                    float64          `json:"mvpCost"`
	InfrastructureCriticalCost float64          `json:"infrastructureCriticalCost"`
	Breakdown                  []BreakdownItem  `json:"breakdown"`
	MarketComparison           MarketComparison `json:"marketComparison"`
	TechnicalRecommendations   []string         `json:"technicalRecommendations"`
	ClientEmailDraft           string           `json:"clientEmailDraft"`
}

// BreakdownTotal sums the line-item costs.
func (q QuoteResponse) BreakdownTotal() float64 {
	var sum float64
	for _, item := range q.Breakdown {
		sum += item.Cost
	}
	return sum
}

// Clone returns a deep copy.
func (q *QuoteResponse) Clone() *QuoteResponse {
	if q == nil {
		return nil
	}
	c := *q
	c.Breakdown = append([]BreakdownItem(nil), q.Breakdown...)
	c.TechnicalRecommendations = append([]string(nil), q.TechnicalRecommendations...)
	return &c
}
