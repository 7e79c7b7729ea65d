package request

import "software-quoter/internal/common/validation"

// ResponseShape is the declared output shape. It is sent to the generator
// and used again to validate what comes back.
func ResponseShape() validation.JSONSchema {
	money := func(description string) validation.Property {
		return validation.Property{Type: "number", Description: description, Minimum: validation.Float64Ptr(0)}
	}

	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"projectTitle":               {Type: "string"},
			"executiveSummary":           {Type: "string", Description: "A professional summary for the client explaining the scope."},
			"totalEstimatedCost":         money("Total calculated cost of the complete project."),
			"mvpCost":                    money("Reduced cost for a Minimum Viable Product."),
			"infrastructureCriticalCost": money("Cost of servers, licences and cloud services needed to launch."),
			"breakdown": {
				Type: "array",
				Items: &validation.Property{
					Type: "object",
					Properties: map[string]validation.Property{
						"category":    {Type: "string", Description: "e.g. Backend Development, Frontend, UX/UI, DevOps, Management"},
						"cost":        money(""),
						"description": {Type: "string"},
					},
					Required: []string{"category", "cost", "description"},
				},
			},
			"marketComparison": {
				Type: "object",
				Properties: map[string]validation.Property{
					"lowEstimate":  money("Low market price for something similar."),
					"highEstimate": money("High market price (top agencies)."),
					"averageDays":  {Type: "number", Description: "Average development days in the market.", Minimum: validation.Float64Ptr(0)},
					"marketTrend":  {Type: "string", Description: "Short note on how this kind of software is currently priced."},
				},
				Required: []string{"lowEstimate", "highEstimate", "averageDays", "marketTrend"},
			},
			"technicalRecommendations": {
				Type:  "array",
				Items: &validation.Property{Type: "string"},
			},
			"clientEmailDraft": {Type: "string", Description: "A formal email draft for sending the quote to the client."},
		},
		Required: []string{
			"projectTitle",
			"executiveSummary",
			"totalEstimatedCost",
			"mvpCost",
			"infrastructureCriticalCost",
			"breakdown",
			"marketComparison",
			"technicalRecommendations",
			"clientEmailDraft",
		},
		AdditionalProperties: true,
	}
}
