package generatequote

import "software-quoter/internal/common/validation"

// GetInputSchema checks the job variables before any field coercion. Field
// rules for the project itself are applied later by ProjectInput.Coerce.
func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"project"},
		Properties: map[string]validation.Property{
			"project": {
				Type:        "object",
				Description: "Project form fields",
				Required:    []string{"projectName", "description"},
				Properties: map[string]validation.Property{
					"projectName": {Type: "string", MinLength: validation.IntPtr(1), MaxLength: validation.IntPtr(200)},
					"projectType": {Type: "string"},
					"description": {Type: "string", MinLength: validation.IntPtr(1)},
				},
			},
			"files": {
				Type:        "array",
				Description: "Attachments as base64 or data URLs",
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"name", "data"},
					Properties: map[string]validation.Property{
						"name": {Type: "string", MinLength: validation.IntPtr(1)},
						"type": {Type: "string"},
						"data": {Type: "string"},
					},
				},
			},
		},
		AdditionalProperties: true,
	}
}

// GetOutputSchema describes the variables a completed job sets.
func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"quote", "breakdownConsistent", "breakdownDelta", "skippedFiles"},
		Properties: map[string]validation.Property{
			"quote": {
				Type:        "object",
				Description: "Generated quote",
			},
			"breakdownConsistent": {
				Type:        "boolean",
				Description: "Whether the breakdown sums to the declared total",
			},
			"breakdownDelta": {
				Type:        "number",
				Description: "Breakdown sum minus declared total",
			},
			"skippedFiles": {
				Type:        "array",
				Description: "Attachments that could not be used",
			},
		},
	}
}
