package generatequote

import (
	"encoding/json"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/validation"
	"software-quoter/pkg/registry"
)

// Activity describes this job type for the activity registry.
func Activity(cfg *Config) registry.Activity {
	return registry.Activity{
		ID:                   TaskType,
		DisplayName:          "Generate Quote",
		Description:          "Generates a software development quote from project fields and attachments",
		Category:             "quoting",
		Version:              "1.0.0",
		TaskType:             TaskType,
		ImplementationStatus: "completed",
		InputSchema:          schemaMap(GetInputSchema()),
		OutputSchema:         schemaMap(GetOutputSchema()),
		ErrorCodes:           bpmnErrorCodes(),
		Timeout:              cfg.Timeout.String(),
		Retries:              0,
		Tags:                 []string{"genai", "quote"},
	}
}

func schemaMap(s validation.JSONSchema) map[string]interface{} {
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]interface{}{}
	}
	out := map[string]interface{}{}
	_ = json.Unmarshal(raw, &out)
	return out
}

// bpmnErrorCodes lists the distinct codes the worker can throw, in a stable order.
func bpmnErrorCodes() []string {
	codes := []string{}
	seen := map[string]bool{}
	for _, code := range []apperrors.ErrorCode{
		apperrors.ErrCodeValidationFailed,
		apperrors.ErrCodeGeneratorRequestFailed,
		apperrors.ErrCodeInternal,
	} {
		bpmn := apperrors.ConvertToBPMNError(&apperrors.StandardError{Code: code}).Code
		if !seen[bpmn] {
			seen[bpmn] = true
			codes = append(codes, bpmn)
		}
	}
	return codes
}
