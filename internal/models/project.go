// internal/models/project.go
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/validation"
)

// ProjectType is the fixed enumeration offered by the project form.
type ProjectType string

const (
	ProjectTypeWebApp    ProjectType = "Web App / SaaS"
	ProjectTypeCorporate ProjectType = "Corporate Website"
	ProjectTypeMobile    ProjectType = "Mobile App (iOS/Android)"
	ProjectTypeStore     ProjectType = "E-commerce / Store"
	ProjectTypeBackend   ProjectType = "API / Backend System"
)

// ProjectTypes returns the enumeration in display order.
func ProjectTypes() []ProjectType {
	return []ProjectType{
		ProjectTypeWebApp,
		ProjectTypeCorporate,
		ProjectTypeMobile,
		ProjectTypeStore,
		ProjectTypeBackend,
	}
}

func (p ProjectType) Valid() bool {
	for _, t := range ProjectTypes() {
		if t == p {
			return true
		}
	}
	return false
}

// NumericText holds a numeric form field exactly as typed. It decodes from a
// JSON string, a JSON number or null, and always encodes as a string.
type NumericText string

func (n *NumericText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumericText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("numeric field must be a string or number: %w", err)
	}
	*n = NumericText(num.String())
	return nil
}

func (n NumericText) IsBlank() bool {
	return strings.TrimSpace(string(n)) == ""
}

// ErrNotFinite is returned by Float for NaN and infinities.
var ErrNotFinite = errors.New("not a finite number")

// Float parses the trimmed text. Overflow fails with strconv.ErrRange.
func (n NumericText) Float() (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotFinite
	}
	return f, nil
}

func Num(v float64) NumericText {
	return NumericText(strconv.FormatFloat(v, 'f', -1, 64))
}

// ProjectInput is the editable project form. Numeric fields stay textual
// until Coerce is called at submission time.
type ProjectInput struct {
	ProjectName    string      `json:"projectName"`
	ProjectType    ProjectType `json:"projectType"`
	Description    string      `json:"description"`
	TeamSize       NumericText `json:"teamSize"`
	HourlyRate     NumericText `json:"hourlyRate"`
	HoursPerDay    NumericText `json:"hoursPerDay"`
	EstimatedWeeks NumericText `json:"estimatedWeeks"`
	ServerCost     NumericText `json:"serverCost"`
	TargetCost     NumericText `json:"targetCost"`
}

// DefaultProjectInput returns the initial form values.
func DefaultProjectInput() ProjectInput {
	return ProjectInput{
		ProjectType:    ProjectTypeWebApp,
		TeamSize:       "2",
		HourlyRate:     "35",
		HoursPerDay:    "6",
		EstimatedWeeks: "8",
		ServerCost:     "50",
		TargetCost:     "",
	}
}

// ProjectParams is the coerced, typed form of ProjectInput.
type ProjectParams struct {
	ProjectName    string      `json:"projectName"`
	ProjectType    ProjectType `json:"projectType"`
	Description    string      `json:"description"`
	TeamSize       float64     `json:"teamSize"`
	HourlyRate     float64     `json:"hourlyRate"`
	HoursPerDay    float64     `json:"hoursPerDay"`
	EstimatedWeeks float64     `json:"estimatedWeeks"`
	ServerCost     float64     `json:"serverCost"`
	TargetCost     float64     `json:"targetCost,omitempty"`
}

// HasTargetCost reports whether a fixed price overrides the formula.
func (p ProjectParams) HasTargetCost() bool {
	return p.TargetCost > 0
}

// ProjectInputSchema describes the submission constraints of the form.
var ProjectInputSchema = validation.JSONSchema{
	Type: "object",
	Required: []string{
		"projectName", "description", "teamSize", "hourlyRate",
		"hoursPerDay", "estimatedWeeks", "serverCost",
	},
	Properties: map[string]validation.Property{
		"projectName":    {Type: "string", MinLength: validation.IntPtr(1)},
		"projectType":    {Type: "string", Enum: projectTypeNames()},
		"description":    {Type: "string", MinLength: validation.IntPtr(1)},
		"teamSize":       {Type: "number", Minimum: validation.Float64Ptr(1)},
		"hourlyRate":     {Type: "number", Minimum: validation.Float64Ptr(10)},
		"hoursPerDay":    {Type: "number", Minimum: validation.Float64Ptr(1), Maximum: validation.Float64Ptr(12)},
		"estimatedWeeks": {Type: "number", Minimum: validation.Float64Ptr(1)},
		"serverCost":     {Type: "number", Minimum: validation.Float64Ptr(0)},
		"targetCost":     {Type: "number", Minimum: validation.Float64Ptr(0)},
	},
}

func projectTypeNames() []string {
	types := ProjectTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

// Validate checks the form against ProjectInputSchema. Blank fields count as
// missing; text that does not parse as a finite number fails the type check.
func (in ProjectInput) Validate() *validation.ValidationResult {
	values := map[string]interface{}{}
	rejected := map[string]validation.ValidationError{}

	addText := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			values[key] = v
		}
	}
	addNumber := func(key string, value NumericText) {
		if value.IsBlank() {
			return
		}
		f, err := value.Float()
		switch {
		case err == nil:
			values[key] = f
		case errors.Is(err, strconv.ErrRange):
			rejected[key] = validation.ValidationError{Field: key, Message: "number out of range", Code: "OUT_OF_RANGE"}
		case errors.Is(err, ErrNotFinite):
			rejected[key] = validation.ValidationError{Field: key, Message: "expected a finite number", Code: "INVALID_TYPE"}
		default:
			values[key] = strings.TrimSpace(string(value))
		}
	}

	addText("projectName", in.ProjectName)
	addText("projectType", string(in.ProjectType))
	addText("description", in.Description)
	addNumber("teamSize", in.TeamSize)
	addNumber("hourlyRate", in.HourlyRate)
	addNumber("hoursPerDay", in.HoursPerDay)
	addNumber("estimatedWeeks", in.EstimatedWeeks)
	addNumber("serverCost", in.ServerCost)
	addNumber("targetCost", in.TargetCost)

	result := validation.ValidateInput(values, ProjectInputSchema)
	if len(rejected) == 0 {
		return result
	}

	// Rejected fields were kept out of values, so drop their missing-field errors.
	errs := make([]validation.ValidationError, 0, len(result.Errors)+len(rejected))
	for _, e := range result.Errors {
		if _, ok := rejected[e.Field]; !ok {
			errs = append(errs, e)
		}
	}
	for _, e := range rejected {
		errs = append(errs, e)
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	result.Errors = errs
	result.Valid = false
	return result
}

// Coerce validates the form and converts it to typed parameters.
func (in ProjectInput) Coerce() (ProjectParams, error) {
	result := in.Validate()
	if !result.Valid {
		return ProjectParams{}, apperrors.NewValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	projectType := in.ProjectType
	if strings.TrimSpace(string(projectType)) == "" {
		projectType = ProjectTypeWebApp
	}

	// Validate guarantees every required field parses.
	mustFloat := func(n NumericText) float64 {
		f, _ := n.Float()
		return f
	}

	params := ProjectParams{
		ProjectName:    strings.TrimSpace(in.ProjectName),
		ProjectType:    projectType,
		Description:    strings.TrimSpace(in.Description),
		TeamSize:       mustFloat(in.TeamSize),
		HourlyRate:     mustFloat(in.HourlyRate),
		HoursPerDay:    mustFloat(in.HoursPerDay),
		EstimatedWeeks: mustFloat(in.EstimatedWeeks),
		ServerCost:     mustFloat(in.ServerCost),
	}
	if !in.TargetCost.IsBlank() {
		params.TargetCost = mustFloat(in.TargetCost)
	}
	return params, nil
}
