// Package request composes the generator request: the instruction text, the
// attachment parts and the declared response shape.
package request

import (
	"fmt"
	"strconv"
	"strings"

	"software-quoter/internal/common/logger"
	"software-quoter/internal/common/metrics"
	"software-quoter/internal/common/validation"
	"software-quoter/internal/models"
)

const (
	defaultBrand              = "Smart Bytes"
	defaultWorkingDaysPerWeek = 5
	defaultImageType          = "image/png"
)

// Part is one element of the multi-part request. Exactly one of Text or
// Data is set; Data is base64.
type Part struct {
	Text     string `json:"text,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

func (p Part) IsInline() bool { return p.Data != "" }

// Request is everything the generator needs for one submission.
type Request struct {
	Parts   []Part
	Schema  validation.JSONSchema
	Skipped []models.SkippedFile
}

type Options struct {
	Brand              string
	WorkingDaysPerWeek int
}

type Builder struct {
	opts   Options
	logger logger.Logger
}

func NewBuilder(opts Options, log logger.Logger) *Builder {
	if opts.Brand == "" {
		opts.Brand = defaultBrand
	}
	if opts.WorkingDaysPerWeek <= 0 {
		opts.WorkingDaysPerWeek = defaultWorkingDaysPerWeek
	}
	return &Builder{opts: opts, logger: log}
}

// Build returns the prompt part first, then one part per usable attachment
// in attachment order. Files that cannot be decoded are skipped.
func (b *Builder) Build(params models.ProjectParams, files []models.UploadedFile) Request {
	req := Request{
		Parts:  []Part{{Text: b.BuildPrompt(params)}},
		Schema: ResponseShape(),
	}

	for _, f := range files {
		switch {
		case f.IsImage():
			if strings.TrimSpace(f.Data) == "" {
				req.Skipped = append(req.Skipped, b.skip(f, "empty image content"))
				continue
			}
			if _, err := f.Decode(); err != nil {
				req.Skipped = append(req.Skipped, b.skip(f, err.Error()))
				continue
			}
			mimeType := f.Type
			if !strings.HasPrefix(mimeType, "image/") {
				mimeType = models.MIMETypeFromName(f.Name)
				if !strings.HasPrefix(mimeType, "image/") {
					mimeType = defaultImageType
				}
			}
			req.Parts = append(req.Parts, Part{MIMEType: mimeType, Data: f.Data})

		case f.IsText():
			raw, err := f.Decode()
			if err != nil {
				req.Skipped = append(req.Skipped, b.skip(f, err.Error()))
				continue
			}
			req.Parts = append(req.Parts, Part{Text: flowFileBlock(f.Name, string(raw))})

		default:
			b.logger.Debug("Attachment not sent to generator", map[string]interface{}{
				"file": f.Name,
				"type": f.Type,
			})
		}
	}

	return req
}

func (b *Builder) skip(f models.UploadedFile, reason string) models.SkippedFile {
	metrics.FilesSkipped.WithLabelValues("decode").Inc()
	b.logger.Warn("Failed to decode attachment", map[string]interface{}{
		"file":  f.Name,
		"error": reason,
	})
	return models.SkippedFile{Name: f.Name, Reason: reason}
}

func flowFileBlock(name, content string) string {
	return fmt.Sprintf("\n--- FLOW FILE CONTENT (%s) ---\n%s\n--- END OF FILE ---\n", name, content)
}

// BuildPrompt composes the instruction text. The cost section either pins
// the total to the target cost or spells out the effort formula.
func (b *Builder) BuildPrompt(p models.ProjectParams) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Act as a Senior Solutions Architect and software estimation expert at %s.", b.opts.Brand))
	parts = append(parts, "Produce a detailed quote for the following project:")

	parts = append(parts, "\nProject:")
	parts = append(parts, fmt.Sprintf("- Name: %s", p.ProjectName))
	parts = append(parts, fmt.Sprintf("- Type: %s", p.ProjectType))
	parts = append(parts, fmt.Sprintf("- Description: %s", p.Description))

	parts = append(parts, "\nResources and timeline:")
	parts = append(parts, fmt.Sprintf("- Team size: %s people", num(p.TeamSize)))
	parts = append(parts, fmt.Sprintf("- Blended hourly rate: $%s USD", num(p.HourlyRate)))
	parts = append(parts, fmt.Sprintf("- Working hours per day: %s", num(p.HoursPerDay)))
	parts = append(parts, fmt.Sprintf("- Estimated weeks: %s", num(p.EstimatedWeeks)))

	parts = append(parts, "\nFixed costs / infrastructure:")
	parts = append(parts, fmt.Sprintf("- Estimated server/cloud budget: $%s USD / month", num(p.ServerCost)))

	parts = append(parts, "\nSpecial instructions:")
	parts = append(parts, "1. Analyse the attached images (diagrams, screenshots) and the content of the attached JSON flow files.")

	if p.HasTargetCost() {
		target := num(p.TargetCost)
		parts = append(parts, "\nFIXED PRICE DEFINED:")
		parts = append(parts, fmt.Sprintf("The user has set a manual target cost of $%s.", target))
		parts = append(parts, "Use this EXACT value as 'totalEstimatedCost'.")
		parts = append(parts, fmt.Sprintf("Adjust the category breakdown (backend, frontend, etc.) so that it sums to this total of $%s,", target))
		parts = append(parts, "keeping the proportion of inferred technical effort but forcing the figures to reach this number.")
	} else {
		parts = append(parts, "\nCost calculation:")
		parts = append(parts, fmt.Sprintf(
			"Compute the total cost purely from (team size * hours per day * %d working days per week * weeks * hourly rate).",
			b.opts.WorkingDaysPerWeek,
		))
		parts = append(parts, "Add a safety margin (10-20%) if the diagrams show high complexity.")
	}

	parts = append(parts, "\nAdditional output requirements:")
	parts = append(parts, "- Compute the MVP (Minimum Viable Product) cost by removing non-essential features.")
	parts = append(parts, "- Provide a market comparison (benchmarking).")
	parts = append(parts, "- Break the costs down into clear categories.")
	parts = append(parts, "\nRespond strictly in JSON following the schema.")

	return strings.Join(parts, "\n")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
