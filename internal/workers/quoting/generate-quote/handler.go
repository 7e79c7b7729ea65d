package generatequote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/common/validation"
	"software-quoter/internal/models"
	"software-quoter/internal/quote"
	"software-quoter/internal/quote/ingest"
)

const TaskType = "generate-quote"

// QuoteGenerator is the slice of quote.Service the worker needs.
type QuoteGenerator interface {
	Ingest(ctx context.Context, sources []ingest.Source) ingest.Result
	Generate(ctx context.Context, in models.ProjectInput, files []models.UploadedFile) (*quote.Outcome, error)
}

type Handler struct {
	config       *Config
	generator    QuoteGenerator
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, generator QuoteGenerator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		generator:    generator,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("Processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	result := validation.ValidateDocument([]byte(variables), GetInputSchema())
	if !result.Valid {
		return nil, apperrors.NewValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInputParsingFailedError(err)
	}
	return &input, nil
}

// Execute decodes the attachments and generates one quote. Unreadable
// attachments are reported in the output, never as a job failure.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	sources := make([]ingest.Source, 0, len(input.Files))
	for _, f := range input.Files {
		sources = append(sources, ingest.FromEncoded(f.Name, f.Type, f.Data))
	}
	ingested := h.generator.Ingest(ctx, sources)

	outcome, err := h.generator.Generate(ctx, input.Project, ingested.Files)
	if err != nil {
		return nil, err
	}

	skipped := make([]models.SkippedFile, 0, len(ingested.Skipped)+len(outcome.Skipped))
	skipped = append(skipped, ingested.Skipped...)
	skipped = append(skipped, outcome.Skipped...)

	h.logger.Info("Quote generated", map[string]interface{}{
		"project":             input.Project.ProjectName,
		"total":               outcome.Quote.TotalEstimatedCost,
		"attachments":         len(ingested.Files),
		"skipped":             len(skipped),
		"breakdownConsistent": outcome.Reconciliation.Consistent,
	})

	return &Output{
		Quote:               outcome.Quote,
		BreakdownConsistent: outcome.Reconciliation.Consistent,
		BreakdownDelta:      outcome.Reconciliation.Delta,
		SkippedFiles:        skipped,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, apperrors.NewInternalError(fmt.Errorf("encode job output: %w", err)))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
