package generatequote

import "software-quoter/internal/models"

// Input is read from the job variables. Files carry base64 or data-URL
// content.
type Input struct {
	Project models.ProjectInput   `json:"project"`
	Files   []models.UploadedFile `json:"files,omitempty"`
}

type Output struct {
	Quote               *models.QuoteResponse `json:"quote"`
	BreakdownConsistent bool                  `json:"breakdownConsistent"`
	BreakdownDelta      float64               `json:"breakdownDelta"`
	SkippedFiles        []models.SkippedFile  `json:"skippedFiles"`
}
