package models

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadedFile_Kinds(t *testing.T) {
	tests := []struct {
		name      string
		file      UploadedFile
		wantImage bool
		wantText  bool
	}{
		{name: "png by type", file: UploadedFile{Name: "a", Type: "image/png"}, wantImage: true},
		{name: "webp by extension", file: UploadedFile{Name: "diagram.WEBP", Type: "application/octet-stream"}, wantImage: true},
		{name: "json by type", file: UploadedFile{Name: "flow", Type: "application/json"}, wantText: true},
		{name: "json by extension", file: UploadedFile{Name: "flow.json", Type: ""}, wantText: true},
		{name: "plain text", file: UploadedFile{Name: "notes.txt", Type: "text/plain"}, wantText: true},
		{name: "pdf is neither", file: UploadedFile{Name: "brief.pdf", Type: "application/pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantImage, tt.file.IsImage())
			assert.Equal(t, tt.wantText, tt.file.IsText())
		})
	}
}

func TestUploadedFile_DataURLAndDecode(t *testing.T) {
	f := UploadedFile{Name: "flow.json", Type: "application/json", Data: base64.StdEncoding.EncodeToString([]byte(`{"a":1}`))}

	assert.Equal(t, "data:application/json;base64,eyJhIjoxfQ==", f.DataURL())

	raw, err := f.Decode()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(raw))

	_, err = UploadedFile{Data: "%%%"}.Decode()
	assert.Error(t, err)
}

func TestMIMETypeFromName(t *testing.T) {
	assert.Equal(t, "image/png", MIMETypeFromName("shot.PNG"))
	assert.Equal(t, "image/jpeg", MIMETypeFromName("photo.jpeg"))
	assert.Equal(t, "application/json", MIMETypeFromName("flow.json"))
	assert.Equal(t, "application/json", MIMETypeFromName("export"))
}

func TestQuoteResponse_BreakdownTotalAndClone(t *testing.T) {
	q := &QuoteResponse{
		TotalEstimatedCost: 300,
		Breakdown: []BreakdownItem{
			{Category: "Backend", Cost: 200},
			{Category: "Frontend", Cost: 100},
		},
		TechnicalRecommendations: []string{"Use CI"},
	}
	assert.Equal(t, 300.0, q.BreakdownTotal())

	c := q.Clone()
	c.Breakdown[0].Cost = 1
	c.TechnicalRecommendations[0] = "changed"
	assert.Equal(t, 200.0, q.Breakdown[0].Cost)
	assert.Equal(t, "Use CI", q.TechnicalRecommendations[0])

	var nilQuote *QuoteResponse
	assert.Nil(t, nilQuote.Clone())
}
