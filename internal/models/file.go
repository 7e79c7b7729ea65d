// internal/models/file.go
package models

import (
	"encoding/base64"
	"mime"
	"path/filepath"
	"strings"
)

const fallbackMIMEType = "application/json"

// UploadedFile is an attachment held only in the session. Data is standard
// base64 without a data-URL prefix.
type UploadedFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// DataURL renders the file in data-URL form.
func (f UploadedFile) DataURL() string {
	return "data:" + f.Type + ";base64," + f.Data
}

// IsImage reports whether the file is sent to the generator as inline binary.
func (f UploadedFile) IsImage() bool {
	if strings.HasPrefix(f.Type, "image/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// IsText reports whether the file is sent to the generator as a labeled text block.
func (f UploadedFile) IsText() bool {
	if strings.Contains(f.Type, "json") || strings.HasPrefix(f.Type, "text/") {
		return true
	}
	return strings.EqualFold(filepath.Ext(f.Name), ".json")
}

// Decode returns the raw file content.
func (f UploadedFile) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

var knownMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".json": "application/json",
	".txt":  "text/plain",
	".md":   "text/markdown",
}

// MIMETypeFromName infers a MIME type from the file extension, falling back
// to application/json for flow exports without a recognisable extension.
func MIMETypeFromName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := knownMIMETypes[ext]; ok {
		return t
	}
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			if mediaType, _, err := mime.ParseMediaType(t); err == nil {
				return mediaType
			}
			return t
		}
	}
	return fallbackMIMEType
}

// SkippedFile records an attachment dropped during ingestion or request building.
type SkippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
