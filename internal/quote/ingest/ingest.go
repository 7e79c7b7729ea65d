// Package ingest turns user-selected files into base64 attachments.
package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"

	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/common/metrics"
	"software-quoter/internal/models"
)

const defaultConcurrency = 4

// Source is one file selected for attachment.
type Source struct {
	Name string
	Type string
	Open func() (io.ReadCloser, error)
}

// FromPath reads a file from the local filesystem.
func FromPath(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FromReader wraps an opener such as multipart.FileHeader.Open.
func FromReader(name, mimeType string, open func() (io.ReadCloser, error)) Source {
	return Source{Name: name, Type: mimeType, Open: open}
}

// FromEncoded accepts base64 content, with or without a data-URL prefix.
// The data-URL media type is used when mimeType is empty.
func FromEncoded(name, mimeType, data string) Source {
	payload := data
	if strings.HasPrefix(data, "data:") {
		header, rest, found := strings.Cut(data, ",")
		if found {
			payload = rest
			if mimeType == "" {
				mediaType := strings.TrimPrefix(header, "data:")
				mediaType, _, _ = strings.Cut(mediaType, ";")
				mimeType = mediaType
			}
		}
	}

	return Source{
		Name: name,
		Type: mimeType,
		Open: func() (io.ReadCloser, error) {
			raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
			if err != nil {
				return nil, apperrors.NewFileDecodeFailedError(name, err)
			}
			return io.NopCloser(bytes.NewReader(raw)), nil
		},
	}
}

// Result is the outcome of one batch. Skipped files never abort the batch.
type Result struct {
	Files   []models.UploadedFile
	Skipped []models.SkippedFile
}

type Ingester struct {
	concurrency int
	logger      logger.Logger
}

func NewIngester(concurrency int, log logger.Logger) *Ingester {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Ingester{concurrency: concurrency, logger: log}
}

type outcome struct {
	index   int
	file    *models.UploadedFile
	skipped *models.SkippedFile
}

// Ingest reads every source concurrently and returns once all have finished.
// Files come back in selection order.
func (i *Ingester) Ingest(ctx context.Context, sources []Source) Result {
	if len(sources) == 0 {
		return Result{}
	}

	p := pool.NewWithResults[outcome]().WithMaxGoroutines(i.concurrency)
	for idx, src := range sources {
		idx, src := idx, src
		p.Go(func() outcome {
			return i.readOne(ctx, idx, src)
		})
	}
	outcomes := p.Wait()

	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].index < outcomes[b].index })

	var result Result
	for _, o := range outcomes {
		if o.file != nil {
			result.Files = append(result.Files, *o.file)
			continue
		}
		result.Skipped = append(result.Skipped, *o.skipped)
	}
	return result
}

func (i *Ingester) readOne(ctx context.Context, idx int, src Source) outcome {
	if err := ctx.Err(); err != nil {
		return i.skip(idx, src, "cancelled", err)
	}
	if src.Open == nil {
		return i.skip(idx, src, "read", fmt.Errorf("no content"))
	}

	rc, err := src.Open()
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeFileDecodeFailed) {
			return i.skip(idx, src, "decode", err)
		}
		return i.skip(idx, src, "read", apperrors.NewFileReadFailedError(src.Name, err))
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return i.skip(idx, src, "read", apperrors.NewFileReadFailedError(src.Name, err))
	}

	file := models.UploadedFile{
		Name: src.Name,
		Type: resolveType(src),
		Data: base64.StdEncoding.EncodeToString(raw),
	}
	metrics.FilesIngested.WithLabelValues(kindOf(file)).Inc()

	i.logger.Debug("Attachment ingested", map[string]interface{}{
		"file":  file.Name,
		"type":  file.Type,
		"bytes": len(raw),
	})
	return outcome{index: idx, file: &file}
}

func (i *Ingester) skip(idx int, src Source, reason string, err error) outcome {
	metrics.FilesSkipped.WithLabelValues(reason).Inc()
	i.logger.Warn("Attachment skipped", map[string]interface{}{
		"file":   src.Name,
		"reason": reason,
		"error":  err.Error(),
	})
	return outcome{index: idx, skipped: &models.SkippedFile{Name: src.Name, Reason: err.Error()}}
}

func resolveType(src Source) string {
	declared := strings.TrimSpace(src.Type)
	if declared == "" || declared == "application/octet-stream" {
		return models.MIMETypeFromName(src.Name)
	}
	return declared
}

func kindOf(f models.UploadedFile) string {
	switch {
	case f.IsImage():
		return "image"
	case f.IsText():
		return "text"
	default:
		return "other"
	}
}
