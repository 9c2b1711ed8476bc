package pdfchat

import (
	"context"
	"io"
	"strings"

	"pdfchat/internal/model"
)

// UploadFailedText is shown when the server gives no detail for a failed upload.
const UploadFailedText = "Upload failed"

// Uploader submits new documents. Filtering by document type is left to the
// presentation layer; the only check here is that a file is present.
type Uploader struct {
	backend UploadBackend
	logger  Logger
}

func NewUploader(backend UploadBackend, logger Logger) *Uploader {
	return &Uploader{backend: backend, logger: logger}
}

// Upload sends the file and returns the created record. The caller decides
// what to select. Failures are returned as *UploadError whose message is the
// server's detail verbatim when present.
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader) (model.Document, error) {
	if r == nil || strings.TrimSpace(filename) == "" {
		return model.Document{}, ErrMissingFile
	}

	doc, err := u.backend.Upload(ctx, filename, r)
	if err != nil {
		u.logger.Warn("upload failed", "filename", filename, "error", err)
		msg := detailOf(err)
		if msg == "" {
			msg = UploadFailedText
		}
		return model.Document{}, &UploadError{Message: msg, Err: err}
	}
	if doc == nil {
		return model.Document{}, &UploadError{Message: UploadFailedText}
	}

	u.logger.Info("document uploaded", "file_id", doc.FileID, "filename", doc.Filename, "indexed", doc.Indexed)
	return *doc, nil
}
