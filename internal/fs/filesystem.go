package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// NotPDFText is shown when the user picks something other than a PDF.
const NotPDFText = "Please upload a PDF file"

// ErrNotPDF is returned by ResolvePDF for files whose content is not a PDF.
var ErrNotPDF = errors.New("not a PDF file")

// pdfMIME is the type the backend accepts.
const pdfMIME = "application/pdf"

// Document is a local file chosen for upload.
type Document struct {
	Path string // absolute
	Name string // base name sent to the server
	Size int64
	MIME string // detected from content, not from the extension
}

// IsPDF reports whether the detected content type is PDF.
func (d *Document) IsPDF() bool {
	return mimetype.EqualsAny(d.MIME, pdfMIME)
}

// Open opens the file for reading.
func (d *Document) Open() (io.ReadCloser, error) {
	return os.Open(d.Path)
}

// Resolve validates a raw path and detects its content type.
// Only regular files are accepted.
func Resolve(rawPath string) (*Document, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode.IsDir():
		return nil, fmt.Errorf("directories not supported: %s", absPath)
	case mode&os.ModeDevice != 0:
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	case !mode.IsRegular():
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	mtype, err := mimetype.DetectFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("detecting content type: %w", err)
	}

	return &Document{
		Path: absPath,
		Name: filepath.Base(absPath),
		Size: info.Size(),
		MIME: mtype.String(),
	}, nil
}

// ResolvePDF is Resolve followed by a content check. Non-PDF files fail
// with ErrNotPDF.
func ResolvePDF(rawPath string) (*Document, error) {
	doc, err := Resolve(rawPath)
	if err != nil {
		return nil, err
	}
	if !doc.IsPDF() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPDF, doc.Name, doc.MIME)
	}
	return doc, nil
}
