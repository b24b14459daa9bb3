package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

type Format string

const (
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatDOC     Format = "doc"
	FormatTXT     Format = "txt"
	FormatUnknown Format = "unknown"
)

// Text is extracted plain text plus the format it came from.
type Text struct {
	Content string `json:"content"`
	Format  Format `json:"format"`
}

var ErrEmptyText = errors.New("document text is empty")

func NewText(content string, format Format) (Text, error) {
	if strings.TrimSpace(content) == "" {
		return Text{}, ErrEmptyText
	}
	if format == "" {
		format = FormatUnknown
	}
	return Text{Content: content, Format: format}, nil
}

// Len counts runes, not bytes.
func (t Text) Len() int {
	return utf8.RuneCountInString(t.Content)
}

type Extractor interface {
	Extract(ctx context.Context, data []byte, sourceURL string) (Text, error)
}

type Reason string

const (
	ReasonUnsupported Reason = "unsupported_format"
	ReasonCorrupt     Reason = "corrupt_file"
	ReasonEmpty       Reason = "empty"
	ReasonRemote      Reason = "remote_failure"
)

type ExtractionError struct {
	Reason Reason
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %s: %s", e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// UserMessage is safe to show to whoever uploaded the file.
func (e *ExtractionError) UserMessage() string {
	switch e.Reason {
	case ReasonUnsupported:
		if e.Format == FormatDOC {
			return "Legacy .doc files are not supported. Please save the document as PDF or DOCX and upload it again."
		}
		return "This file type is not supported. Please upload a PDF, DOCX or plain text file."
	case ReasonCorrupt:
		return "The file appears to be damaged and could not be read."
	case ReasonEmpty:
		return "No readable text was found in the document. Scanned images need to be converted to text first."
	default:
		return "The document text could not be extracted right now. Please try again later."
	}
}

var (
	magicPDF = []byte("%PDF-")
	magicZIP = []byte("PK\x03\x04")
	magicOLE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat sniffs magic bytes first and falls back to the extension of
// name, which may be a file name or a URL.
func DetectFormat(data []byte, name string) Format {
	switch {
	case bytes.HasPrefix(data, magicPDF):
		return FormatPDF
	case bytes.HasPrefix(data, magicOLE):
		return FormatDOC
	case bytes.HasPrefix(data, magicZIP):
		if isDOCX(data) {
			return FormatDOCX
		}
		return FormatUnknown
	}
	if len(data) > 0 && utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
		return FormatTXT
	}
	if len(data) == 0 {
		return formatFromName(name)
	}
	return FormatUnknown
}

func formatFromName(name string) Format {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".doc":
		return FormatDOC
	case ".txt", ".text", ".md":
		return FormatTXT
	default:
		return FormatUnknown
	}
}
