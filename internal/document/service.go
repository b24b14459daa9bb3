package document

import (
	"context"
	"errors"
	"strings"

	"github.com/pratyushraj/noticebazaar-sub008/internal/logger"
)

var errNoRemote = errors.New("extraction service not configured")

// Service is the default Extractor. DOCX and plain text are handled in
// process; PDFs are checked locally and then handed to the remote service.
type Service struct {
	remote  *Remote
	inspect func([]byte) (int, error)
}

// NewService accepts a nil remote, in which case only formats that can be
// read locally are supported.
func NewService(remote *Remote) *Service {
	return &Service{remote: remote, inspect: inspectPDF}
}

func (s *Service) Extract(ctx context.Context, data []byte, sourceURL string) (Text, error) {
	if len(data) == 0 && sourceURL == "" {
		return Text{}, &ExtractionError{Reason: ReasonEmpty, Format: FormatUnknown}
	}
	format := DetectFormat(data, sourceURL)

	var content string
	var err error
	switch format {
	case FormatDOC, FormatUnknown:
		return Text{}, &ExtractionError{Reason: ReasonUnsupported, Format: format}
	case FormatTXT:
		if len(data) == 0 {
			content, err = s.fetchRemote(ctx, nil, format, sourceURL)
		} else {
			content = string(data)
		}
	case FormatDOCX:
		if len(data) == 0 {
			content, err = s.fetchRemote(ctx, nil, format, sourceURL)
			break
		}
		content, err = extractDOCX(data)
		if err != nil {
			return Text{}, &ExtractionError{Reason: ReasonCorrupt, Format: format, Err: err}
		}
	case FormatPDF:
		if len(data) > 0 {
			pages, perr := s.inspect(data)
			if perr != nil {
				return Text{}, &ExtractionError{Reason: ReasonCorrupt, Format: format, Err: perr}
			}
			logger.Debug(ctx, "pdf validated", "pages", pages, "bytes", len(data))
		}
		content, err = s.fetchRemote(ctx, data, format, sourceURL)
	}
	if err != nil {
		return Text{}, err
	}

	text, err := NewText(strings.TrimSpace(content), format)
	if err != nil {
		return Text{}, &ExtractionError{Reason: ReasonEmpty, Format: format, Err: err}
	}
	return text, nil
}

func (s *Service) fetchRemote(ctx context.Context, data []byte, format Format, sourceURL string) (string, error) {
	if s.remote == nil {
		return "", &ExtractionError{Reason: ReasonRemote, Format: format, Err: errNoRemote}
	}
	content, err := s.remote.Extract(ctx, data, format, sourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ExtractionError{Reason: ReasonRemote, Format: format, Err: err}
	}
	return content, nil
}
