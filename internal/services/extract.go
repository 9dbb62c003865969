package services

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/northstar-audit/northstar-backend/internal/logger"
	apperrors "github.com/northstar-audit/northstar-backend/internal/pkg/errors"
)

// ExtractedPage is the text of one page, 1-indexed.
type ExtractedPage struct {
	PageNum int
	Text    string
}

// DocumentMetadata carries whatever the PDF Info dictionary declared.
type DocumentMetadata struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Subject string `json:"subject"`
	Creator string `json:"creator"`
}

// ExtractedDocument is the structured result of text extraction.
type ExtractedDocument struct {
	FullText  string
	Pages     []ExtractedPage
	PageCount int
	Metadata  DocumentMetadata
}

// Extractor turns uploaded bytes into page-structured text. Extraction
// failures are invalid-input: they happen before any external
// processing and no audit record may be created for them.
type Extractor interface {
	Extract(originalName string, data []byte) (*ExtractedDocument, error)
}

type pdfExtractor struct {
	log *logger.Logger
}

func NewPDFExtractor(baseLog *logger.Logger) Extractor {
	return &pdfExtractor{log: baseLog.With("service", "PDFExtractor")}
}

func (e *pdfExtractor) Extract(originalName string, data []byte) (*ExtractedDocument, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file %q: %w", originalName, apperrors.ErrInvalidArgument)
	}
	// Sniff magic bytes; a .pdf extension on non-PDF content is rejected
	// here rather than handed to the parser.
	if !isPDF(data) {
		return nil, fmt.Errorf("file %q missing %%PDF header: %w", originalName, apperrors.ErrInvalidArgument)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader for %q: %v: %w", originalName, err, apperrors.ErrInvalidArgument)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf %q contains no pages: %w", originalName, apperrors.ErrInvalidArgument)
	}

	pages := make([]ExtractedPage, 0, numPages)
	var fullParts []string
	for i := 1; i <= numPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			e.log.Warn("Page text extraction failed, skipping page", "page", i, "error", err)
			continue
		}
		text = collapseWhitespace(text)
		pages = append(pages, ExtractedPage{PageNum: i, Text: text})
		fullParts = append(fullParts, text)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf %q yielded no extractable text: %w", originalName, apperrors.ErrInvalidArgument)
	}

	return &ExtractedDocument{
		FullText:  strings.TrimSpace(strings.Join(fullParts, "\n\n")),
		Pages:     pages,
		PageCount: len(pages),
		Metadata:  readInfoDict(r),
	}, nil
}

func readInfoDict(r *pdf.Reader) DocumentMetadata {
	defer func() {
		// Malformed Info dictionaries panic inside the value accessors;
		// metadata is best-effort.
		_ = recover()
	}()
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return DocumentMetadata{}
	}
	return DocumentMetadata{
		Title:   info.Key("Title").Text(),
		Author:  info.Key("Author").Text(),
		Subject: info.Key("Subject").Text(),
		Creator: info.Key("Creator").Text(),
	}
}

func isPDF(b []byte) bool {
	// PDF starts with "%PDF-"
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

var wsRe = regexp.MustCompile(`[ \t\x0b\x0c\r]+`)
var nlRe = regexp.MustCompile(`\n{3,}`)

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = wsRe.ReplaceAllString(s, " ")
	s = nlRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
