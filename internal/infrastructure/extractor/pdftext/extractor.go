package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, content domain.FetchedContent) (text string, err error) {
	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf %s: %v", content.URL, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content.Body), int64(len(content.Body)))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", content.URL, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text of %s: %w", content.URL, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text of %s: %w", content.URL, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
