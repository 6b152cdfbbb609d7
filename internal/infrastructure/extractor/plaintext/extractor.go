package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, content domain.FetchedContent) (string, error) {
	if !utf8.Valid(content.Body) {
		return "", fmt.Errorf("binary body without a matching extractor: %s", content.URL)
	}
	return strings.TrimSpace(string(content.Body)), nil
}
