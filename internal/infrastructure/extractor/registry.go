// Package extractor routes fetched content to a text extractor by media
// type.
package extractor

import (
	"context"
	"mime"
	"strings"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// Compile-time check: Registry implements ports.TextExtractor.
var _ ports.TextExtractor = (*Registry)(nil)

// Registry picks an extractor by the response Content-Type. Unknown and
// missing types fall through to the fallback extractor.
type Registry struct {
	byType   map[string]ports.TextExtractor
	fallback ports.TextExtractor
}

func NewRegistry(fallback ports.TextExtractor) *Registry {
	return &Registry{
		byType:   map[string]ports.TextExtractor{},
		fallback: fallback,
	}
}

// Register binds an extractor to a media type, e.g. "text/html". The charset
// parameter of incoming Content-Type headers is ignored for routing.
func (r *Registry) Register(mediaType string, e ports.TextExtractor) {
	r.byType[strings.ToLower(mediaType)] = e
}

func (r *Registry) Extract(ctx context.Context, content domain.FetchedContent) (string, error) {
	if e, ok := r.byType[normalizeMediaType(content.ContentType)]; ok {
		return e.Extract(ctx, content)
	}
	return r.fallback.Extract(ctx, content)
}

func normalizeMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType
}
