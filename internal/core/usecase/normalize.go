package usecase

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

const (
	queryTextMinLen = 1
	queryTextMaxLen = 500
	queryLimitMax   = 100
)

// normalizeQuery turns a raw request into a validated Query. It is pure and
// performs no I/O; every rejection is a ValidationError that unwraps to
// ErrInvalidInput.
func normalizeQuery(req domain.SearchRequest, defaultLimit int) (domain.Query, error) {
	text, err := normalizeText(req.Text)
	if err != nil {
		return domain.Query{}, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 || limit > queryLimitMax {
		return domain.Query{}, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", queryLimitMax))
	}
	if req.Offset < 0 {
		return domain.Query{}, domain.NewValidationError("offset", "must not be negative")
	}

	return domain.Query{
		Text:          text,
		TechHint:      strings.ToLower(strings.TrimSpace(req.TechHint)),
		Limit:         limit,
		Offset:        req.Offset,
		ProviderIDs:   normalizeProviderIDs(req.ProviderIDs),
		ForceExternal: req.ForceExternal,
		SessionID:     strings.TrimSpace(req.SessionID),
	}, nil
}

func normalizeText(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(' ')
		case unicode.IsControl(r):
			return "", domain.NewValidationError("q", "contains control characters")
		default:
			b.WriteRune(r)
		}
	}
	text := strings.TrimSpace(b.String())
	n := len([]rune(text))
	if n < queryTextMinLen {
		return "", domain.NewValidationError("q", "must not be empty")
	}
	if n > queryTextMaxLen {
		return "", domain.NewValidationError("q", fmt.Sprintf("must not exceed %d characters", queryTextMaxLen))
	}
	return text, nil
}

func normalizeProviderIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
