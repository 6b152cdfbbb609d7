package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/resilience"
)

// SearXNG queries a self-hosted SearXNG instance over its JSON API.
type SearXNG struct {
	id         string
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewSearXNG(id, baseURL string, executor *resilience.Executor) *SearXNG {
	return &SearXNG{
		id:         id,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		executor:   executor,
	}
}

func (p *SearXNG) ID() string { return p.id }

func (p *SearXNG) Search(ctx context.Context, query string, maxResults int) ([]domain.ExternalResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}

	err := executeSearch(ctx, p.executor, p.id, func(callCtx context.Context) error {
		endpoint := p.baseURL + "/search?" + params.Encode()
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create searxng request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return doJSON(p.httpClient, req, &response, p.id)
	})
	if err != nil {
		return nil, err
	}

	retrievedAt := time.Now().UTC()
	out := make([]domain.ExternalResult, 0, maxResults)
	for _, r := range response.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, domain.ExternalResult{
			Title:       r.Title,
			Snippet:     r.Content,
			URL:         r.URL,
			ProviderID:  p.id,
			RetrievedAt: retrievedAt,
		})
		if len(out) >= maxResults {
			break
		}
	}
	return out, nil
}
