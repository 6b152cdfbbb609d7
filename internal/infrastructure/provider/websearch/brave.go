package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/resilience"
)

const braveMaxCount = 20

// Brave queries the Brave Search API. The subscription token is sent per
// request; the API caps count at 20.
type Brave struct {
	id         string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewBrave(id, baseURL, apiKey string, executor *resilience.Executor) *Brave {
	if baseURL == "" {
		baseURL = "https://api.search.brave.com/res/v1"
	}
	return &Brave{
		id:         id,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		executor:   executor,
	}
}

func (p *Brave) ID() string { return p.id }

func (p *Brave) Search(ctx context.Context, query string, maxResults int) ([]domain.ExternalResult, error) {
	count := maxResults
	if count <= 0 || count > braveMaxCount {
		count = braveMaxCount
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))

	var response struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}

	err := executeSearch(ctx, p.executor, p.id, func(callCtx context.Context) error {
		endpoint := p.baseURL + "/web/search?" + params.Encode()
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create brave request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", p.apiKey)
		return doJSON(p.httpClient, req, &response, p.id)
	})
	if err != nil {
		return nil, err
	}

	retrievedAt := time.Now().UTC()
	out := make([]domain.ExternalResult, 0, maxResults)
	for _, r := range response.Web.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, domain.ExternalResult{
			Title:       r.Title,
			Snippet:     r.Description,
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
