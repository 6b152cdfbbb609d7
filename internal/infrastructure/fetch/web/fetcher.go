// Package web fetches external pages accepted for enrichment.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// Compile-time check: Fetcher implements ports.ContentFetcher.
var _ ports.ContentFetcher = (*Fetcher)(nil)

const (
	defaultFetchTimeout = 20 * time.Second
	defaultMaxBodyBytes = 8 << 20
	defaultUserAgent    = "knowledge-gateway/1.0"
)

// Fetcher downloads one page per candidate. Bodies are truncated at
// maxBodyBytes; a truncated page still carries enough text to index.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBody    int64
}

type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

func NewFetcher(cfg Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		maxBody:    maxBody,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.FetchedContent, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return domain.FetchedContent{}, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return domain.FetchedContent{}, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.FetchedContent{}, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.FetchedContent{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.FetchedContent{}, fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return domain.FetchedContent{}, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" && len(body) > 0 {
		contentType = http.DetectContentType(body)
	}

	return domain.FetchedContent{
		URL:         rawURL,
		ContentType: contentType,
		Body:        body,
		FetchedAt:   time.Now().UTC(),
	}, nil
}
