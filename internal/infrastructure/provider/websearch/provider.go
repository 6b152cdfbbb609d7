package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/resilience"
)

type httpStatusError struct {
	Provider   string
	StatusCode int
	Status     string
	Body       string
}

func (e *httpStatusError) Error() string {
	if e == nil {
		return "websearch status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s search status: %s", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s search status: %s: %s", e.Provider, e.Status, strings.TrimSpace(e.Body))
}

func doJSON(client *http.Client, req *http.Request, out any, provider string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s search request: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &httpStatusError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s search response: %w", provider, err)
	}
	return nil
}

func classifyWebSearchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			// Hammering a rate-limited provider makes it worse; trip the
			// breaker and come back later.
			return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
		case statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusRequestTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func executeSearch(ctx context.Context, executor *resilience.Executor, providerID string, fn func(context.Context) error) error {
	if executor == nil {
		return fn(ctx)
	}
	return executor.Execute(ctx, "websearch."+providerID, fn, classifyWebSearchError)
}
