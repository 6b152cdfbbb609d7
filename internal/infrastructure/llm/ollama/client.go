package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds an Ollama client. A nil executor means direct calls without
// retry or breaker, which is what tests want.
func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, wrapTemporaryIfNeeded("embed texts", err)
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Scorer judges a retrieval result set against the query. It always produces
// a verdict, including over an empty set.
type Scorer struct {
	client *Client
}

func NewScorer(client *Client) *Scorer {
	return &Scorer{client: client}
}

func (s *Scorer) Score(ctx context.Context, query domain.Query, rs domain.ResultSet) (domain.QualityAssessment, error) {
	respText, err := s.client.generateJSON(ctx, buildScorePrompt(query, rs))
	if err != nil {
		return domain.QualityAssessment{}, wrapTemporaryIfNeeded("score results", err)
	}

	var result struct {
		Score        float64  `json:"score"`
		RefinedQuery string   `json:"refined_query"`
		Topics       []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.QualityAssessment{}, fmt.Errorf("parse score json: %w", err)
	}
	if result.Topics == nil {
		result.Topics = []string{}
	}
	return domain.QualityAssessment{
		Score:            result.Score,
		RefinedQuery:     strings.TrimSpace(result.RefinedQuery),
		EnrichmentTopics: result.Topics,
	}, nil
}

// QueryGenerator rewrites an internal query into a web search query.
type QueryGenerator struct {
	client *Client
}

func NewQueryGenerator(client *Client) *QueryGenerator {
	return &QueryGenerator{client: client}
}

func (g *QueryGenerator) GenerateExternalQuery(ctx context.Context, query domain.Query, topics []string) (string, error) {
	respText, err := g.client.generateText(ctx, buildWebQueryPrompt(query, topics))
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate web query", err)
	}
	return firstQueryLine(respText), nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// firstQueryLine reduces model output to one clean search query line. Models
// like to wrap queries in quotes or add commentary on following lines.
func firstQueryLine(raw string) string {
	line := raw
	if idx := strings.IndexAny(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	line = strings.Trim(line, "\"'`")
	return strings.Join(strings.Fields(line), " ")
}
