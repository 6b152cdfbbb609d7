package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

const (
	relatedTopicLimit  = 3
	topicRecordTimeout = 3 * time.Second
)

// enrichmentStage queries external web providers when internal knowledge was
// judged insufficient. Provider failures and open breakers are skipped and
// counted; all providers failing yields an empty list, never an error.
type enrichmentStage struct {
	generator  ports.ExternalQueryGenerator
	providers  []ports.ExternalSearchProvider
	dispatcher ports.EnrichmentDispatcher
	topics     ports.TopicGraph
	limits     PipelineLimits
	logger     *slog.Logger
}

type providerOutcome struct {
	results []domain.ExternalResult
	err     error
}

func (s *enrichmentStage) run(ctx context.Context, q domain.Query, decision domain.EnrichmentDecision) []domain.ExternalResult {
	selected := s.selectProviders(decision.ProviderIDs)
	if len(selected) == 0 {
		return []domain.ExternalResult{}
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.limits.EnrichmentTimeout)
	defer cancel()

	externalQuery := s.buildExternalQuery(stageCtx, q, decision)

	outcomes := make([]providerOutcome, len(selected))
	var wg sync.WaitGroup
	for i, provider := range selected {
		wg.Add(1)
		go func(slot int, p ports.ExternalSearchProvider) {
			defer wg.Done()
			callCtx, cancelCall := context.WithTimeout(stageCtx, s.limits.ProviderTimeout)
			defer cancelCall()
			results, err := p.Search(callCtx, externalQuery, s.limits.MaxExternalResults)
			outcomes[slot] = providerOutcome{results: results, err: err}
		}(i, provider)
	}
	wg.Wait()

	// Aggregation follows provider configuration order, capped across all
	// providers combined.
	aggregated := make([]domain.ExternalResult, 0, s.limits.MaxExternalResults)
	skipped := 0
	for i, out := range outcomes {
		if out.err != nil {
			skipped++
			s.logger.Warn("external_provider_failed", "provider", selected[i].ID(), "error", out.err)
			continue
		}
		for _, r := range out.results {
			if len(aggregated) >= s.limits.MaxExternalResults {
				break
			}
			aggregated = append(aggregated, r)
		}
	}
	if skipped > 0 {
		s.logger.Info("external_providers_skipped", "skipped", skipped, "selected", len(selected))
	}

	if len(aggregated) > 0 {
		s.dispatch(q, decision, aggregated)
	}
	s.recordEnrichment(q, decision, selected)
	return aggregated
}

// buildExternalQuery asks the generation collaborator for a web-optimized
// query and falls back to the decision's raw text on any failure.
func (s *enrichmentStage) buildExternalQuery(ctx context.Context, q domain.Query, decision domain.EnrichmentDecision) string {
	raw := decision.ExternalQuery
	if raw == "" {
		raw = q.Text
	}
	if s.generator == nil {
		return raw
	}

	topics := decision.Topics
	if len(topics) == 0 && s.topics != nil && q.TechHint != "" {
		related, err := s.topics.RelatedTopics(ctx, q.TechHint, relatedTopicLimit)
		if err != nil {
			s.logger.Warn("related_topics_lookup_failed", "topic", q.TechHint, "error", err)
		} else {
			topics = related
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, s.limits.QueryGenTimeout)
	defer cancel()
	generated, err := s.generator.GenerateExternalQuery(genCtx, q, topics)
	if err != nil {
		s.logger.Warn("external_query_generation_failed", "error", err)
		return raw
	}
	generated = strings.TrimSpace(generated)
	if generated == "" {
		return raw
	}
	return generated
}

func (s *enrichmentStage) selectProviders(ids []string) []ports.ExternalSearchProvider {
	if len(ids) == 0 {
		return s.providers
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	selected := make([]ports.ExternalSearchProvider, 0, len(ids))
	for _, p := range s.providers {
		if _, ok := wanted[p.ID()]; ok {
			selected = append(selected, p)
		}
	}
	return selected
}

// dispatch hands accepted results to the ingestion pipeline. The dispatcher
// is non-blocking; the search response never waits on ingestion.
func (s *enrichmentStage) dispatch(q domain.Query, decision domain.EnrichmentDecision, results []domain.ExternalResult) {
	if s.dispatcher == nil {
		return
	}
	fingerprint := q.Fingerprint()
	candidates := make([]domain.EnrichmentCandidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, domain.EnrichmentCandidate{
			ID:          uuid.NewString(),
			URL:         r.URL,
			Title:       r.Title,
			Snippet:     r.Snippet,
			ProviderID:  r.ProviderID,
			Workspace:   s.limits.IngestWorkspace,
			TechHint:    q.TechHint,
			Fingerprint: fingerprint,
			Topics:      decision.Topics,
			AcceptedAt:  time.Now().UTC(),
		})
	}
	s.dispatcher.DispatchAsync(candidates)
}

func (s *enrichmentStage) recordEnrichment(q domain.Query, decision domain.EnrichmentDecision, selected []ports.ExternalSearchProvider) {
	if s.topics == nil {
		return
	}
	providerIDs := make([]string, 0, len(selected))
	for _, p := range selected {
		providerIDs = append(providerIDs, p.ID())
	}
	go func() {
		recordCtx, cancel := context.WithTimeout(context.Background(), topicRecordTimeout)
		defer cancel()
		if err := s.topics.RecordEnrichment(recordCtx, q.Fingerprint(), q.Text, decision.Topics, providerIDs); err != nil {
			s.logger.Warn("topic_graph_record_failed", "error", err)
		}
	}()
}
