package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

const (
	heuristicCountWeight    = 0.35
	heuristicTopWeight      = 0.30
	heuristicAvgWeight      = 0.20
	heuristicCoverageWeight = 0.15
)

// evaluatorStage judges retrieval quality. It runs after every retrieval
// pass, including over an empty ResultSet, and it never fails: a scoring
// collaborator error degrades to the deterministic heuristic.
type evaluatorStage struct {
	scorer ports.QualityScorer
	limits PipelineLimits
	logger *slog.Logger
}

func (s *evaluatorStage) run(ctx context.Context, q domain.Query, rs domain.ResultSet) domain.QualityAssessment {
	assessment, err := s.score(ctx, q, rs)
	if err != nil {
		s.logger.Warn("quality_scoring_failed", "error", err)
		assessment = fallbackAssessment(q, rs)
	} else {
		assessment.Score = clamp01(assessment.Score)
		assessment.Sufficient = assessment.Score >= s.limits.QualityThreshold
	}

	// Refining makes sense only over existing results; an empty set goes
	// external instead.
	if rs.Count() == 0 {
		assessment.RefinedQuery = ""
	} else {
		assessment.RefinedQuery = strings.TrimSpace(assessment.RefinedQuery)
	}
	return assessment
}

func (s *evaluatorStage) score(ctx context.Context, q domain.Query, rs domain.ResultSet) (domain.QualityAssessment, error) {
	if s.scorer == nil {
		return domain.QualityAssessment{}, errors.New("no scorer configured")
	}
	scoreCtx, cancel := context.WithTimeout(ctx, s.limits.EvaluateTimeout)
	defer cancel()
	return s.scorer.Score(scoreCtx, q, rs)
}

// fallbackAssessment is the degraded path: sufficiency collapses to "did we
// find anything at all", the heuristic score is kept for observability.
func fallbackAssessment(q domain.Query, rs domain.ResultSet) domain.QualityAssessment {
	return domain.QualityAssessment{
		Score:      heuristicScore(q, rs),
		Sufficient: rs.Count() > 0,
		Fallback:   true,
	}
}

// heuristicScore weighs result volume against the requested limit, best and
// average relevance, and coverage of the technology hint.
func heuristicScore(q domain.Query, rs domain.ResultSet) float64 {
	if rs.Count() == 0 {
		return 0
	}
	countScore := clamp01(float64(rs.Count()) / float64(q.Limit))

	var top, sum float64
	covered := 0
	hint := strings.ToLower(q.TechHint)
	for _, r := range rs.Results {
		if r.Score > top {
			top = r.Score
		}
		sum += r.Score
		if coversHint(r, hint) {
			covered++
		}
	}
	avg := sum / float64(rs.Count())

	coverage := 1.0
	if hint != "" {
		coverage = float64(covered) / float64(rs.Count())
	}

	score := heuristicCountWeight*countScore +
		heuristicTopWeight*clamp01(top) +
		heuristicAvgWeight*clamp01(avg) +
		heuristicCoverageWeight*coverage
	return clamp01(score)
}

func coversHint(r domain.InternalResult, hint string) bool {
	if hint == "" {
		return false
	}
	if strings.Contains(strings.ToLower(r.Title), hint) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Snippet), hint) {
		return true
	}
	return r.Metadata["technology"] == hint
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// decideEnrichment derives the single enrichment action for this cycle from
// the assessment and the query flags. At most maxRefinements refinement
// passes are ever granted per search.
func decideEnrichment(q domain.Query, a domain.QualityAssessment, refinementsUsed, maxRefinements int) domain.EnrichmentDecision {
	if q.ForceExternal {
		return domain.EnrichmentDecision{
			Action:        domain.EnrichmentGoExternal,
			ExternalQuery: q.Text,
			ProviderIDs:   q.ProviderIDs,
			Topics:        a.EnrichmentTopics,
		}
	}
	if a.Sufficient {
		return domain.EnrichmentDecision{Action: domain.EnrichmentNone}
	}
	if a.RefinedQuery != "" && refinementsUsed < maxRefinements {
		return domain.EnrichmentDecision{
			Action:       domain.EnrichmentRefineInternal,
			RefinedQuery: a.RefinedQuery,
		}
	}
	return domain.EnrichmentDecision{
		Action:        domain.EnrichmentGoExternal,
		ExternalQuery: q.Text,
		ProviderIDs:   q.ProviderIDs,
		Topics:        a.EnrichmentTopics,
	}
}
