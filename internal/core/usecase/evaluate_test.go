package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

type evaluateScorerFake struct {
	assessment domain.QualityAssessment
	err        error
	calls      int
	lastCount  int
}

func (f *evaluateScorerFake) Score(_ context.Context, _ domain.Query, rs domain.ResultSet) (domain.QualityAssessment, error) {
	f.calls++
	f.lastCount = rs.Count()
	if f.err != nil {
		return domain.QualityAssessment{}, f.err
	}
	return f.assessment, nil
}

func newEvaluatorStage(scorer *evaluateScorerFake, limits PipelineLimits) *evaluatorStage {
	return &evaluatorStage{scorer: scorer, limits: limits.withDefaults(), logger: testLogger()}
}

func emptyResultSet() domain.ResultSet {
	return domain.ResultSet{Results: []domain.InternalResult{}}
}

func resultSetOf(results ...domain.InternalResult) domain.ResultSet {
	return domain.ResultSet{Results: results, TotalFound: len(results)}
}

func TestEvaluatorRunsOnEmptyResultSet(t *testing.T) {
	scorer := &evaluateScorerFake{assessment: domain.QualityAssessment{Score: 0.1}}
	stage := newEvaluatorStage(scorer, PipelineLimits{})

	assessment := stage.run(context.Background(), domain.Query{Text: "q", Limit: 10}, emptyResultSet())

	if scorer.calls != 1 {
		t.Fatalf("evaluator must run on an empty result set, scorer calls = %d", scorer.calls)
	}
	if scorer.lastCount != 0 {
		t.Fatalf("scorer should have seen the empty set, saw count %d", scorer.lastCount)
	}
	if assessment.Sufficient {
		t.Fatalf("empty result set must not be sufficient")
	}
}

func TestEvaluatorEmptySetUnderFallbackHeuristic(t *testing.T) {
	scorer := &evaluateScorerFake{err: errors.New("scorer down")}
	stage := newEvaluatorStage(scorer, PipelineLimits{})

	assessment := stage.run(context.Background(), domain.Query{Text: "q", Limit: 10}, emptyResultSet())

	if !assessment.Fallback {
		t.Fatalf("expected fallback assessment")
	}
	if assessment.Sufficient {
		t.Fatalf("fallback over empty set must be insufficient")
	}
	if assessment.Score != 0 {
		t.Fatalf("expected zero heuristic score for empty set, got %f", assessment.Score)
	}
}

func TestEvaluatorFallbackOnScoringError(t *testing.T) {
	scorer := &evaluateScorerFake{err: errors.New("model unavailable")}
	stage := newEvaluatorStage(scorer, PipelineLimits{})
	rs := resultSetOf(internalResult("a-1", "alpha", 0.8))

	assessment := stage.run(context.Background(), domain.Query{Text: "q", Limit: 10}, rs)

	if !assessment.Fallback {
		t.Fatalf("expected fallback marker")
	}
	if !assessment.Sufficient {
		t.Fatalf("fallback sufficiency is count>0, expected sufficient")
	}
	if assessment.Score <= 0 || assessment.Score > 1 {
		t.Fatalf("heuristic score out of range: %f", assessment.Score)
	}
}

func TestEvaluatorThresholdBoundary(t *testing.T) {
	stage := newEvaluatorStage(&evaluateScorerFake{assessment: domain.QualityAssessment{Score: 0.6}}, PipelineLimits{})
	rs := resultSetOf(internalResult("a-1", "alpha", 0.8))

	if got := stage.run(context.Background(), domain.Query{Text: "q", Limit: 10}, rs); !got.Sufficient {
		t.Fatalf("score at threshold must be sufficient")
	}

	stage = newEvaluatorStage(&evaluateScorerFake{assessment: domain.QualityAssessment{Score: 0.59}}, PipelineLimits{})
	if got := stage.run(context.Background(), domain.Query{Text: "q", Limit: 10}, rs); got.Sufficient {
		t.Fatalf("score below threshold must be insufficient")
	}
}

func TestEvaluatorClampsScore(t *testing.T) {
	stage := newEvaluatorStage(&evaluateScorerFake{assessment: domain.QualityAssessment{Score: 1.7}}, PipelineLimits{})
	rs := resultSetOf(internalResult("a-1", "alpha", 0.8))

	got := stage.run(context.Background(), domain.Query{Text: "q", Limit: 10}, rs)
	if got.Score != 1 {
		t.Fatalf("expected clamp to 1, got %f", got.Score)
	}

	stage = newEvaluatorStage(&evaluateScorerFake{assessment: domain.QualityAssessment{Score: -0.3}}, PipelineLimits{})
	got = stage.run(context.Background(), domain.Query{Text: "q", Limit: 10}, rs)
	if got.Score != 0 {
		t.Fatalf("expected clamp to 0, got %f", got.Score)
	}
	if got.Sufficient {
		t.Fatalf("clamped zero score must be insufficient")
	}
}

func TestEvaluatorClearsRefinementOnEmptySet(t *testing.T) {
	scorer := &evaluateScorerFake{assessment: domain.QualityAssessment{Score: 0.2, RefinedQuery: "try this instead"}}
	stage := newEvaluatorStage(scorer, PipelineLimits{})

	got := stage.run(context.Background(), domain.Query{Text: "q", Limit: 10}, emptyResultSet())
	if got.RefinedQuery != "" {
		t.Fatalf("refinement over an empty set must be dropped, got %q", got.RefinedQuery)
	}

	got = stage.run(context.Background(), domain.Query{Text: "q", Limit: 10}, resultSetOf(internalResult("a-1", "alpha", 0.3)))
	if got.RefinedQuery != "try this instead" {
		t.Fatalf("refinement over a non-empty set must be kept, got %q", got.RefinedQuery)
	}
}

func TestHeuristicScoreCoverage(t *testing.T) {
	q := domain.Query{Text: "async io", TechHint: "python", Limit: 2}
	covered := resultSetOf(
		domain.InternalResult{ContentID: "1", Title: "Python asyncio guide", Score: 0.9},
		domain.InternalResult{ContentID: "2", Title: "CPython internals", Snippet: "python bytecode", Score: 0.8},
	)
	uncovered := resultSetOf(
		domain.InternalResult{ContentID: "1", Title: "Java streams", Score: 0.9},
		domain.InternalResult{ContentID: "2", Title: "Kotlin flows", Score: 0.8},
	)

	if heuristicScore(q, covered) <= heuristicScore(q, uncovered) {
		t.Fatalf("hint coverage must raise the heuristic score")
	}
	if heuristicScore(q, emptyResultSet()) != 0 {
		t.Fatalf("empty set must score zero")
	}
}

func TestDecideEnrichment(t *testing.T) {
	insufficient := domain.QualityAssessment{Score: 0.2}
	refined := domain.QualityAssessment{Score: 0.2, RefinedQuery: "better query"}

	tests := []struct {
		name            string
		q               domain.Query
		a               domain.QualityAssessment
		refinementsUsed int
		want            domain.EnrichmentAction
	}{
		{"sufficient stays internal", domain.Query{Text: "q"}, domain.QualityAssessment{Score: 0.9, Sufficient: true}, 0, domain.EnrichmentNone},
		{"insufficient without refinement goes external", domain.Query{Text: "q"}, insufficient, 0, domain.EnrichmentGoExternal},
		{"insufficient with refinement refines", domain.Query{Text: "q"}, refined, 0, domain.EnrichmentRefineInternal},
		{"refinement budget spent goes external", domain.Query{Text: "q"}, refined, 1, domain.EnrichmentGoExternal},
		{"force external overrides sufficiency", domain.Query{Text: "q", ForceExternal: true}, domain.QualityAssessment{Score: 0.9, Sufficient: true}, 0, domain.EnrichmentGoExternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := decideEnrichment(tc.q, tc.a, tc.refinementsUsed, 1)
			if decision.Action != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, decision.Action)
			}
		})
	}
}

func TestDecideEnrichmentCarriesProvidersAndTopics(t *testing.T) {
	q := domain.Query{Text: "rare topic", ProviderIDs: []string{"brave"}}
	a := domain.QualityAssessment{Score: 0.1, EnrichmentTopics: []string{"rare", "topic"}}

	decision := decideEnrichment(q, a, 0, 1)

	if decision.Action != domain.EnrichmentGoExternal {
		t.Fatalf("expected go_external, got %s", decision.Action)
	}
	if decision.ExternalQuery != "rare topic" {
		t.Fatalf("expected raw text fallback carried, got %q", decision.ExternalQuery)
	}
	if len(decision.ProviderIDs) != 1 || decision.ProviderIDs[0] != "brave" {
		t.Fatalf("expected provider ids carried, got %v", decision.ProviderIDs)
	}
	if len(decision.Topics) != 2 {
		t.Fatalf("expected topics carried, got %v", decision.Topics)
	}
}
