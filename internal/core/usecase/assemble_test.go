package usecase

import (
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

func TestAssembleInternalFirstExternalAppended(t *testing.T) {
	rs := resultSetOf(
		internalResult("a-1", "alpha", 0.9),
		internalResult("b-1", "beta", 0.7),
	)
	external := []domain.ExternalResult{
		externalResult("w-1", "websearch"),
		externalResult("w-2", "websearch"),
	}

	resp := assembleResponse(domain.Query{Text: "q", Limit: 10}, rs, external, domain.QualityAssessment{Score: 0.4}, 12*time.Millisecond, true)

	if resp.TotalCount != 4 || len(resp.Results) != 4 {
		t.Fatalf("expected all 4 results, got %d/%d", len(resp.Results), resp.TotalCount)
	}
	wantOrigins := []domain.ResultOrigin{domain.OriginInternal, domain.OriginInternal, domain.OriginExternal, domain.OriginExternal}
	for i, want := range wantOrigins {
		if resp.Results[i].Origin != want {
			t.Fatalf("position %d: expected origin %s, got %s", i, want, resp.Results[i].Origin)
		}
	}
	if resp.Results[0].Source != "alpha" || resp.Results[2].Source != "websearch" {
		t.Fatalf("sources not carried: %+v", resp.Results)
	}
	if resp.Results[2].URL == "" {
		t.Fatalf("external results must carry their URL")
	}
	if !resp.EnrichmentTriggered || !resp.ExternalSearchUsed {
		t.Fatalf("flags not set: %+v", resp)
	}
}

func TestAssembleFlagsWithoutExternalResults(t *testing.T) {
	rs := resultSetOf(internalResult("a-1", "alpha", 0.9))

	resp := assembleResponse(domain.Query{Text: "q", Limit: 10}, rs, nil, domain.QualityAssessment{Score: 0.2}, time.Millisecond, true)

	if !resp.EnrichmentTriggered {
		t.Fatalf("enrichment was attempted, flag must be set")
	}
	if resp.ExternalSearchUsed {
		t.Fatalf("no external results landed, flag must stay false")
	}
	if resp.CacheHit {
		t.Fatalf("assembly never marks a cache hit")
	}
}

func TestAssembleCarriesPipelineTelemetry(t *testing.T) {
	rs := resultSetOf(internalResult("a-1", "alpha", 0.9))
	rs.FailedWorkspaces = 2

	resp := assembleResponse(domain.Query{Text: "q", Limit: 10}, rs, nil, domain.QualityAssessment{Score: 0.73}, 1500*time.Millisecond, false)

	if resp.FailedWorkspaces != 2 {
		t.Fatalf("failed workspace count not carried, got %d", resp.FailedWorkspaces)
	}
	if resp.QualityScore != 0.73 {
		t.Fatalf("quality score not carried, got %f", resp.QualityScore)
	}
	if resp.ExecutionMS != 1500 {
		t.Fatalf("execution time not carried, got %d", resp.ExecutionMS)
	}
}

func TestAssemblePagination(t *testing.T) {
	rs := resultSetOf(
		internalResult("r-1", "alpha", 0.9),
		internalResult("r-2", "alpha", 0.8),
		internalResult("r-3", "alpha", 0.7),
		internalResult("r-4", "alpha", 0.6),
		internalResult("r-5", "alpha", 0.5),
	)

	resp := assembleResponse(domain.Query{Text: "q", Limit: 2, Offset: 2}, rs, nil, domain.QualityAssessment{}, 0, false)

	if len(resp.Results) != 2 {
		t.Fatalf("expected page of 2, got %d", len(resp.Results))
	}
	if resp.Results[0].ContentID != "r-3" || resp.Results[1].ContentID != "r-4" {
		t.Fatalf("wrong page window: %v", resp.Results)
	}
	if resp.TotalCount != 5 {
		t.Fatalf("total count must span all pages, got %d", resp.TotalCount)
	}

	// Offset past the end is an empty page, not an error.
	resp = assembleResponse(domain.Query{Text: "q", Limit: 2, Offset: 10}, rs, nil, domain.QualityAssessment{}, 0, false)
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected well-formed empty page, got %#v", resp.Results)
	}
	if resp.TotalCount != 5 {
		t.Fatalf("total count must survive an empty page, got %d", resp.TotalCount)
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	rs := resultSetOf(
		internalResult("a-1", "alpha", 0.9),
		internalResult("b-1", "beta", 0.7),
	)
	external := []domain.ExternalResult{externalResult("w-1", "websearch")}
	q := domain.Query{Text: "q", Limit: 10}
	assessment := domain.QualityAssessment{Score: 0.5}

	first := assembleResponse(q, rs, external, assessment, time.Second, true)
	second := assembleResponse(q, rs, external, assessment, time.Second, true)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("assembly is not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAssembleEmptyEverything(t *testing.T) {
	resp := assembleResponse(domain.Query{Text: "q", Limit: 10}, domain.ResultSet{Results: []domain.InternalResult{}}, nil, domain.QualityAssessment{}, 0, false)

	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected well-formed empty response, got %#v", resp)
	}
	if resp.TotalCount != 0 || resp.ExternalSearchUsed || resp.EnrichmentTriggered {
		t.Fatalf("unexpected response fields: %+v", resp)
	}
}
