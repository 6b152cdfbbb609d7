package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// retrievalStage fans one query out across the selected workspaces. It never
// fails the pipeline: infrastructure errors are absorbed into the
// failed-workspace tally and the worst case is an empty ResultSet.
type retrievalStage struct {
	searcher ports.WorkspaceSearcher
	embedder ports.Embedder
	limits   PipelineLimits
	logger   *slog.Logger
}

type workspaceOutcome struct {
	results []domain.InternalResult
	err     error
}

func (s *retrievalStage) run(ctx context.Context, q domain.Query, workspaces []domain.WorkspaceDescriptor) domain.ResultSet {
	start := time.Now()
	targets := selectWorkspaces(workspaces, q.TechHint)
	rs := domain.ResultSet{
		Results:            []domain.InternalResult{},
		SearchedWorkspaces: len(targets),
	}
	if len(targets) == 0 {
		rs.Elapsed = time.Since(start)
		return rs
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.limits.RetrievalTimeout)
	defer cancel()

	queryVector, err := s.embedder.EmbedQuery(stageCtx, q.Text)
	if err != nil {
		s.logger.Warn("query_embed_failed", "error", err)
		queryVector = nil
	}

	// Outcomes land in per-workspace slots so goroutine completion order can
	// never influence merge order.
	window := q.Window()
	outcomes := make([]workspaceOutcome, len(targets))
	sem := make(chan struct{}, s.limits.WorkspaceConcurrency)
	var wg sync.WaitGroup
	for i, ws := range targets {
		wg.Add(1)
		go func(slot int, slug string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-stageCtx.Done():
				outcomes[slot] = workspaceOutcome{err: stageCtx.Err()}
				return
			}
			defer func() { <-sem }()

			callCtx, cancelCall := context.WithTimeout(stageCtx, s.limits.WorkspaceTimeout)
			defer cancelCall()
			outcomes[slot] = s.searchOne(callCtx, slug, queryVector, q.Text, window)
		}(i, ws.Slug)
	}
	wg.Wait()

	merged := make([]domain.InternalResult, 0, window)
	seen := make(map[string]struct{}, window)
	for i, out := range outcomes {
		if out.err != nil {
			rs.FailedWorkspaces++
			s.logger.Warn("workspace_search_failed", "workspace", targets[i].Slug, "error", out.err)
			continue
		}
		for _, r := range out.results {
			if _, dup := seen[r.ContentID]; dup {
				continue
			}
			seen[r.ContentID] = struct{}{}
			merged = append(merged, r)
		}
	}

	// Concatenation order is workspace iteration order, so the stable sort
	// resolves equal scores in favor of earlier workspaces.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	rs.TotalFound = len(merged)
	if len(merged) > window {
		merged = merged[:window]
	}
	rs.Results = merged
	rs.Elapsed = time.Since(start)
	return rs
}

// searchOne degrades to lexical search when the query could not be embedded,
// so an embedder outage does not translate into every workspace failing.
func (s *retrievalStage) searchOne(ctx context.Context, slug string, queryVector []float32, text string, limit int) workspaceOutcome {
	var (
		results []domain.InternalResult
		err     error
	)
	if len(queryVector) > 0 {
		results, err = s.searcher.SearchWorkspace(ctx, slug, queryVector, limit)
	} else {
		results, err = s.searcher.SearchLexical(ctx, slug, text, limit)
	}
	if err != nil {
		return workspaceOutcome{err: err}
	}
	if results == nil {
		results = []domain.InternalResult{}
	}
	return workspaceOutcome{results: results}
}

// selectWorkspaces keeps workspaces matching the technology hint and falls
// back to all active workspaces when the hint is empty or matches none.
func selectWorkspaces(all []domain.WorkspaceDescriptor, hint string) []domain.WorkspaceDescriptor {
	if hint == "" {
		return all
	}
	matched := make([]domain.WorkspaceDescriptor, 0, len(all))
	for _, ws := range all {
		if ws.MatchesTech(hint) {
			matched = append(matched, ws)
		}
	}
	if len(matched) == 0 {
		return all
	}
	return matched
}
