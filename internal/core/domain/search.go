package domain

import "time"

// SearchRequest is the raw, untrusted input to the pipeline. It becomes a
// Query only after normalization.
type SearchRequest struct {
	Text          string   `json:"q"`
	TechHint      string   `json:"technology,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	Offset        int      `json:"offset,omitempty"`
	ProviderIDs   []string `json:"providers,omitempty"`
	ForceExternal bool     `json:"force_external,omitempty"`
	SessionID     string   `json:"session_id,omitempty"`
}

// Query is a normalized, validated search request. Instances are treated as
// immutable once built.
type Query struct {
	Text          string
	TechHint      string
	Limit         int
	Offset        int
	ProviderIDs   []string
	ForceExternal bool
	SessionID     string
}

// WithText returns a copy of the query carrying different text, used for the
// refinement pass.
func (q Query) WithText(text string) Query {
	refined := q
	refined.Text = text
	return refined
}

// Window is the number of internal results retrieval must produce so that
// pagination has material to slice.
func (q Query) Window() int {
	return q.Limit + q.Offset
}

type WorkspaceDescriptor struct {
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	TechTags []string `json:"tech_tags,omitempty"`
}

// MatchesTech reports whether the workspace declares affinity for the given
// technology hint. An empty hint matches nothing.
func (w WorkspaceDescriptor) MatchesTech(hint string) bool {
	if hint == "" {
		return false
	}
	for _, tag := range w.TechTags {
		if tag == hint {
			return true
		}
	}
	return false
}

type InternalResult struct {
	ContentID string            `json:"content_id"`
	Title     string            `json:"title"`
	Snippet   string            `json:"snippet"`
	Workspace string            `json:"workspace"`
	Score     float64           `json:"score"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ResultSet is the outcome of one retrieval pass. It is always well-formed:
// an empty set is a valid answer, distinct from a pass that never ran.
type ResultSet struct {
	Results            []InternalResult `json:"results"`
	TotalFound         int              `json:"total_found"`
	SearchedWorkspaces int              `json:"searched_workspaces"`
	FailedWorkspaces   int              `json:"failed_workspaces"`
	Elapsed            time.Duration    `json:"-"`
}

func (rs ResultSet) Count() int {
	return len(rs.Results)
}

type QualityAssessment struct {
	Score            float64  `json:"score"`
	Sufficient       bool     `json:"sufficient"`
	RefinedQuery     string   `json:"refined_query,omitempty"`
	EnrichmentTopics []string `json:"enrichment_topics,omitempty"`
	// Fallback marks that the scoring collaborator failed and the
	// deterministic heuristic produced this assessment.
	Fallback bool `json:"fallback,omitempty"`
}

type EnrichmentAction string

const (
	EnrichmentNone           EnrichmentAction = "none"
	EnrichmentRefineInternal EnrichmentAction = "refine_internal"
	EnrichmentGoExternal     EnrichmentAction = "go_external"
)

// EnrichmentDecision carries exactly one action per evaluation cycle. The
// fields beyond Action are only meaningful for the action that set them.
type EnrichmentDecision struct {
	Action        EnrichmentAction
	RefinedQuery  string
	ExternalQuery string
	ProviderIDs   []string
	Topics        []string
}

type ExternalResult struct {
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	URL         string    `json:"url"`
	ProviderID  string    `json:"provider_id"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

type ResultOrigin string

const (
	OriginInternal ResultOrigin = "internal"
	OriginExternal ResultOrigin = "external"
)

type SearchResult struct {
	ContentID string       `json:"content_id,omitempty"`
	Title     string       `json:"title"`
	Snippet   string       `json:"snippet"`
	Source    string       `json:"source"`
	Origin    ResultOrigin `json:"origin"`
	URL       string       `json:"url,omitempty"`
	Score     float64      `json:"score"`
}

// SearchResponse is the single output type of the pipeline and the only value
// the result cache may hold, serialized.
type SearchResponse struct {
	Results             []SearchResult `json:"results"`
	TotalCount          int            `json:"total_count"`
	ExecutionMS         int64          `json:"execution_ms"`
	QualityScore        float64        `json:"quality_score"`
	FailedWorkspaces    int            `json:"failed_workspaces"`
	CacheHit            bool           `json:"cache_hit"`
	EnrichmentTriggered bool           `json:"enrichment_triggered"`
	ExternalSearchUsed  bool           `json:"external_search_used"`
}
