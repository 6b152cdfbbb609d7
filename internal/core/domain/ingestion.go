package domain

import "time"

// EnrichmentCandidate is the queue message handed from the search path to the
// ingestion worker for one accepted external result.
type EnrichmentCandidate struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	ProviderID  string    `json:"provider_id"`
	Workspace   string    `json:"workspace"`
	TechHint    string    `json:"tech_hint,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	AcceptedAt  time.Time `json:"accepted_at"`
}

// FetchedContent is the raw body of one fetched external page plus enough
// metadata to route it to an extractor.
type FetchedContent struct {
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// IngestedContent is extracted text ready for chunking and indexing under a
// workspace collection.
type IngestedContent struct {
	ContentID  string
	Title      string
	URL        string
	ProviderID string
	Text       string
}
