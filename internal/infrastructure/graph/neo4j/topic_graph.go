package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// Compile-time check: Graph implements ports.TopicGraph.
var _ ports.TopicGraph = (*Graph)(nil)

// Graph keeps a record of which topics and providers each query fingerprint
// touched, and answers topic co-occurrence lookups for query generation.
type Graph struct {
	driver neo4j.DriverWithContext
}

func New(ctx context.Context, uri, username, password string) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Graph{driver: driver}, nil
}

func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

const recordEnrichmentCypher = `
MERGE (q:Query {fingerprint: $fingerprint})
SET q.text = $text, q.enriched_at = datetime()
FOREACH (name IN $topics |
  MERGE (t:Topic {name: name})
  MERGE (q)-[:TOUCHES]->(t))
FOREACH (id IN $providers |
  MERGE (p:Provider {id: id})
  MERGE (q)-[:QUERIED]->(p))`

func (g *Graph) RecordEnrichment(ctx context.Context, fingerprint, queryText string, topics []string, providerIDs []string) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"fingerprint": fingerprint,
		"text":        queryText,
		"topics":      toAnySlice(topics),
		"providers":   toAnySlice(providerIDs),
	}
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, recordEnrichmentCypher, params)
		if err != nil {
			return nil, err
		}
		return nil, result.Err()
	})
	if err != nil {
		return fmt.Errorf("record enrichment: %w", err)
	}
	return nil
}

const relatedTopicsCypher = `
MATCH (t:Topic {name: $topic})<-[:TOUCHES]-(:Query)-[:TOUCHES]->(related:Topic)
WHERE related.name <> $topic
RETURN related.name AS name, count(*) AS weight
ORDER BY weight DESC
LIMIT $limit`

func (g *Graph) RelatedTopics(ctx context.Context, topic string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	params := map[string]any{
		"topic": topic,
		"limit": int64(limit),
	}
	names, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, relatedTopicsCypher, params)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, limit)
		for result.Next(ctx) {
			value, ok := result.Record().Get("name")
			if !ok {
				continue
			}
			if name, ok := value.(string); ok {
				out = append(out, name)
			}
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("related topics: %w", err)
	}
	return names.([]string), nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
