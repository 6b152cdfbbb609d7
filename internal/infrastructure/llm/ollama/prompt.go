package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

const (
	scorePromptMaxResults = 10
	scorePromptMaxSnippet = 500
)

func buildScorePrompt(query domain.Query, rs domain.ResultSet) string {
	var resultsBuilder strings.Builder
	shown := rs.Results
	if len(shown) > scorePromptMaxResults {
		shown = shown[:scorePromptMaxResults]
	}
	for idx, r := range shown {
		snippet := r.Snippet
		if len(snippet) > scorePromptMaxSnippet {
			snippet = snippet[:scorePromptMaxSnippet]
		}
		resultsBuilder.WriteString(fmt.Sprintf(
			"[%d] title=%s workspace=%s score=%.3f\n%s\n\n",
			idx+1,
			r.Title,
			r.Workspace,
			r.Score,
			snippet,
		))
	}
	if resultsBuilder.Len() == 0 {
		resultsBuilder.WriteString("(no results)\n")
	}

	hint := query.TechHint
	if hint == "" {
		hint = "none"
	}

	return fmt.Sprintf(`You judge how well search results answer a developer query.
Return strict JSON object with keys:
score (number from 0 to 1), refined_query (string, empty if a rephrasing would not help), topics (array of short topic strings worth researching on the web).
No markdown, no extra keys.

Query:
%s

Technology hint: %s

Results:
%s`, query.Text, hint, resultsBuilder.String())
}

func buildWebQueryPrompt(query domain.Query, topics []string) string {
	topicLine := "none"
	if len(topics) > 0 {
		topicLine = strings.Join(topics, ", ")
	}

	return fmt.Sprintf(`Rewrite the developer query below as one effective web search query.
Return only the query text on a single line. No quotes, no explanation.

Query:
%s

Technology hint: %s
Related topics: %s
`, query.Text, query.TechHint, topicLine)
}
