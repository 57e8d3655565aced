package adapter

import "encoding/json"

// Notion implements Adapter for the notion-search MCP tool.
type Notion struct{}

func (Notion) ToolName() string { return "notion-search" }

func (Notion) BuildQuery(userQuery string) (map[string]any, error) {
	return map[string]any{"query": userQuery}, nil
}

func (Notion) Parse(content, userQuery string) []Hit {
	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			URL     string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil
	}

	hits := make([]Hit, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.Title == "" {
			continue
		}
		hits = append(hits, Hit{
			Title:   r.Title,
			Snippet: truncateSnippet(r.Content),
			URL:     validURL(r.URL),
			Score:   score(userQuery, r.Title, r.Content),
		})
	}
	return hits
}
