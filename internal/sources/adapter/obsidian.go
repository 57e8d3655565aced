package adapter

import (
	"encoding/json"
	"path"
)

// Obsidian implements Adapter for the search MCP tool backed by an
// Obsidian vault. Results carry vault-relative paths; the title is the
// last path component and the URL is a file:// form of the path.
type Obsidian struct{}

func (Obsidian) ToolName() string { return "search" }

func (Obsidian) BuildQuery(userQuery string) (map[string]any, error) {
	return map[string]any{"query": userQuery}, nil
}

func (Obsidian) Parse(content, userQuery string) []Hit {
	var items []struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil
	}

	hits := make([]Hit, 0, len(items))
	for _, it := range items {
		if it.Path == "" {
			continue
		}
		title := path.Base(it.Path)
		hits = append(hits, Hit{
			Title:   title,
			Snippet: truncateSnippet(it.Content),
			URL:     "file://" + it.Path,
			Score:   score(userQuery, title, it.Content),
		})
	}
	return hits
}
