package adapter

import "encoding/json"

// GitHub implements Adapter for the search_code MCP tool. title is the
// file's path within its repository; the repository's full name is kept
// as metadata when present.
type GitHub struct{}

func (GitHub) ToolName() string { return "search_code" }

func (GitHub) BuildQuery(userQuery string) (map[string]any, error) {
	return map[string]any{"q": userQuery}, nil
}

func (GitHub) Parse(content, userQuery string) []Hit {
	var payload struct {
		Items []struct {
			Name       string `json:"name"`
			Path       string `json:"path"`
			Repository *struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
			HTMLURL string `json:"html_url"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil
	}

	hits := make([]Hit, 0, len(payload.Items))
	for _, it := range payload.Items {
		if it.Path == "" {
			continue
		}
		var meta map[string]string
		if it.Repository != nil && it.Repository.FullName != "" {
			meta = map[string]string{"repository": it.Repository.FullName}
		}
		hits = append(hits, Hit{
			Title:    it.Path,
			URL:      validURL(it.HTMLURL),
			Score:    score(userQuery, it.Path, it.Name),
			Metadata: meta,
		})
	}
	return hits
}
