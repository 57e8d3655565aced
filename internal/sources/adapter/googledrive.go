package adapter

import "encoding/json"

// GoogleDrive implements Adapter for the search MCP tool exposed by a
// Google Drive MCP server. There is no body field in this payload shape,
// so snippets are always empty and scoring relies on title alone.
type GoogleDrive struct{}

func (GoogleDrive) ToolName() string { return "search" }

func (GoogleDrive) BuildQuery(userQuery string) (map[string]any, error) {
	return map[string]any{"query": userQuery}, nil
}

func (GoogleDrive) Parse(content, userQuery string) []Hit {
	var items []struct {
		Name        string `json:"name"`
		MimeType    string `json:"mimeType"`
		WebViewLink string `json:"webViewLink"`
	}
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil
	}

	hits := make([]Hit, 0, len(items))
	for _, it := range items {
		if it.Name == "" {
			continue
		}
		var meta map[string]string
		if it.MimeType != "" {
			meta = map[string]string{"mimeType": it.MimeType}
		}
		hits = append(hits, Hit{
			Title:    it.Name,
			URL:      validURL(it.WebViewLink),
			Score:    score(userQuery, it.Name, ""),
			Metadata: meta,
		})
	}
	return hits
}
