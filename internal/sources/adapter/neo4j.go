package adapter

import (
	"encoding/json"
	"strings"
)

// Neo4j implements Adapter for the execute_query MCP tool. The Cypher
// query and its LIMIT are both hard-coded for parity with the system this
// behavior was distilled from.
type Neo4j struct{}

func (Neo4j) ToolName() string { return "execute_query" }

const neo4jCypher = "MATCH (n) WHERE n.name CONTAINS $query OR n.description CONTAINS $query RETURN n LIMIT 10"

func (Neo4j) BuildQuery(userQuery string) (map[string]any, error) {
	return map[string]any{
		"query":  neo4jCypher,
		"params": map[string]any{"query": userQuery},
	}, nil
}

func (Neo4j) Parse(content, userQuery string) []Hit {
	var payload struct {
		Records []struct {
			N struct {
				Properties struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				} `json:"properties"`
				Labels []string `json:"labels"`
			} `json:"n"`
		} `json:"records"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil
	}

	hits := make([]Hit, 0, len(payload.Records))
	for _, r := range payload.Records {
		name := r.N.Properties.Name
		if name == "" {
			continue
		}
		var meta map[string]string
		if len(r.N.Labels) > 0 {
			meta = map[string]string{"labels": strings.Join(r.N.Labels, ",")}
		}
		hits = append(hits, Hit{
			Title:    name,
			Snippet:  truncateSnippet(r.N.Properties.Description),
			Score:    score(userQuery, name, r.N.Properties.Description),
			Metadata: meta,
		})
	}
	return hits
}
