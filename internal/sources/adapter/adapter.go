// Package adapter provides per-source query shaping and payload-to-result
// parsing. Each source exposes a pure buildQuery/parse pair behind a
// shared Adapter interface so the manager can fan out search uniformly.
package adapter

import (
	"net/url"

	"github.com/HyphaGroup/sourcehub/internal/mcpclient"
	"github.com/HyphaGroup/sourcehub/internal/sources/scoring"
	"github.com/HyphaGroup/sourcehub/internal/wire"
)

// Hit is one parsed, unscored result before the manager assigns it an id
// and source kind.
type Hit struct {
	Title    string
	Snippet  string
	URL      string
	Score    float64
	Metadata map[string]string
}

// Adapter shapes a user query into a tool call and parses the tool's
// response back into hits. Both halves are pure: no I/O, no client state.
type Adapter interface {
	// ToolName is the name of the MCP tool this source exposes for search.
	ToolName() string
	// BuildQuery returns the arguments to pass to ToolName for userQuery.
	BuildQuery(userQuery string) (map[string]any, error)
	// Parse extracts SearchResult candidates from a tool's flattened text
	// content, scoring each against userQuery. Malformed items are
	// skipped silently; it never returns an error for partial data.
	Parse(content string, userQuery string) []Hit
}

// maxSnippetLength matches the 200-character truncation the spec
// mandates for every adapter.
const maxSnippetLength = 200

func truncateSnippet(s string) string {
	r := []rune(s)
	if len(r) <= maxSnippetLength {
		return s
	}
	return string(r[:maxSnippetLength])
}

// BuildArguments converts an adapter's plain-value argument map into the
// wire.Value form mcpclient.CallTool expects.
func BuildArguments(args map[string]any) (map[string]wire.Value, error) {
	return mcpclient.MarshalArgs(args)
}

// score is a thin wrapper so individual adapter files don't each import
// the scoring package under a different name.
func score(query, title, body string) float64 {
	return scoring.Score(query, title, body)
}

// validURL returns s if it parses as a well-formed absolute URL, else "".
func validURL(s string) string {
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return ""
	}
	return s
}
