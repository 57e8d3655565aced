// Package scoring implements the relevance scoring formula used to rank
// search results fanned out across connected sources.
package scoring

import "strings"

// Score computes the relevance of (title, body) against query, all
// compared case-insensitively. The result is clamped to [0, 1].
func Score(query, title, body string) float64 {
	q := strings.ToLower(query)
	t := strings.ToLower(title)
	b := strings.ToLower(body)

	var s float64
	switch {
	case t == q:
		s += 1.0
	case strings.Contains(t, q):
		s += 0.7
	}

	if strings.Contains(b, q) {
		s += 0.3
	}

	qw := splitWords(q)
	if len(qw) > 0 {
		tw := distinctWords(t)
		matched := 0
		for _, w := range qw {
			if tw[w] {
				matched++
			}
		}
		s += 0.5 * (float64(matched) / float64(len(qw)))
	}

	if s > 1.0 {
		s = 1.0
	}
	return s
}

func splitWords(s string) []string {
	return strings.Fields(s)
}

func distinctWords(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
