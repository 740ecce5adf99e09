package search

import (
	"regexp"
	"strings"

	"retrieval-platform/pkg/types"
)

// quotedPhrase matches a "double quoted phrase" anywhere in the query.
var quotedPhrase = regexp.MustCompile(`"([^"]+)"`)

// stopWords are the common English function words stripped by
// remove_stop_words; short and deliberately conservative so it never
// empties a short, content-bearing query.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "is": true, "it": true,
	"on": true, "for": true, "with": true, "as": true, "at": true,
	"by": true, "be": true, "this": true, "that": true, "are": true,
}

// parsedQuery is the result of step 1 of spec.md §4.5: the text that
// gets embedded/branched on, plus the required phrases and negated
// terms extracted from quotes and -prefixes, applied as a post-fusion
// filter in filterRequiredNegated.
type parsedQuery struct {
	Text     string
	Required []string
	Negated  []string
}

// parseQuery implements SearchEngine step 1. useQuoteNegated extracts
// quoted phrases as required terms and -prefixed tokens as negations
// before stop-word removal runs on whatever text remains.
func parseQuery(query string, useQuoteNegated, removeStopWords bool) parsedQuery {
	pq := parsedQuery{Text: query}

	if useQuoteNegated {
		var required []string
		rest := quotedPhrase.ReplaceAllStringFunc(pq.Text, func(m string) string {
			required = append(required, quotedPhrase.FindStringSubmatch(m)[1])
			return ""
		})

		var negated []string
		var kept []string
		for _, word := range strings.Fields(rest) {
			if len(word) > 1 && word[0] == '-' {
				negated = append(negated, word[1:])
				continue
			}
			kept = append(kept, word)
		}

		pq.Text = strings.Join(kept, " ")
		pq.Required = required
		pq.Negated = negated
	}

	if removeStopWords {
		var kept []string
		for _, word := range strings.Fields(pq.Text) {
			if !stopWords[strings.ToLower(word)] {
				kept = append(kept, word)
			}
		}
		if stripped := strings.Join(kept, " "); strings.TrimSpace(stripped) != "" {
			pq.Text = stripped
		}
	}

	return pq
}

// filterRequiredNegated drops results whose chunk content doesn't
// contain every required phrase, or does contain a negated one. It
// runs after hydration, since matching needs the chunk's content.
func filterRequiredNegated(results []types.SearchResult, required, negated []string) []types.SearchResult {
	if len(required) == 0 && len(negated) == 0 {
		return results
	}
	out := results[:0]
	for _, r := range results {
		content := strings.ToLower(r.Chunk.Content)
		ok := true
		for _, req := range required {
			if !strings.Contains(content, strings.ToLower(req)) {
				ok = false
				break
			}
		}
		if ok {
			for _, neg := range negated {
				if strings.Contains(content, strings.ToLower(neg)) {
					ok = false
					break
				}
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}
