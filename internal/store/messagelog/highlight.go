package messagelog

import (
	"regexp"
	"strings"
)

var emTagPattern = regexp.MustCompile(`<em>(.*?)</em>`)

// applyHighlight transfers the <em> markers from the index's highlighted copy
// onto the stored content. Only the matched term is taken from the index; the
// surrounding text always comes from the primary store.
func applyHighlight(content, highlighted string) string {
	terms := emTerms(highlighted)
	if len(terms) == 0 {
		return content
	}
	return wrapTerm(content, terms[0])
}

func emTerms(highlighted string) []string {
	matches := emTagPattern.FindAllStringSubmatch(highlighted, -1)
	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[1] != "" {
			terms = append(terms, m[1])
		}
	}
	return terms
}

func wrapTerm(content, term string) string {
	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	if err != nil {
		return content
	}
	return pattern.ReplaceAllStringFunc(content, func(match string) string {
		if strings.HasPrefix(match, "<em>") {
			return match
		}
		return "<em>" + match + "</em>"
	})
}
