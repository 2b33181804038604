package engine

import "strings"

// Split cuts content into ordered pieces of at most max bytes each. The cut
// lands at the nearest preceding paragraph break, then sentence break, as
// long as the boundary lies within 20% of the ceiling; otherwise it is a
// hard cut at the ceiling. The same input always yields the same sequence,
// and the pieces concatenate back to the original content.
func Split(content string, max int) []string {
	if content == "" {
		return nil
	}
	if max <= 0 || len(content) <= max {
		return []string{content}
	}

	tolerance := max - max/5
	var out []string
	rest := content
	for len(rest) > max {
		window := rest[:max]
		cut := max
		if i := strings.LastIndex(window, "\n\n"); i >= 0 && i+2 >= tolerance {
			cut = i + 2
		} else if i := strings.LastIndex(window, ". "); i >= 0 && i+2 >= tolerance {
			cut = i + 2
		}
		out = append(out, rest[:cut])
		rest = rest[cut:]
	}
	if len(rest) > 0 {
		out = append(out, rest)
	}
	return out
}
