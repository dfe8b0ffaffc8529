package writer

import "strings"

// NormalizeTitles trims every title and drops the ones left empty, keeping order.
// Duplicates are kept.
func NormalizeTitles(titles []string) []string {
	out := make([]string, 0, len(titles))
	for _, title := range titles {
		if t := strings.TrimSpace(title); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// DuplicateTitles lists titles that occur more than once, in first-seen order.
func DuplicateTitles(titles []string) []string {
	seen := make(map[string]int, len(titles))
	var dups []string
	for _, title := range titles {
		seen[title]++
		if seen[title] == 2 {
			dups = append(dups, title)
		}
	}
	return dups
}
