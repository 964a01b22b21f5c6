// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package periodconcat

import "strings"

const undetermined = "und"

// splitLanguage returns the lower-cased primary subtag of tag and whether
// tag carries any further subtag (region, script or variant alike).
func splitLanguage(tag string) (base string, regional bool) {
	b, rest, found := strings.Cut(tag, "-")
	return strings.ToLower(b), found && rest != ""
}

// bestFit picks the substitute for a language missing from a period among
// the languages that period does have. A candidate with the same base
// language replaces the current pick when the pick's base differs or the
// candidate is regional. Without a same-base candidate the first one wins.
// With no candidates lang itself is returned.
func bestFit(candidates []string, lang string) string {
	if len(candidates) == 0 {
		return lang
	}
	want, _ := splitLanguage(lang)
	best := candidates[0]
	for _, c := range candidates {
		base, regional := splitLanguage(c)
		if base != want {
			continue
		}
		if bestBase, _ := splitLanguage(best); bestBase != want || regional {
			best = c
		}
	}
	return best
}
