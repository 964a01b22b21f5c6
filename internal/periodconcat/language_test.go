// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package periodconcat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBestFit(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		lang       string
		want       string
	}{
		{name: "no candidates", lang: "en", want: "en"},
		{name: "other language only", candidates: []string{"fr"}, lang: "en", want: "fr"},
		{name: "first candidate without base match", candidates: []string{"de", "fr"}, lang: "en", want: "de"},
		{name: "same base", candidates: []string{"fr", "en"}, lang: "en-US", want: "en"},
		{name: "regional preferred", candidates: []string{"en", "en-GB"}, lang: "en", want: "en-GB"},
		{name: "regional replaces base", candidates: []string{"fr", "pt", "pt-BR"}, lang: "pt-PT", want: "pt-BR"},
		{name: "script subtag is regional", candidates: []string{"zh", "zh-Hans"}, lang: "zh-TW", want: "zh-Hans"},
		{name: "latin script variant", candidates: []string{"sr", "sr-Latn"}, lang: "sr-RS", want: "sr-Latn"},
		{name: "base compared case-insensitively", candidates: []string{"de", "EN"}, lang: "en-us", want: "EN"},
		{name: "legacy code is not canonicalized", candidates: []string{"fr", "he"}, lang: "iw", want: "fr"},
		{name: "undetermined", candidates: []string{"und"}, lang: "en", want: "und"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bestFit(tt.candidates, tt.lang))
		})
	}
}

func TestSplitLanguage(t *testing.T) {
	base, regional := splitLanguage("en-GB")
	assert.Equal(t, "en", base)
	assert.True(t, regional)

	base, regional = splitLanguage("en")
	assert.Equal(t, "en", base)
	assert.False(t, regional)

	base, regional = splitLanguage("zh-Hans")
	assert.Equal(t, "zh", base)
	assert.True(t, regional)

	base, regional = splitLanguage("EN-")
	assert.Equal(t, "en", base)
	assert.False(t, regional)

	base, regional = splitLanguage("not a tag-x")
	assert.Equal(t, "not a tag", base)
	assert.True(t, regional)
}
