// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package periodconcat

import (
	"regexp"
	"strings"
)

var attrPattern = regexp.MustCompile(`([-A-Z0-9]+)=("[^"]*"|[^",]*),`)

// Attr is one KEY=VALUE pair of an m3u8 tag. Value keeps its quotes.
type Attr struct {
	Key   string
	Value string
}

// Attributes is an ordered attribute list; the order is preserved on output.
type Attributes []Attr

// parseAttributes reads the attribute list following the first ':' of a tag line.
func parseAttributes(line string) Attributes {
	_, list, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok {
		return nil
	}
	var attrs Attributes
	for _, m := range attrPattern.FindAllStringSubmatch(list+",", -1) {
		attrs.Set(m[1], m[2])
	}
	return attrs
}

// Get returns the raw value of key.
func (a Attributes) Get(key string) (string, bool) {
	for _, at := range a {
		if at.Key == key {
			return at.Value, true
		}
	}
	return "", false
}

// Unquoted returns the value of key without surrounding quotes.
func (a Attributes) Unquoted(key string) (string, bool) {
	v, ok := a.Get(key)
	if !ok {
		return "", false
	}
	return unquote(v), true
}

// Set replaces the value of key in place or appends it.
func (a *Attributes) Set(key, value string) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attr{Key: key, Value: value})
}

// Delete removes key and returns its raw value.
func (a *Attributes) Delete(key string) (string, bool) {
	for i, at := range *a {
		if at.Key == key {
			*a = append((*a)[:i], (*a)[i+1:]...)
			return at.Value, true
		}
	}
	return "", false
}

func (a Attributes) Clone() Attributes {
	return append(Attributes(nil), a...)
}

func (a Attributes) String() string {
	parts := make([]string, 0, len(a))
	for _, at := range a {
		parts = append(parts, at.Key+"="+at.Value)
	}
	return strings.Join(parts, ",")
}

// common keeps only the attributes every list agrees on, in the order of the first.
func common(lists []Attributes) Attributes {
	if len(lists) == 0 {
		return nil
	}
	var out Attributes
	for _, at := range lists[0] {
		same := true
		for _, other := range lists[1:] {
			if v, ok := other.Get(at.Key); !ok || v != at.Value {
				same = false
				break
			}
		}
		if same {
			out = append(out, at)
		}
	}
	return out
}

func quote(s string) string { return `"` + s + `"` }

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
