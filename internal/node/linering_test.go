// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package node

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRingKeepsLastLines(t *testing.T) {
	r := NewLineRing(3)
	for i := 1; i <= 5; i++ {
		_, _ = fmt.Fprintf(r, "line %d\n", i)
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, r.LastN(10))
	assert.Equal(t, []string{"line 5"}, r.LastN(1))
}

func TestLineRingJoinsPartialWrites(t *testing.T) {
	r := NewLineRing(4)
	_, _ = r.Write([]byte("Invalid da"))
	_, _ = r.Write([]byte("ta found\r\nsecond"))
	assert.Equal(t, []string{"Invalid data found", "second"}, r.LastN(5))
}

func TestLineRingSkipsBlankLines(t *testing.T) {
	r := NewLineRing(4)
	_, _ = r.Write([]byte("\n\nonly\n\n"))
	assert.Equal(t, []string{"only"}, r.LastN(5))
}
