// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)

	_, _ = fmt.Fprintf(r, "line1\n")
	_, _ = fmt.Fprintf(r, "line2\n")
	assert.Equal(t, []string{"line1", "line2"}, r.LastN(10))

	_, _ = fmt.Fprintf(r, "line3\n")
	_, _ = fmt.Fprintf(r, "line4\n")
	assert.Equal(t, []string{"line2", "line3", "line4"}, r.LastN(10))
	assert.Equal(t, []string{"line3", "line4"}, r.LastN(2))
}

func TestLineRing_PartialWrites(t *testing.T) {
	r := NewLineRing(5)
	_, _ = r.Write([]byte("Error while dec"))
	_, _ = r.Write([]byte("oding stream\r\nConversion failed!"))

	assert.Equal(t, []string{"Error while decoding stream", "Conversion failed!"}, r.LastN(10))
	assert.Equal(t, "Error while decoding stream | Conversion failed!", r.Tail(5))
}
