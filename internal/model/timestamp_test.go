package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestampRoundTrip(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2025, 10, 14, 9, 30, 15, 123456789, loc)

	s := FormatTimestamp(in)
	assert.Equal(t, "2025-10-14T09:30:15.123456789+03:00", s)

	out, ok := ParseTimestamp(s)
	assert.True(t, ok)
	assert.True(t, in.Equal(out))
}

func TestTimestampZeroAndMalformed(t *testing.T) {
	assert.Empty(t, FormatTimestamp(time.Time{}))

	for _, bad := range []string{"", "yesterday", "2025-10-14 09:00"} {
		_, ok := ParseTimestamp(bad)
		assert.False(t, ok, bad)
	}
}
