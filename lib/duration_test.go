package lib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCookieDuration(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Session", FormatCookieDuration(nil, now))

	past := now.Add(-time.Hour)
	assert.Equal(t, "Expired", FormatCookieDuration(&past, now))

	in30m := now.Add(30 * time.Minute)
	assert.Equal(t, "30 minutes", FormatCookieDuration(&in30m, now))

	in23h := now.Add(23 * time.Hour)
	assert.Equal(t, "1380 minutes", FormatCookieDuration(&in23h, now))

	in36h := now.Add(36 * time.Hour)
	assert.Equal(t, "1.5 days", FormatCookieDuration(&in36h, now))

	in10d := now.Add(240 * time.Hour)
	assert.Equal(t, "10.0 days", FormatCookieDuration(&in10d, now))
}

func TestHashString(t *testing.T) {
	// SHA-256 of "abc"
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashString("abc"))
	assert.Equal(t, HashBytes([]byte("abc")), HashString("abc"))
}
