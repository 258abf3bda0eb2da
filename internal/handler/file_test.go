package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("bytes=0-499", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(499), end)
}

func TestParseRangeOpenEnd(t *testing.T) {
	start, end, err := parseRange("bytes=500-", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), start)
	assert.Equal(t, int64(999), end)
}

func TestParseRangeClampsEndToSize(t *testing.T) {
	start, end, err := parseRange("bytes=900-5000", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(900), start)
	assert.Equal(t, int64(999), end)
}

func TestParseRangeRejectsBadSpecs(t *testing.T) {
	cases := []string{
		"0-499",             // missing unit
		"bytes=0-100,200-",  // multiple ranges
		"bytes=abc-def",     // not numbers
		"bytes=-500",        // suffix ranges unsupported
		"bytes=1000-1100",   // start past the end
		"bytes=500-400",     // inverted
	}
	for _, c := range cases {
		_, _, err := parseRange(c, 1000)
		assert.Error(t, err, c)
	}
}

func TestIsBot(t *testing.T) {
	assert.True(t, isBot("Discordbot/2.0 (+https://discordapp.com)"))
	assert.True(t, isBot("Slackbot-LinkExpanding 1.0"))
	assert.True(t, isBot("WhatsApp/2.19.81"))
	assert.True(t, isBot("TelegramBot (like TwitterBot)"))
	assert.True(t, isBot("facebookexternalhit/1.1"))
	assert.False(t, isBot("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"))
	assert.False(t, isBot(""))
}
