package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeStrings(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(DedupeStrings(nil))
	assert.Equal([]string{"a", "b", "c"}, DedupeStrings([]string{"a", "b", "a", "c", "b"}))
}

func TestExtractURL(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		s   string
		out []string
	}{
		{
			s:   "this is a description with example.com mentioned in the middle",
			out: []string{"example.com"},
		},
		{
			s:   "this is another example with https://en.wikipedia.org/index.html: and archive.org, and https://eff.org/... and discord.com.",
			out: []string{"https://en.wikipedia.org/index.html", "archive.org", "https://eff.org/", "discord.com"},
		},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, ExtractTextURLs(fix.s))
	}
}

func TestExtractInviteCodes(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		s   string
		out []string
	}{
		{
			s:   "no invites here, just discord.com",
			out: nil,
		},
		{
			s:   "join discord.gg/abc123 now",
			out: []string{"abc123"},
		},
		{
			s:   "https://discord.com/invite/Spam-Server and https://discordapp.com/invite/other plus discord.gg/Spam-Server again",
			out: []string{"Spam-Server", "other"},
		},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, ExtractInviteCodes(fix.s))
	}
}

func TestHashOfString(t *testing.T) {
	assert := assert.New(t)

	// hashing function should be consistent over time
	assert.Equal("4e6f69c0e3d10992", HashOfString("dummy-value"))
}
