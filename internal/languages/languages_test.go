package languages

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableShape(t *testing.T) {
	t.Parallel()

	codeRe := regexp.MustCompile(`^[a-z]{2}$`)
	seen := make(map[string]bool, len(All))
	for _, l := range All {
		require.Regexp(t, codeRe, l.Code)
		require.NotEmpty(t, l.Name, l.Code)
		require.False(t, seen[l.Code], "duplicate code %s", l.Code)
		seen[l.Code] = true
	}
	assert.Len(t, All, 183)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	l, ok := Lookup("de")
	require.True(t, ok)
	assert.Equal(t, "German", l.Name)

	_, ok = Lookup("DE")
	assert.False(t, ok, "lookup must be case-sensitive")
	assert.False(t, Valid("xx"))
	assert.True(t, Valid("zu"))
	assert.Equal(t, "xx", Name("xx"))
}

func TestNativeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Deutsch", NativeName("de"))
	assert.Equal(t, "français", NativeName("fr"))
	assert.Equal(t, "qq", NativeName("qq"))
}
