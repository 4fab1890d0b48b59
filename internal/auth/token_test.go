package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rawTokenPattern = regexp.MustCompile(`^atl_[0-9a-f]{64}$`)

func TestGenerateFormat(t *testing.T) {
	raw, err := Generate()
	require.NoError(t, err)
	assert.Regexp(t, rawTokenPattern, raw)
	assert.True(t, WellFormed(raw))
}

func TestGenerateUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		raw, err := Generate()
		require.NoError(t, err)
		fp := Fingerprint(raw)
		_, dup := seen[fp]
		require.False(t, dup, "fingerprint collision after %d tokens", i)
		seen[fp] = struct{}{}
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	raw, err := Generate()
	require.NoError(t, err)

	// The stored digest must equal the one recomputed from the same token.
	assert.Equal(t, Fingerprint(raw), Fingerprint(raw))
	assert.Len(t, Fingerprint(raw), 64)
}

func TestHashAndVerifySecret(t *testing.T) {
	raw, err := Generate()
	require.NoError(t, err)

	hash, err := HashSecret(raw)
	require.NoError(t, err)
	assert.NotContains(t, hash, raw)
	assert.True(t, VerifySecret(hash, raw))

	other, err := Generate()
	require.NoError(t, err)
	assert.False(t, VerifySecret(hash, other))
}

func TestWellFormed(t *testing.T) {
	valid, err := Generate()
	require.NoError(t, err)

	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"generated", valid, true},
		{"empty", "", false},
		{"wrong prefix", "sk_" + valid[4:], false},
		{"too short", valid[:len(valid)-1], false},
		{"too long", valid + "a", false},
		{"uppercase hex", "atl_" + "A" + valid[5:], false},
		{"non-hex", "atl_" + "z" + valid[5:], false},
		{"prefix only", "atl_", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WellFormed(tc.raw))
		})
	}
}

func TestVisiblePrefix(t *testing.T) {
	raw, err := Generate()
	require.NoError(t, err)

	vp := VisiblePrefix(raw)
	assert.Len(t, vp, VisibleLen)
	assert.Equal(t, raw[:VisibleLen], vp)

	assert.Equal(t, "atl_", VisiblePrefix("atl_"))
}
