package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, KeyPrefix))
	assert.NotEqual(t, a, b)
	assert.Greater(t, len(a), len(KeyPrefix)+32)
}

func TestHashKey(t *testing.T) {
	h := HashKey("docamy_abc")
	assert.Len(t, h, 64, "hex sha256")
	assert.Equal(t, h, HashKey("docamy_abc"))
	assert.NotEqual(t, h, HashKey("docamy_abd"))
}

func TestHasKeyPrefix(t *testing.T) {
	assert.True(t, HasKeyPrefix("docamy_whatever"))
	assert.False(t, HasKeyPrefix("eyJhbGciOiJIUzI1NiJ9.x.y"))
	assert.False(t, HasKeyPrefix(""))
}
