package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Prefix(t *testing.T) {
	v, err := Generate(PrefixUser)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(v, "usr-"))
	assert.Len(t, v, len("usr-")+21)
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 500)
	for range 500 {
		v := MustGenerate(PrefixSession)
		_, dup := seen[v]
		require.False(t, dup, "duplicate id %s", v)
		seen[v] = struct{}{}
	}
}

func TestNewCategoryID(t *testing.T) {
	v := NewCategoryID()

	assert.True(t, IsCategoryID(v))
	assert.False(t, IsCategoryID("usr-abc"))
	assert.NotEqual(t, v, NewCategoryID())
}
