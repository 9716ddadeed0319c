package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("sale")
	b := New("sale")

	assert.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "sale_"))

	_, err := uuid.Parse(strings.TrimPrefix(a, "sale_"))
	assert.NoError(t, err)
}

func TestNewWithoutPrefix(t *testing.T) {
	_, err := uuid.Parse(New(""))
	assert.NoError(t, err)
}
