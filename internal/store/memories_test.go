package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedderDeterministic(t *testing.T) {
	e := NewEmbedder(64)

	a := e.Embed("remember my sister's birthday")
	b := e.Embed("remember my sister's birthday")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestEmbedderUnitLength(t *testing.T) {
	e := NewEmbedder(64)

	v := e.Embed("the quick brown fox")
	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-5)
}

func TestEmbedderEmptyText(t *testing.T) {
	e := NewEmbedder(16)

	v := e.Embed("   ")
	require.Len(t, v, 16)
	for _, val := range v {
		assert.Equal(t, float32(0), val)
	}
}

func TestSerializeEmbeddingLittleEndian(t *testing.T) {
	out := serializeEmbedding([]float32{1.0})
	// 1.0 is 0x3f800000
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, out)
}

func TestParseSearchResultsNestedForm(t *testing.T) {
	raw := []interface{}{
		int64(1),
		[]interface{}{
			"memory:item:abc",
			[]interface{}{
				"content", "sister's birthday is in June",
				"user_id", "u1",
				"__embedding_score", "0.12",
				"created_at", "1700000000",
			},
		},
	}

	memories, err := parseSearchResults(raw)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "memory:item:abc", memories[0].ID)
	assert.Equal(t, "u1", memories[0].UserID)
	assert.InDelta(t, 0.88, memories[0].Score, 1e-9)
}

func TestParseSearchResultsFlatForm(t *testing.T) {
	raw := []interface{}{
		int64(1),
		"memory:item:xyz",
		[]interface{}{"content", "gym on tuesdays"},
	}

	memories, err := parseSearchResults(raw)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "gym on tuesdays", memories[0].Content)
}

func TestParseSearchResultsEmpty(t *testing.T) {
	memories, err := parseSearchResults([]interface{}{int64(0)})
	require.NoError(t, err)
	assert.Empty(t, memories)

	memories, err = parseSearchResults("garbage")
	require.NoError(t, err)
	assert.Empty(t, memories)
}
