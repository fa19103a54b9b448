package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEntitiesFindsLocalIDs(t *testing.T) {
	entities := extractEntities("Supersedes D042 and blocks T1234 until review")
	assert.True(t, entities["D042"])
	assert.True(t, entities["T1234"])
	assert.False(t, entities["D42"]) // two digits, not a local ID
}

func TestExtractEntitiesFindsKeywords(t *testing.T) {
	entities := extractEntities("Move the cache in front of the storage layer")
	assert.True(t, entities["cache"])
	assert.True(t, entities["storage"])
	assert.False(t, entities["layer"])
}

func TestExtractEntitiesCaseInsensitiveKeywords(t *testing.T) {
	entities := extractEntities("The SCHEMA migration runs first")
	assert.True(t, entities["schema"])
	assert.True(t, entities["migration"])
}

func TestSharedEntities(t *testing.T) {
	a := extractEntities("D042 needs a new index on the registry")
	b := extractEntities("Rebuild the index after D042 lands")

	shared := sharedEntities(a, b)
	assert.ElementsMatch(t, []string{"D042", "index"}, shared)

	none := sharedEntities(extractEntities("plain words"), extractEntities("other words"))
	assert.Empty(t, none)
}

func TestTextHashStableAndShort(t *testing.T) {
	h1 := TextHash("use mongo for the registry")
	h2 := TextHash("use mongo for the registry")
	h3 := TextHash("use postgres for the registry")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 16)
}

func TestChecksumIsFullDigest(t *testing.T) {
	sum := Checksum("archived text")
	assert.Len(t, sum, 64)
	assert.NotEqual(t, sum, Checksum("archived text "))
}
