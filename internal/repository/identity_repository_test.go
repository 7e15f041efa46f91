package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSearchQueryEscapesRegexMetacharacters(t *testing.T) {
	clauses := searchQuery("budi.(x+)*")

	require.Len(t, clauses, 4)
	name := clauses[0].(bson.M)["name"].(bson.M)
	assert.Equal(t, `budi\.\(x\+\)\*`, name["$regex"], "free text must be matched literally")
	assert.Equal(t, "i", name["$options"])

	// Identity numbers are compared exactly, untouched.
	assert.Equal(t, bson.M{"nisn": "budi.(x+)*"}, clauses[2])
	assert.Equal(t, bson.M{"nip": "budi.(x+)*"}, clauses[3])
}
