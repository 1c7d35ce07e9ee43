package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPairKey_Unordered(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	assert.Equal(t, "a|b", PairKey("b", "a"))
	assert.NotEqual(t, PairKey("a", "b"), PairKey("a", "c"))
}

func TestDuplicateRelationship_Involves(t *testing.T) {
	rel := DuplicateRelationship{CanonicalJobID: "a", DuplicateJobID: "b"}
	assert.True(t, rel.Involves("a"))
	assert.True(t, rel.Involves("b"))
	assert.False(t, rel.Involves("c"))
	assert.Equal(t, "a|b", rel.Key())
}

func TestNewManualRelationship(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	rel := NewManualRelationship("a", "b", "alice", at)

	assert.Equal(t, "a", rel.CanonicalJobID)
	assert.Equal(t, "b", rel.DuplicateJobID)
	assert.Equal(t, MethodManual, rel.DetectionMethod)
	assert.Equal(t, ConfidenceHigh, rel.ConfidenceLevel)
	assert.True(t, rel.ManuallyConfirmed)
	assert.Equal(t, "alice", rel.ConfirmedBy)
	assert.Equal(t, 100.0, rel.OverallSimilarity)
	if assert.NotNil(t, rel.ConfirmedAt) {
		assert.True(t, rel.ConfirmedAt.Equal(at))
		assert.Equal(t, time.UTC, rel.ConfirmedAt.Location())
	}
}
