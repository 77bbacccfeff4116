package fuzzy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "beton arme c25 30", fold("  Béton   ARMÉ, C25/30 "))
	assert.Equal(t, "", fold(" -- "))
}

func TestRankIdenticalTextScores100(t *testing.T) {
	out, err := NewMatcher().Rank(context.Background(), "Excavation in rock", []domain.Candidate{
		{ID: "1", Text: "excavation in ROCK"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 100.0, out[0].Score)
}

func TestRankTokenSubsetScoresHigh(t *testing.T) {
	out, err := NewMatcher().Rank(context.Background(), "excavation rock", []domain.Candidate{
		{ID: "a", Text: "Concrete works"},
		{ID: "b", Text: "Excavation in rock"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, 100.0, out[0].Score)
	assert.Less(t, out[1].Score, 50.0)
}

func TestRankAccentsAreIgnored(t *testing.T) {
	out, err := NewMatcher().Rank(context.Background(), "beton arme", []domain.Candidate{
		{ID: "1", Text: "Béton armé"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 100.0, out[0].Score)
}

func TestRankFiltersBelowMinScore(t *testing.T) {
	out, err := NewMatcher().Rank(context.Background(), "steel reinforcement", []domain.Candidate{
		{ID: "1", Text: "Steel reinforcement bars"},
		{ID: "2", Text: "Timber doors"},
	}, 80)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ID)
}

func TestRankKeepsCandidateOrderOnTies(t *testing.T) {
	out, err := NewMatcher().Rank(context.Background(), "paint", []domain.Candidate{
		{ID: "first", Text: "Paint"},
		{ID: "second", Text: "paint"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].ID)
	assert.Equal(t, "second", out[1].ID)
}

func TestRankEmptyQueryReturnsNothing(t *testing.T) {
	out, err := NewMatcher().Rank(context.Background(), "  ", []domain.Candidate{{ID: "1", Text: "x"}}, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRankHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMatcher().Rank(ctx, "paint", []domain.Candidate{{ID: "1", Text: "Paint"}}, 0)
	require.ErrorIs(t, err, context.Canceled)
}
