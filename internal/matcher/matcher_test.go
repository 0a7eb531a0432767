package matcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_ExactNormalized(t *testing.T) {
	assert.Equal(t, 1.0, Score("김철수", "김철수"))
	assert.Equal(t, 1.0, Score(" 김 철 수 ", "김철수"))
	assert.Equal(t, 1.0, Score("Kim Chulsoo", "kimchulsoo"))
}

func TestScore_Containment(t *testing.T) {
	// "김철" inside "김철수": 2/3.
	assert.InDelta(t, 2.0/3.0, Score("김철", "김철수"), 1e-9)
	assert.InDelta(t, 2.0/3.0, Score("김철수", "김철"), 1e-9)
}

func TestScore_PositionalWildcard(t *testing.T) {
	// Every position matches once the wildcard is treated as automatic.
	assert.Equal(t, 1.0, Score("김○수", "김철수"))
	assert.Equal(t, 1.0, Score("김*수", "김철수"))

	// Two of three positions match.
	assert.InDelta(t, 2.0/3.0, Score("김영수", "김철수"), 1e-9)
}

func TestScore_LeadingRuneWithWildcard(t *testing.T) {
	// Different lengths, so the positional rule cannot apply, but the
	// surname agrees and a wildcard is present.
	assert.Equal(t, 0.8, Score("김○", "김철수"))
}

func TestScore_HonorificSuffix(t *testing.T) {
	// Same base after stripping different honorifics.
	assert.Equal(t, 0.9, Score("김말자할머니", "김말자(할머니)"))
	assert.Equal(t, 0.9, Score("김말자엄마", "김말자할머니"))

	// Different bases: the honorific rule scores 0.8*levSim(bases), but the
	// positional rule on the full equal-length strings wins with 5/6.
	s := Score("김말순할머니", "김말자할머니")
	assert.InDelta(t, 5.0/6.0, s, 1e-9)
}

func TestScore_LevenshteinFallback(t *testing.T) {
	// One substitution across three runes.
	assert.InDelta(t, 2.0/3.0, Score("김영희", "박영희"), 1e-9)
	assert.Equal(t, 0.0, Score("", "김철수"))
}

func TestMatch_Unique(t *testing.T) {
	res := Match("김철수", []Candidate{{ProfileID: "p1", Name: "김철수"}})

	require.Equal(t, ResultUnique, res.Kind)
	require.NotNil(t, res.Match)
	assert.Equal(t, "p1", res.Match.ProfileID)
	assert.Equal(t, 1.0, res.Match.Score)
}

func TestMatch_UniqueViaWildcard(t *testing.T) {
	res := Match("김○수", []Candidate{
		{ProfileID: "p1", Name: "김철수"},
		{ProfileID: "p2", Name: "박영희"},
	})

	require.Equal(t, ResultUnique, res.Kind)
	assert.Equal(t, "p1", res.Match.ProfileID)
}

func TestMatch_None(t *testing.T) {
	res := Match("김영희", []Candidate{
		{ProfileID: "p1", Name: "박영희"},
		{ProfileID: "p2", Name: "이영희"},
	})

	assert.Equal(t, ResultNone, res.Kind)
	assert.Nil(t, res.Match)
}

func TestMatch_AmbiguousHonorific(t *testing.T) {
	// Both stored names strip to the same base as the input, so both clear
	// the threshold and the result is ambiguous.
	res := Match("김말자할머니", []Candidate{
		{ProfileID: "p1", Name: "김말자(할머니)"},
		{ProfileID: "p2", Name: "김말자어머니"},
		{ProfileID: "p3", Name: "김영희"},
	})

	require.Equal(t, ResultAmbiguous, res.Kind)
	require.Len(t, res.Ranked, 2)
	assert.Equal(t, 0.9, res.Ranked[0].Score)
	assert.Equal(t, 0.9, res.Ranked[1].Score)
}

func TestMatch_RankedSortedAndCapped(t *testing.T) {
	candidates := []Candidate{{ProfileID: "exact", Name: "김철수"}}
	for i := 0; i < 6; i++ {
		candidates = append(candidates, Candidate{
			ProfileID: fmt.Sprintf("wild%d", i),
			Name:      fmt.Sprintf("김○수%d", i),
		})
	}

	res := Match("김철수", candidates)

	require.Equal(t, ResultAmbiguous, res.Kind)
	require.Len(t, res.Ranked, 5)
	assert.Equal(t, "exact", res.Ranked[0].ProfileID)
	assert.Equal(t, 1.0, res.Ranked[0].Score)
	for _, s := range res.Ranked[1:] {
		assert.LessOrEqual(t, s.Score, res.Ranked[0].Score)
	}
}
