package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id, artist, title, album string) CandidateRecord {
	return CandidateRecord{ID: id, Artists: []string{artist}, Title: title, Album: album}
}

func TestRank_SortsDescending(t *testing.T) {
	local := LocalRecord{Artist: "Queen", Title: "Bohemian Rhapsody", Album: "A Night at the Opera"}
	cands := []CandidateRecord{
		candidate("poor", "Queen", "Radio Ga Ga", "The Works"),
		candidate("exact", "Queen", "Bohemian Rhapsody", "A Night at the Opera"),
		candidate("comp", "Queen", "Bohemian Rhapsody", "Greatest Hits"),
	}

	ranked := Rank(local, cands)
	require.Len(t, ranked, 3)
	assert.Equal(t, "exact", ranked[0].Candidate.ID)
	assert.Equal(t, 100, ranked[0].Similarity)
	assert.Equal(t, "comp", ranked[1].Candidate.ID)
	assert.Equal(t, 98, ranked[1].Similarity)
	assert.Equal(t, "poor", ranked[2].Candidate.ID)
}

func TestRank_StableForEqualScores(t *testing.T) {
	local := LocalRecord{Artist: "Queen", Title: "Innuendo", Album: "Innuendo"}
	cands := []CandidateRecord{
		candidate("first", "Queen", "Innuendo", "Innuendo"),
		candidate("second", "Queen", "Innuendo", "Innuendo"),
		candidate("third", "Queen", "Innuendo", "Innuendo"),
	}

	ranked := Rank(local, cands)
	ids := []string{ranked[0].Candidate.ID, ranked[1].Candidate.ID, ranked[2].Candidate.ID}
	assert.Equal(t, []string{"first", "second", "third"}, ids)
}

func TestRank_Empty(t *testing.T) {
	ranked := Rank(LocalRecord{Title: "x"}, nil)
	assert.Empty(t, ranked)

	_, ok := Best(ranked)
	assert.False(t, ok)
}

func TestRank_UsesPrimaryArtist(t *testing.T) {
	local := LocalRecord{Artist: "David Bowie", Title: "Under Pressure", Album: "Hot Space"}
	cand := CandidateRecord{ID: "1", Artists: []string{"Queen", "David Bowie"}, Title: "Under Pressure", Album: "Hot Space"}

	ranked := Rank(local, []CandidateRecord{cand})
	// Only the first artist counts, so this scores as a cover-like hit.
	assert.Less(t, ranked[0].Similarity, 98)
	assert.Equal(t, []string{"Queen", "David Bowie"}, ranked[0].Candidate.Artists)
}

func TestBestSimilarity(t *testing.T) {
	local := LocalRecord{Artist: "Queen", Title: "Bohemian Rhapsody", Album: "A Night at the Opera"}

	assert.Equal(t, 0, BestSimilarity(local, nil))
	assert.Equal(t, 0, BestSimilarity(local, []CandidateRecord{}))

	cands := []CandidateRecord{
		candidate("a", "Queen", "Radio Ga Ga", "The Works"),
		candidate("b", "Queen", "Bohemian Rhapsody", "Greatest Hits"),
	}
	assert.Equal(t, 98, BestSimilarity(local, cands))

	ranked := Rank(local, cands)
	best, ok := Best(ranked)
	require.True(t, ok)
	assert.Equal(t, BestSimilarity(local, cands), best.Similarity)
}
