package matching

import "strings"

// LocalRecord is one library entry being matched. An empty field means the
// value is unknown.
type LocalRecord struct {
	Artist string `json:"artist,omitempty"`
	Title  string `json:"title,omitempty"`
	Album  string `json:"album,omitempty"`
}

// HasTitle reports whether the record carries a usable title.
func (r LocalRecord) HasTitle() bool {
	return strings.TrimSpace(r.Title) != ""
}

// HasArtist reports whether the record carries an artist.
func (r LocalRecord) HasArtist() bool {
	return strings.TrimSpace(r.Artist) != ""
}

// CandidateRecord is one catalog search hit.
type CandidateRecord struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Artists []string `json:"artists"`
	Album   string   `json:"album"`

	// Display-only fields; never consulted by the scorer.
	URI          string   `json:"uri,omitempty"`
	AlbumArtists []string `json:"album_artists,omitempty"`
	DurationMs   int      `json:"duration_ms,omitempty"`
	Popularity   int      `json:"popularity,omitempty"`
}

// PrimaryArtist returns the first listed artist, which is the one used for scoring.
func (c CandidateRecord) PrimaryArtist() string {
	if len(c.Artists) == 0 {
		return ""
	}
	return c.Artists[0]
}

// Metadata returns the candidate in the shape the scorer compares against.
func (c CandidateRecord) Metadata() Metadata {
	return Metadata{
		Artist: c.PrimaryArtist(),
		Title:  c.Title,
		Album:  c.Album,
	}
}

// Metadata is the artist/title/album triple on the candidate side of a comparison.
type Metadata struct {
	Artist string
	Title  string
	Album  string
}

// ScoredCandidate pairs a candidate with its similarity to a local record.
type ScoredCandidate struct {
	Candidate  CandidateRecord `json:"candidate"`
	Similarity int             `json:"similarity"`
}
