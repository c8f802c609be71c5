package catalog

import (
	"strings"

	"github.com/kalambet/trackmatch/internal/matching"
)

// SearchResponse mirrors the JSON returned by GET /search.
type SearchResponse struct {
	Tracks TrackPage `json:"tracks"`
}

// TrackPage is one page of track hits.
type TrackPage struct {
	Items []Track `json:"items"`
	Total int     `json:"total"`
	Limit int     `json:"limit"`
}

// Track is a raw catalog track hit.
type Track struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	URI        string         `json:"uri"`
	DurationMs int            `json:"duration_ms"`
	Popularity int            `json:"popularity"`
	Artists    []ArtistRef    `json:"artists"`
	Album      AlbumReference `json:"album"`
}

// ArtistRef is an artist as embedded in a track or album.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlbumReference is the album a track appears on.
type AlbumReference struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Artists []ArtistRef `json:"artists"`
}

// ToCandidates maps raw hits into candidate records. Hits without an id or
// without any named artist cannot be scored and are dropped.
func ToCandidates(items []Track) []matching.CandidateRecord {
	out := make([]matching.CandidateRecord, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			continue
		}
		artists := artistNames(it.Artists)
		if len(artists) == 0 {
			continue
		}
		out = append(out, matching.CandidateRecord{
			ID:           it.ID,
			Title:        it.Name,
			Artists:      artists,
			Album:        it.Album.Name,
			URI:          it.URI,
			AlbumArtists: artistNames(it.Album.Artists),
			DurationMs:   it.DurationMs,
			Popularity:   it.Popularity,
		})
	}
	return out
}

func artistNames(refs []ArtistRef) []string {
	var names []string
	for _, a := range refs {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}
