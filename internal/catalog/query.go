package catalog

import (
	"strconv"
	"strings"
)

// Query describes one catalog search. Tagged fields are rendered as
// "artist:<v> album:<v> track:<v>"; Text is appended untagged.
type Query struct {
	Artist string
	Album  string
	Track  string
	Text   string

	Types  []string
	Market string
	Limit  int
}

// String builds the q parameter, omitting blank fields.
func (q Query) String() string {
	var parts []string
	for _, f := range []struct{ tag, val string }{
		{"artist", q.Artist},
		{"album", q.Album},
		{"track", q.Track},
	} {
		if v := strings.TrimSpace(f.val); v != "" {
			parts = append(parts, f.tag+":"+v)
		}
	}
	if v := strings.TrimSpace(q.Text); v != "" {
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}

// TypeList returns the comma-joined search types, defaulting to "track".
func (q Query) TypeList() string {
	if len(q.Types) == 0 {
		return "track"
	}
	return strings.Join(q.Types, ",")
}

// Params returns every request parameter that influences the result set,
// keyed by name. The result cache derives its key from this map.
func (q Query) Params() map[string]string {
	p := map[string]string{
		"artist": q.Artist,
		"album":  q.Album,
		"track":  q.Track,
		"text":   q.Text,
		"type":   q.TypeList(),
		"market": q.Market,
	}
	if q.Limit > 0 {
		p["limit"] = strconv.Itoa(q.Limit)
	}
	return p
}
