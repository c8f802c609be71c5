package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryString(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"all tags", Query{Artist: "Queen", Album: "Jazz", Track: "Mustapha"}, "artist:Queen album:Jazz track:Mustapha"},
		{"blank fields omitted", Query{Artist: "Queen", Album: "  ", Track: "Mustapha"}, "artist:Queen track:Mustapha"},
		{"text only", Query{Text: "Bohemian Rhapsody"}, "Bohemian Rhapsody"},
		{"tags and text", Query{Artist: "Queen", Text: "live"}, "artist:Queen live"},
		{"values trimmed", Query{Track: " Something "}, "track:Something"},
		{"empty", Query{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.String())
		})
	}
}

func TestQueryParams(t *testing.T) {
	q := Query{Artist: "Queen", Track: "Innuendo", Types: []string{"track", "album"}, Limit: 5}
	p := q.Params()

	assert.Equal(t, "Queen", p["artist"])
	assert.Equal(t, "Innuendo", p["track"])
	assert.Equal(t, "track,album", p["type"])
	assert.Equal(t, "5", p["limit"])
	assert.Equal(t, "", p["market"])

	_, hasLimit := Query{Track: "x"}.Params()["limit"]
	assert.False(t, hasLimit)
	assert.Equal(t, "track", Query{}.TypeList())
}
