package cleanup

import (
	"fmt"
	"strings"

	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/ollama"
)

const systemPrompt = `You are a music metadata librarian. You receive the tags of one track from a personal library. The tags may contain typos, swapped fields, track numbers, file names, "feat." credits, or remaster notes. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Rules:
- Return the most likely canonical artist, title and album as a streaming catalog would list them.
- Keep a field empty if the input gives no evidence for it. Never invent an album.
- Remove track numbers, file extensions and bracketed remaster or version notes from the title.
- confidence is a number between 0 and 1 describing how sure you are of the corrected tags.
- alternative_queries lists up to three short free-text catalog searches worth trying if the corrected tags do not match.`

// BuildPrompt constructs the chat messages asking for corrected tags.
func BuildPrompt(local matching.LocalRecord) []ollama.Message {
	var sb strings.Builder
	sb.WriteString("Track tags:\n")
	fmt.Fprintf(&sb, "artist: %s\n", orUnknown(local.Artist))
	fmt.Fprintf(&sb, "title: %s\n", orUnknown(local.Title))
	fmt.Fprintf(&sb, "album: %s", orUnknown(local.Album))

	return []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "(unknown)"
	}
	return s
}

func suggestionSchema() *ollama.Schema {
	return &ollama.Schema{
		Type: "object",
		Properties: map[string]ollama.SchemaProperty{
			"artist":              {Type: "string", Description: "Canonical primary artist"},
			"title":               {Type: "string", Description: "Canonical track title"},
			"album":               {Type: "string", Description: "Canonical album, empty if unknown"},
			"confidence":          {Type: "number", Description: "0 to 1"},
			"reasoning":           {Type: "string", Description: "One sentence on what was changed"},
			"alternative_queries": {Type: "array", Description: "Free-text catalog searches", Items: &ollama.SchemaProperty{Type: "string"}},
		},
		Required: []string{"artist", "title", "album", "confidence"},
	}
}
