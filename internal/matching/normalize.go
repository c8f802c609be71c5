package matching

import (
	"math"
	"strings"
	"unicode"
)

// normalize lower-cases s and keeps only letters and digits.
func normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// words splits s on whitespace before normalizing, so "Hello, Goodbye!"
// yields {"hello", "goodbye"}. Words that normalize to nothing are dropped.
func words(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(s) {
		if w := normalize(f); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// fieldSim is the per-field base similarity in [0, 100].
func fieldSim(a, b string) int {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return SimExact
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return SimContained
	}

	wa, wb := words(a), words(b)
	larger := max(len(wa), len(wb))
	if larger == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	return round(float64(shared) * 100 / float64(larger))
}

func round(f float64) int {
	return int(math.Round(f))
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
