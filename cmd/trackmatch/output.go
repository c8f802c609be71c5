package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kalambet/trackmatch/internal/storage"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stdout is where command results go; tests redirect it.
var stdout io.Writer = os.Stdout

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusColor picks the color used for a match status.
func statusColor(status string) string {
	switch status {
	case storage.StatusMatched:
		return colorGreen
	case storage.StatusSuggested:
		return colorYellow
	case storage.StatusError, storage.StatusNoMatch:
		return colorRed
	default:
		return colorCyan
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printTrackLine(t storage.Track) {
	status := colorize(statusColor(t.MatchStatus), fmt.Sprintf("%-9s", t.MatchStatus))
	fmt.Fprintf(stdout, "%s  %s  %3d  %s - %s", colorize(colorCyan, shortID(t.ID)), status, t.MatchSimilarity, orDash(t.Artist), orDash(t.Title))
	if t.Album != "" {
		fmt.Fprintf(stdout, " (%s)", t.Album)
	}
	fmt.Fprintln(stdout)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
