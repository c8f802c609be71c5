package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/trackmatch/internal/api"
	"github.com/kalambet/trackmatch/internal/config"
	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/reconcile"
	"github.com/kalambet/trackmatch/internal/storage"
)

const importChunkSize = 500

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Add tracks to the library",
	Long: `Add tracks to the library.

Examples:
  trackmatch import --artist Queen --title "Bohemian Rhapsody" --album "A Night at the Opera"
  trackmatch import --file tracks.jsonl --match`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		artist, _ := cmd.Flags().GetString("artist")
		title, _ := cmd.Flags().GetString("title")
		album, _ := cmd.Flags().GetString("album")
		albumArtist, _ := cmd.Flags().GetString("album-artist")
		match, _ := cmd.Flags().GetBool("match")

		var inputs []api.TrackInput
		switch {
		case file != "":
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("opening %s: %w", file, err)
			}
			defer f.Close()
			inputs, err = readTrackLines(f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}
		case artist != "" || title != "" || album != "":
			inputs = []api.TrackInput{{Artist: artist, Title: title, Album: album, AlbumArtist: albumArtist}}
		default:
			return fmt.Errorf("one of --file or --artist/--title/--album is required")
		}
		if len(inputs) == 0 {
			return fmt.Errorf("no tracks to import")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return importInChunks(cmd.Context(), client, inputs, match)
	},
}

func init() {
	importCmd.Flags().String("file", "", "JSON lines file with one track object per line")
	importCmd.Flags().String("artist", "", "track artist")
	importCmd.Flags().String("title", "", "track title")
	importCmd.Flags().String("album", "", "album name")
	importCmd.Flags().String("album-artist", "", "album artist")
	importCmd.Flags().Bool("match", false, "queue a match job for every imported track")
}

// readTrackLines parses one JSON track object per line. Blank lines are skipped.
func readTrackLines(r io.Reader) ([]api.TrackInput, error) {
	var out []api.TrackInput
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var in api.TrackInput
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, in)
	}
	return out, sc.Err()
}

func importInChunks(ctx context.Context, client *apiClient, inputs []api.TrackInput, match bool) error {
	path := "/tracks"
	if match {
		path += "?match=true"
	}

	imported, queued := 0, 0
	for start := 0; start < len(inputs); start += importChunkSize {
		end := min(start+importChunkSize, len(inputs))
		resp, err := client.post(ctx, path, inputs[start:end])
		if err != nil {
			return err
		}
		var result api.ImportResponse
		if err := decodeJSON(resp, &result); err != nil {
			return fmt.Errorf("importing tracks %d-%d: %w", start+1, end, err)
		}
		imported += len(result.IDs)
		queued += len(result.Jobs)
		if len(inputs) == 1 {
			fmt.Fprintln(stdout, result.IDs[0])
		}
	}

	if match {
		printSuccess("Imported %d tracks, %d queued for matching", imported, queued)
	} else {
		printSuccess("Imported %d tracks", imported)
	}
	return nil
}

// --- tracks ---

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "Inspect library tracks",
}

var tracksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		unresolved, _ := cmd.Flags().GetBool("unresolved")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		asJSON, _ := cmd.Flags().GetBool("json")

		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
		if status != "" {
			q.Set("status", status)
		}
		if unresolved {
			q.Set("unresolved", "true")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/tracks?"+q.Encode())
		if err != nil {
			return err
		}
		var tracks []storage.Track
		if err := decodeJSON(resp, &tracks); err != nil {
			return err
		}

		if asJSON {
			return printJSON(tracks)
		}
		if len(tracks) == 0 {
			fmt.Fprintln(stdout, "No tracks found.")
			return nil
		}
		for _, t := range tracks {
			printTrackLine(t)
		}
		return nil
	},
}

var tracksShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/tracks/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var t storage.Track
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}
		return printJSON(t)
	},
}

func init() {
	tracksListCmd.Flags().String("status", "", "filter by match status (unmatched, suggested, matched, no_match, error)")
	tracksListCmd.Flags().Bool("unresolved", false, "only tracks without a catalog id")
	tracksListCmd.Flags().Int("limit", 50, "maximum number of tracks to list")
	tracksListCmd.Flags().Int("offset", 0, "number of tracks to skip")
	tracksListCmd.Flags().Bool("json", false, "print JSON")
	tracksCmd.AddCommand(tracksListCmd)
	tracksCmd.AddCommand(tracksShowCmd)
}

// --- match / search ---

var matchCmd = &cobra.Command{
	Use:   "match <id>",
	Short: "Match one track against the catalog now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/tracks/"+url.PathEscape(args[0])+"/match", nil)
		if err != nil {
			return err
		}
		var out reconcile.Outcome
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printOutcome(out)
		return nil
	},
}

func printOutcome(out reconcile.Outcome) {
	status := colorize(statusColor(out.Status), out.Status)
	fmt.Fprintf(stdout, "%s  %s  similarity %d  (%s search, %d round trips)\n",
		shortID(out.TrackID), status, out.Similarity, out.State, out.RoundTrips)
	if out.Best != nil {
		c := out.Best.Candidate
		fmt.Fprintf(stdout, "  best: %s - %s (%s) [%s]\n", strings.Join(c.Artists, ", "), c.Title, orDash(c.Album), c.ID)
	}
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the catalog without touching the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		artist, _ := cmd.Flags().GetString("artist")
		title, _ := cmd.Flags().GetString("title")
		album, _ := cmd.Flags().GetString("album")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("--title is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/match", matching.LocalRecord{Artist: artist, Title: title, Album: album})
		if err != nil {
			return err
		}
		var res api.SearchResponse
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		if limit > 0 && len(res.Ranked) > limit {
			res.Ranked = res.Ranked[:limit]
		}
		if asJSON {
			return printJSON(res)
		}
		if len(res.Ranked) == 0 {
			fmt.Fprintln(stdout, "No candidates found.")
			return nil
		}
		fmt.Fprintf(stdout, "%s search, %d round trips\n", res.State, res.RoundTrips)
		for _, sc := range res.Ranked {
			c := sc.Candidate
			fmt.Fprintf(stdout, "%3d  %s - %s (%s)  %s\n",
				sc.Similarity, strings.Join(c.Artists, ", "), c.Title, orDash(c.Album), colorize(colorCyan, c.ID))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("artist", "", "artist name")
	searchCmd.Flags().String("title", "", "track title")
	searchCmd.Flags().String("album", "", "album name")
	searchCmd.Flags().Int("limit", 10, "maximum number of candidates to print")
	searchCmd.Flags().Bool("json", false, "print JSON")
}

// --- batch ---

var batchCmd = &cobra.Command{
	Use:   "batch [ids...]",
	Short: "Queue a background match for the given tracks, or all unresolved tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/batch", api.BatchRequest{TrackIDs: args})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		jobID := result["job_id"]
		printSuccess("Queued batch job %s", jobID)

		if !wait {
			return nil
		}
		status, err := waitForJob(cmd.Context(), client, jobID, time.Second)
		if err != nil {
			return err
		}
		if status != storage.JobCompleted {
			return fmt.Errorf("batch job %s ended as %s", jobID, status)
		}
		printSuccess("Batch job %s completed", jobID)
		return nil
	},
}

func init() {
	batchCmd.Flags().Bool("wait", false, "wait for the batch job to finish")
}

// waitForJob polls a job until it completes or fails.
func waitForJob(ctx context.Context, client *apiClient, jobID string, every time.Duration) (string, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		resp, err := client.get(ctx, "/jobs/"+url.PathEscape(jobID))
		if err != nil {
			return "", err
		}
		var job struct {
			Status    string `json:"status"`
			LastError string `json:"last_error"`
		}
		if err := decodeJSON(resp, &job); err != nil {
			return "", err
		}
		switch job.Status {
		case storage.JobCompleted:
			return job.Status, nil
		case storage.JobFailed:
			return job.Status, fmt.Errorf("batch job %s failed: %s", jobID, job.LastError)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// --- confirm / reject / suggest ---

var confirmCmd = &cobra.Command{
	Use:   "confirm <id> [catalog-id]",
	Short: "Accept a catalog id for a track (defaults to the stored suggestion)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := api.ConfirmRequest{}
		if len(args) == 2 {
			req.CatalogID = args[1]
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/tracks/"+url.PathEscape(args[0])+"/confirm", req)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			if hasErrorType(err, "no_suggestion") {
				return fmt.Errorf("%s has no stored suggestion; pass a catalog id: trackmatch confirm %s <catalog-id>", args[0], args[0])
			}
			return err
		}
		printSuccess("Confirmed match for %s", args[0])
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Discard the suggested match for a track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/tracks/"+url.PathEscape(args[0])+"/reject", nil)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Rejected suggestion for %s", args[0])
		return nil
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <id>",
	Short: "Ask the local model for corrected metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apply, _ := cmd.Flags().GetBool("apply")

		path := "/tracks/" + url.PathEscape(args[0]) + "/suggest"
		if apply {
			path += "?apply=true"
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), path, nil)
		if err != nil {
			return err
		}
		var res api.SuggestResponse
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if !res.Available {
			printWarning("No suggestion available (is cleanup.enabled set?)")
			return nil
		}

		s := res.Suggestion
		fmt.Fprintf(stdout, "%s - %s (%s)  confidence %.2f\n", orDash(s.Artist), s.Title, orDash(s.Album), s.Confidence)
		if s.Reasoning != "" {
			fmt.Fprintf(stdout, "  %s\n", s.Reasoning)
		}
		for _, q := range s.AlternativeQueries {
			fmt.Fprintf(stdout, "  alt: %s\n", q)
		}
		if res.Outcome != nil {
			printOutcome(*res.Outcome)
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().Bool("apply", false, "re-run matching with the suggested tags")
}

// --- cache ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the search result cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached search results",
	RunE: func(cmd *cobra.Command, args []string) error {
		expiredOnly, _ := cmd.Flags().GetBool("expired-only")
		path := "/cache"
		if expiredOnly {
			path += "?expired_only=true"
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), path)
		if err != nil {
			return err
		}
		var result map[string]int64
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted %d cache entries", result["deleted"])
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().Bool("expired-only", false, "only delete entries older than cache.ttl")
	cacheCmd.AddCommand(cachePurgeCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(stdout, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		if key == "catalog.token" {
			printSuccess("Stored catalog token")
		} else {
			printSuccess("Set %s = %s", key, value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
