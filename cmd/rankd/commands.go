package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/rankd/internal/api"
	"github.com/kalambet/rankd/internal/config"
	"github.com/kalambet/rankd/internal/engine"
	"github.com/kalambet/rankd/internal/extract"
	"github.com/kalambet/rankd/internal/store"
)

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index <path>...",
	Short: "Extract files and register them as items in a workspace",
	Long: `Extract files and register them as items in a workspace.

Directories are walked recursively; hidden files and unsupported
formats are skipped.

Examples:
  rankd index ./docs --workspace backend
  rankd index notes.md auth.pdf --workspace backend --concept "jwt validation"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")
		concept, _ := cmd.Flags().GetString("concept")

		var docs []extract.Document
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if info.IsDir() {
				dirDocs, skipped, err := extract.Dir(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("extracting %s: %w", path, err)
				}
				for _, s := range skipped {
					printWarning("Skipped %s", s)
				}
				docs = append(docs, dirDocs...)
				continue
			}
			doc, err := extract.File(path)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", path, err)
			}
			docs = append(docs, doc)
		}

		if len(docs) == 0 {
			printWarning("Nothing to index")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		batch := api.BatchIndexRequest{Items: make([]api.IndexItemRequest, len(docs))}
		for i, doc := range docs {
			batch.Items[i] = api.IndexItemRequest{
				Path:    doc.Path,
				Content: doc.Text,
				Concept: concept,
			}
		}

		resp, err := client.post(cmd.Context(), "/workspaces/"+url.PathEscape(workspace)+"/items/batch", batch)
		if err != nil {
			return err
		}
		var result struct {
			Items []store.Item `json:"items"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for _, item := range result.Items {
			printStep("Indexed %s (%s)", item.Path, item.ID[:8])
		}
		printSuccess("Indexed %d item(s) into workspace %s", len(result.Items), workspace)
		return nil
	},
}

func init() {
	indexCmd.Flags().String("workspace", "default", "workspace to index into")
	indexCmd.Flags().String("concept", "", "concept tag applied to all indexed items")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Re-rank candidate items for a query",
	Long: `Re-rank candidate items for a query using learned relevance.

Candidates come from an upstream retriever as a JSON array of
{"item_id"|"path", "semantic"} objects, read from --candidates
(a file path, or "-" for stdin).

Examples:
  rankd search "jwt validation" --candidates hits.json --workspace backend
  some-retriever | rankd search "jwt validation" --candidates - --explain`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		workspace, _ := cmd.Flags().GetString("workspace")
		candidatesPath, _ := cmd.Flags().GetString("candidates")
		embeddingPath, _ := cmd.Flags().GetString("embedding")
		concept, _ := cmd.Flags().GetString("concept")
		k, _ := cmd.Flags().GetInt("k")
		explain, _ := cmd.Flags().GetBool("explain")
		baseline, _ := cmd.Flags().GetBool("baseline")

		if candidatesPath == "" {
			return fmt.Errorf("--candidates is required")
		}

		var candidates []engine.Candidate
		if err := readJSONInput(candidatesPath, &candidates); err != nil {
			return fmt.Errorf("reading candidates: %w", err)
		}

		var embedding []float32
		if embeddingPath != "" {
			if err := readJSONInput(embeddingPath, &embedding); err != nil {
				return fmt.Errorf("reading embedding: %w", err)
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/workspaces/"+url.PathEscape(workspace)+"/search", api.SearchBody{
			Query:      query,
			Embedding:  embedding,
			Candidates: candidates,
			K:          k,
			Concept:    concept,
			Explain:    explain,
			Baseline:   baseline,
		})
		if err != nil {
			return err
		}

		var result engine.SearchResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Results) == 0 {
			fmt.Println("No results.")
		}
		for i, r := range result.Results {
			fmt.Printf("%s  %s  [%.4f]\n",
				colorize(colorBold, fmt.Sprintf("%2d.", i+1)),
				r.Item.Path,
				r.Score,
			)
			if explain && r.Breakdown != nil {
				fmt.Printf("     semantic %.4f  learned %.4f  concept %.4f  recency %.4f\n",
					r.Breakdown.Semantic, r.Breakdown.Learned, r.Breakdown.Concept, r.Breakdown.Recency)
			}
		}
		for _, s := range result.Skipped {
			printWarning("Skipped %s: %s", s.Ref, s.Reason)
		}

		// The query id is what feedback attaches to.
		printStatus("Query ID", "%s", result.QueryID)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("workspace", "default", "workspace to search in")
	searchCmd.Flags().String("candidates", "", `candidates JSON file ("-" for stdin)`)
	searchCmd.Flags().String("embedding", "", "optional query embedding JSON file")
	searchCmd.Flags().String("concept", "", "restrict results to items whose concept overlaps this label")
	searchCmd.Flags().Int("k", 0, "maximum number of results (0 = server default)")
	searchCmd.Flags().Bool("explain", false, "show per-component score breakdowns")
	searchCmd.Flags().Bool("baseline", false, "rank by semantic score only")
}

func readJSONInput(path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record an interaction for an item under a query",
	Long: `Record an interaction for an item under a query.

The query is referenced by --query-id (from a search response) or by
--query text; the item by --item (id) or --path.

Examples:
  rankd feedback --query-id q-abc123 --item i-def456 --useful 1
  rankd feedback --query "jwt validation" --path auth.py --useful 1 --dwell-ms 12000 --click-rank 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")
		queryID, _ := cmd.Flags().GetString("query-id")
		query, _ := cmd.Flags().GetString("query")
		itemID, _ := cmd.Flags().GetString("item")
		path, _ := cmd.Flags().GetString("path")
		useful, _ := cmd.Flags().GetInt("useful")
		dwellMS, _ := cmd.Flags().GetInt64("dwell-ms")
		clickRank, _ := cmd.Flags().GetInt("click-rank")

		if queryID == "" && query == "" {
			return fmt.Errorf("one of --query-id or --query is required")
		}
		if itemID == "" && path == "" {
			return fmt.Errorf("one of --item or --path is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/workspaces/"+url.PathEscape(workspace)+"/feedback", api.FeedbackBody{
			QueryID:   queryID,
			Query:     query,
			ItemID:    itemID,
			Path:      path,
			Useful:    useful,
			DwellMS:   dwellMS,
			ClickRank: clickRank,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Recorded interaction %s", result["interaction_id"])
		return nil
	},
}

func init() {
	feedbackCmd.Flags().String("workspace", "default", "workspace the interaction belongs to")
	feedbackCmd.Flags().String("query-id", "", "query id from a search response")
	feedbackCmd.Flags().String("query", "", "query text, used when the id was not kept")
	feedbackCmd.Flags().String("item", "", "item id")
	feedbackCmd.Flags().String("path", "", "item path, used when the id was not kept")
	feedbackCmd.Flags().Int("useful", 0, "explicit vote: -1, 0, or 1")
	feedbackCmd.Flags().Int64("dwell-ms", 0, "observed dwell time in milliseconds")
	feedbackCmd.Flags().Int("click-rank", 0, "1-based rank position that was clicked")
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics for a workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/workspaces/"+url.PathEscape(workspace)+"/stats")
		if err != nil {
			return err
		}

		var s store.WorkspaceStats
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}

		printWorkspaceStats(s)
		return nil
	},
}

func init() {
	statsCmd.Flags().String("workspace", "default", "workspace to summarize")
}

func printWorkspaceStats(s store.WorkspaceStats) {
	fmt.Printf("%s\n", colorize(colorBold, s.Workspace))
	printStatus("Items", "%d", s.TotalItems)
	printStatus("Queries", "%d", s.TotalQueries)
	printStatus("Interactions", "%d", s.TotalInteractions)
	printStatus("Avg useful", "%.3f", s.AvgUseful)
	printStatus("Avg dwell", "%.0f ms", s.AvgDwellMS)
	printStatus("Avg click rank", "%.2f", s.AvgClickRank)
	if s.LastActivityTS > 0 {
		printStatus("Last activity", "%d", s.LastActivityTS)
	}
}

// --- compare ---

var compareCmd = &cobra.Command{
	Use:   "compare [workspace...]",
	Short: "Compare statistics across workspaces (all when none given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		for _, ws := range args {
			q.Add("workspace", ws)
		}
		path := "/stats/compare"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var report struct {
			Workspaces []store.WorkspaceStats `json:"workspaces"`
		}
		if err := decodeJSON(resp, &report); err != nil {
			return err
		}

		if len(report.Workspaces) == 0 {
			fmt.Println("No workspaces found.")
			return nil
		}
		for _, s := range report.Workspaces {
			printWorkspaceStats(s)
		}
		return nil
	},
}

// --- workspaces ---

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List or delete workspaces",
}

var workspacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/workspaces")
		if err != nil {
			return err
		}

		var result map[string][]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		names := result["workspaces"]
		if len(names) == 0 {
			fmt.Println("No workspaces found.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var workspacesRemoveCmd = &cobra.Command{
	Use:   "rm <workspace>",
	Short: "Delete a workspace and all its items, queries and interactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This deletes workspace %q and all its learned relevance. Use --confirm to proceed.", args[0])
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/workspaces/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted workspace %s", args[0])
		return nil
	},
}

func init() {
	workspacesRemoveCmd.Flags().Bool("confirm", false, "confirm workspace deletion")
	workspacesCmd.AddCommand(workspacesListCmd)
	workspacesCmd.AddCommand(workspacesRemoveCmd)
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
