package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tonotes/model"
)

var (
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Semantic search over all notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session := newSession(cmd)
		defer session.Close()

		result, err := session.Search.Search(cmd.Context(), strings.Join(args, " "), searchTopK)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		if searchJSON {
			return writeJSON(cmd.OutOrStdout(), result)
		}
		printSearchResult(cmd.OutOrStdout(), result)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the search service status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session := newSession(cmd)
		defer session.Close()

		printStatus(cmd.OutOrStdout(), session.Search.CheckStatus(cmd.Context()))
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the search index from the stored notes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session := newSession(cmd)
		defer session.Close()

		status, err := session.Search.RefreshIndex(cmd.Context())
		if err != nil {
			return fmt.Errorf("refresh index: %w", err)
		}
		printStatus(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd, statusCmd, refreshCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 3, "Number of sources to return (1-20)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")
}

func printSearchResult(out io.Writer, result *model.SearchResult) {
	if result.Response != "" {
		fmt.Fprintf(out, "%s\n\n", result.Response)
	}
	if len(result.Sources) == 0 {
		fmt.Fprintln(out, "No matching notes.")
		return
	}
	for i, src := range result.Sources {
		fmt.Fprintf(out, "%d. %s  %.0f%%\n   %s\n", i+1, src.NoteID, src.Similarity*100, src.Preview)
	}
}

func printStatus(out io.Writer, status model.ServiceStatus) {
	fmt.Fprintf(out, "Search: %s", status.State)
	if status.State == model.StateActive {
		fmt.Fprintf(out, " (%d chunks indexed", status.IndexedChunks)
		if status.Model != "" {
			fmt.Fprintf(out, ", model %s", status.Model)
		}
		fmt.Fprint(out, ")")
	}
	if status.Reason != "" {
		fmt.Fprintf(out, ": %s", status.Reason)
	}
	fmt.Fprintln(out)
}
