package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tonotes/model"
	"tonotes/workspace"
)

var (
	listJSON    bool
	editContent string
	editNoWait  bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notes, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := newClient().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list notes: %w", err)
		}
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), notes)
		}
		for _, n := range notes {
			printNoteLine(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add [content...]",
	Short: "Create a note; reads stdin when no content is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := contentArg(cmd, args)
		if err != nil {
			return err
		}
		note, err := newClient().Create(cmd.Context(), content)
		if err != nil {
			return fmt.Errorf("create note: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (version %d)\n", note.ID, note.Version)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> [content...]",
	Short: "Replace a note's content",
	Long: `Replace a note's content. The edit is submitted with the version that
was current when the listing was loaded. If someone else changed or deleted
the note in the meantime, the edit is rejected, the listing is reloaded and
the draft is discarded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		content := editContent
		if !cmd.Flags().Changed("content") {
			var err error
			if content, err = contentArg(cmd, args[1:]); err != nil {
				return err
			}
		}

		session, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer session.Close()

		edit, err := session.BeginEdit(args[0])
		if err != nil {
			return fmt.Errorf("edit %s: %w", args[0], err)
		}
		if err := edit.SetDraft(content); err != nil {
			return err
		}
		note, err := edit.Submit(ctx)
		if err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (version %d)\n", note.ID, note.Version)
			return nil
		}
		if !errors.Is(err, model.ErrVersionConflict) && !errors.Is(err, model.ErrNotFound) {
			edit.Cancel()
			return fmt.Errorf("update note: %w", err)
		}
		if editNoWait {
			edit.Cancel()
			return err
		}
		return waitForResync(ctx, cmd.OutOrStdout(), session, edit, err)
	},
}

func waitForResync(ctx context.Context, out io.Writer, session *workspace.Session, edit *workspace.EditSession, cause error) error {
	if _, err := edit.Wait(ctx); err != nil {
		return err
	}
	if current, ok := session.Note(edit.NoteID()); ok {
		fmt.Fprintf(out, "Reloaded: %s is now at version %d\n", current.ID, current.Version)
	} else {
		fmt.Fprintf(out, "Reloaded: %s no longer exists\n", edit.NoteID())
	}
	return cause
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"delete"},
	Short:   "Delete notes",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		for _, id := range args {
			if err := c.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd, addCmd, editCmd, rmCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	editCmd.Flags().StringVarP(&editContent, "content", "c", "", "New content")
	editCmd.Flags().BoolVar(&editNoWait, "no-wait", false, "Exit on conflict without waiting for the reload")
}

func printNoteLine(out io.Writer, n *model.Note) {
	first, _, _ := strings.Cut(strings.TrimSpace(n.Content), "\n")
	if r := []rune(first); len(r) > 60 {
		first = string(r[:57]) + "..."
	}
	fmt.Fprintf(out, "%s  v%-3d %s  %s\n", n.ID, n.Version, n.CreatedAt.Local().Format("2006-01-02 15:04"), first)
}

func writeJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
