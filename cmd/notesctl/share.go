package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tonotes/model"
)

var (
	shareLocal bool
	openRemote bool
	openJSON   bool
)

var shareCmd = &cobra.Command{
	Use:   "share <id>",
	Short: "Print a share link for the note as it is now",
	Long: `Print a share link holding a copy of the note as it is now. The link
keeps showing that copy after the note is edited or deleted. With --local
the link is encoded here instead of by the server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !shareLocal {
			resp, err := newClient().Share(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("share %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.URL)
			return nil
		}

		session, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer session.Close()
		_, link, err := session.Share(args[0], settings.ShareBaseURL)
		if err != nil {
			return fmt.Errorf("share %s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), link)
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <token|link>",
	Short: "Show the note held by a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := shareToken(args[0])

		var (
			snapshot model.Snapshot
			err      error
		)
		if openRemote {
			snapshot, err = newClient().Resolve(cmd.Context(), token)
		} else {
			session := newSession(cmd)
			snapshot, err = session.OpenShared(token)
			session.Close()
		}
		if err != nil {
			return fmt.Errorf("open share link: %w", err)
		}
		if openJSON {
			return writeJSON(cmd.OutOrStdout(), snapshot)
		}
		printSnapshot(cmd.OutOrStdout(), snapshot)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shareCmd, openCmd)
	shareCmd.Flags().BoolVar(&shareLocal, "local", false, "Encode the link locally")
	openCmd.Flags().BoolVar(&openRemote, "remote", false, "Resolve the link on the server")
	openCmd.Flags().BoolVar(&openJSON, "json", false, "Output in JSON format")
}

// shareToken accepts either a bare token or a full share URL.
func shareToken(arg string) string {
	arg = strings.TrimSpace(arg)
	if i := strings.LastIndex(arg, "/share/"); i >= 0 {
		arg = arg[i+len("/share/"):]
	}
	return strings.TrimRight(arg, "/")
}

func printSnapshot(out io.Writer, s model.Snapshot) {
	fmt.Fprintf(out, "%s  v%d  %s\n\n%s\n", s.ID, s.Version, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Content)
}
