package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tonotes/services"
	"tonotes/tui"
	"tonotes/workspace"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse, edit and search notes interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		presenter := tui.NewPresenter()
		session := workspace.NewSession(newClient(), presenter, workspace.Options{
			Codec:  services.NewSnapshotCodec(settings.SigningKey),
			Logger: slog.Default(),
		})
		defer session.Close()

		return tui.Run(cmd.Context(), session, presenter, tui.Options{ShareBaseURL: settings.ShareBaseURL})
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
