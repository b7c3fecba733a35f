package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tonotes/client"
	"tonotes/services"
	"tonotes/workspace"
)

var (
	verbose    bool
	configPath string
	serverURL  string
	authToken  string
	timeout    time.Duration

	settings fileConfig
)

var rootCmd = &cobra.Command{
	Use:   "notesctl",
	Short: "Command line client for the tonotes server",
	Long: `notesctl lists, edits, shares and searches notes on a tonotes server.
Edits carry the version they were based on; an edit that loses to a
concurrent writer is discarded after the listing is reloaded.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg, err := loadFileConfig(configPath)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("server") || cfg.Server == "" {
			cfg.Server = serverURL
		}
		if flags.Changed("token") {
			cfg.Token = authToken
		}
		if flags.Changed("timeout") {
			cfg.Timeout = timeout
		}
		if cfg.ShareBaseURL == "" {
			cfg.ShareBaseURL = cfg.Server
		}
		settings = cfg
		slog.Debug("notesctl configured", "server", cfg.Server, "timeout", cfg.Timeout, "config", configPath)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServer, "Server base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Bearer token for the identity gate")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Request timeout")
}

func newClient() *client.Client {
	opts := []client.Option{client.WithTimeout(settings.Timeout)}
	if settings.Token != "" {
		opts = append(opts, client.WithBearerToken(settings.Token))
	}
	return client.New(settings.Server, opts...)
}

func newSession(cmd *cobra.Command) *workspace.Session {
	return workspace.NewSession(newClient(), newTextPresenter(cmd.OutOrStdout(), cmd.ErrOrStderr()), workspace.Options{
		Codec:  services.NewSnapshotCodec(settings.SigningKey),
		Logger: slog.Default(),
	})
}

// openSession starts a workspace session against the configured server. The
// caller must Close it.
func openSession(ctx context.Context, cmd *cobra.Command) (*workspace.Session, error) {
	session := newSession(cmd)
	if err := session.Start(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("load notes: %w", err)
	}
	return session, nil
}

// contentArg joins args, or reads stdin when there are none.
func contentArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(raw), "\n"), nil
}
