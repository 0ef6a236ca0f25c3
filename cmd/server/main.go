package main

import (
	"context"
	"fmt"
	"os"

	"media-relay/internal/media"
	"media-relay/internal/platform/config"

	"github.com/spf13/cobra"
)

func main() {
	var configFile string

	root := &cobra.Command{
		Use:           "media-relay",
		Short:         "Playback session relay and media resolver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("CONFIG_FILE"), "config file (yaml, toml or json)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	var mode string
	resolve := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Print the variant a selection mode picks for a source link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			m, err := media.ParseMode(mode)
			if err != nil {
				return err
			}
			return runResolve(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], m)
		},
	}
	resolve.Flags().StringVarP(&mode, "mode", "m", string(media.DefaultMode), "selection mode: video, audio, audio-low or audio-first")

	root.AddCommand(serve, resolve)
	// Running the binary without a subcommand starts the server.
	root.RunE = serve.RunE

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(file string) (config.Config, error) {
	_ = config.Load()
	return config.Read(file)
}
