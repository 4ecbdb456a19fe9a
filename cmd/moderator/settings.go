package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/safestream/moderator/internal/store/model"
	"github.com/spf13/cobra"
)

type settingsSetOptions struct {
	maxFileSizeMB      int
	maxDurationSeconds float64
	supportedFormats   []string
}

var settingsSetOpts settingsSetOptions

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect or change the system settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the system settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, undo, err := setup()
		if err != nil {
			return err
		}
		defer undo()

		ctx := context.Background()
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		settings, err := s.Settings().Get(ctx)
		if err != nil {
			return err
		}
		return printSettings(cmd, settings)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the system settings",
	Long:  "Updates the settings given on the command line. Settings without a flag keep their current value.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, undo, err := setup()
		if err != nil {
			return err
		}
		defer undo()

		ctx := context.Background()
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		current, err := s.Settings().Get(ctx)
		if err != nil {
			return err
		}

		updated := *current
		flags := cmd.Flags()
		if flags.Changed("max-file-size-mb") {
			updated.MaxFileSizeMB = settingsSetOpts.maxFileSizeMB
		}
		if flags.Changed("max-duration") {
			updated.MaxDurationSeconds = settingsSetOpts.maxDurationSeconds
		}
		if flags.Changed("format") {
			updated.SupportedFormats = settingsSetOpts.supportedFormats
		}

		saved, err := s.Settings().Update(ctx, updated)
		if err != nil {
			return fmt.Errorf("updating settings: %w", err)
		}
		return printSettings(cmd, saved)
	},
}

func printSettings(cmd *cobra.Command, settings *model.SystemSettings) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"maxFileSizeMB":      settings.MaxFileSizeMB,
		"maxDurationSeconds": settings.MaxDurationSeconds,
		"supportedFormats":   settings.SupportedFormats,
		"updatedAt":          settings.UpdatedAt,
	})
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	settingsSetCmd.Flags().IntVar(&settingsSetOpts.maxFileSizeMB, "max-file-size-mb", 0, "Largest accepted download in MB")
	settingsSetCmd.Flags().Float64Var(&settingsSetOpts.maxDurationSeconds, "max-duration", 0, "Longest accepted video in seconds")
	settingsSetCmd.Flags().StringSliceVar(&settingsSetOpts.supportedFormats, "format", nil, "Accepted media type, repeatable")
}
