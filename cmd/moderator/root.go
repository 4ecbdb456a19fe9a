package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile string
)

var rootCmd = &cobra.Command{
	Use:           "moderator",
	Short:         "Automated video moderation pipeline",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// variables already set in the environment win over the file
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(moderateCmd)
	rootCmd.AddCommand(settingsCmd)

	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", ".env", "Path to an optional dotenv file")
}
