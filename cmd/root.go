package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wordbridge",
	Short: "Vocabulary recommendation pipeline for student writing samples",
}

func init() {
	settingDefaultConfig()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
