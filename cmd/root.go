package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "divitutor",
	Short: "Adaptive division tutoring backend",
	Long: "Divitutor serves the adaptive division tutor: question selection and\n" +
		"validation, per-topic mastery tracking, LLM chat tutoring, and the\n" +
		"explanation-video pipeline.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("addr", "", "Listen address (overrides DIVITUTOR_HTTP_ADDR)")
	rootCmd.PersistentFlags().String("db", "", "Database DSN (overrides DIVITUTOR_DB_DSN)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cleanupVideosCmd)
	rootCmd.AddCommand(versionCmd)
}
