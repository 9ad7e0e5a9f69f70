// Package commands implements vexfsctl's subcommands.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vexfs/vexfs/cmd/vexfsctl/cmdutil"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "vexfsctl",
	Short: "VexFS control client",
	Long: `vexfsctl is the command-line client for a VexFS daemon.

Use it to manage vector collections, run searches, and inspect
daemon health and metrics through the admin REST API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Token, _ = cmd.Flags().GetString("token")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "daemon admin API URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().String("token", "", "bearer token (overrides VEXFSCTL_TOKEN)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(upsertCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("vexfsctl %s (commit %s)\n", Version, Commit)
		return nil
	},
}

// Exit prints err and exits with status 1.
func Exit(err error) {
	cmdutil.PrintError(err)
	os.Exit(1)
}
