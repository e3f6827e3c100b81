package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "digidoc",
	Short: "document lifecycle and version control",
	Example: `digidoc serve
digidoc context set --server http://localhost:4021 --user u1 --role Operator
digidoc doc ingest -c <content> -C Invoice -l Confidential
digidoc doc transition -d <doc-id> -e classify
digidoc doc versions -L <lineage-id>
digidoc access request -d <doc-id> -r <reason>
digidoc audit query -d <doc-id>
digidoc hold set --active`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(contextCommand)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
