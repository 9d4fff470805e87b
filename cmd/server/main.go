// casekeeper serves the case-management API and its operational commands.
//
// Usage:
//
//	casekeeper serve
//	casekeeper migrate
//	casekeeper issue-token --user <userName>
//	casekeeper policy create -f policy.yaml --as <adminUserName>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "casekeeper",
	Short: "Case management backed by an external evidence ledger",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(issueTokenCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
