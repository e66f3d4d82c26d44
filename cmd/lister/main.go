// Command lister runs the listing wizard API and the edge proxy, and
// carries the operational sub-commands:
//
//	lister serve --migrate     # start the HTTP server and queue workers
//	lister migrate             # run pending migrations
//	lister migrate:rollback
//	lister migrate:status
//	lister queue:work          # standalone workers (QUEUE_DRIVER=redis)
//	lister render <project-id> # print a project's listing HTML
//	lister usage <user-id>
//	lister plan <user-id> <plan>
//	lister token <user-id>     # mint a development JWT
//	lister route:list
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "lister",
	Short:         "eBay listing wizard and edge proxy",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)

	// Workers
	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(queueFailedCmd)
	rootCmd.AddCommand(queueRetryCmd)

	// Listings and accounts
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(tokenCmd)
}
