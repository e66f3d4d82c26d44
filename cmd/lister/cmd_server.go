package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/lister/config"
	"github.com/shashiranjanraj/lister/internal/server"
)

var (
	serveMigrateFlag bool
	serveWorkersFlag int
)

// lister serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the in-process queue workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		workers := serveWorkersFlag
		if !cmd.Flags().Changed("workers") {
			workers = config.QueueWorkers()
		}
		return server.Start(ctx, server.Options{
			Workers: workers,
			Migrate: serveMigrateFlag,
		})
	},
}

// lister route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := server.Routes()
		if len(infos) == 0 {
			fmt.Println("No routes registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrateFlag, "migrate", false, "Run pending migrations before listening")
	serveCmd.Flags().IntVarP(&serveWorkersFlag, "workers", "w", 2, "Number of in-process queue workers (0 disables them)")
}
