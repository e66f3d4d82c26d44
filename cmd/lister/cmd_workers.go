package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/lister/config"
	"github.com/shashiranjanraj/lister/internal/server"
)

var (
	queueWorkersFlag int
	queueFailedLimit int
)

// lister queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start standalone queue workers",
	Long:  "Start standalone queue workers. Only useful with QUEUE_DRIVER=redis; the memory queue is private to each process.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if config.QueueDriver() != "redis" {
			fmt.Println("warning: QUEUE_DRIVER is not redis; this worker only sees its own jobs.")
		}

		fmt.Printf("Queue worker started (%d workers). Press Ctrl+C to stop.\n", queueWorkersFlag)
		app.Queue.Work(ctx, queueWorkersFlag)
		fmt.Println("Queue worker stopped.")
		return nil
	},
}

// lister queue:failed
var queueFailedCmd = &cobra.Command{
	Use:   "queue:failed",
	Short: "List jobs that exhausted their retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := server.Boot(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		rows, err := app.Queue.StoredFailures(cmd.Context(), queueFailedLimit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No failed jobs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tJOB\tATTEMPTS\tFAILED AT\tERROR")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", r.ID, r.JobType, r.Attempts, r.FailedAt.Format("2006-01-02 15:04:05"), r.Error)
		}
		return w.Flush()
	},
}

// lister queue:retry <id>
var queueRetryCmd = &cobra.Command{
	Use:   "queue:retry <id>",
	Short: "Push a failed job back onto the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q", args[0])
		}

		app, err := server.Boot(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Queue.Retry(cmd.Context(), uint(id)); err != nil {
			return err
		}
		fmt.Printf("Job %d queued again.\n", id)
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 5, "Number of concurrent workers")
	queueFailedCmd.Flags().IntVar(&queueFailedLimit, "limit", 50, "Maximum rows to show")
}
