package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/lister/app/jobs"
	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/app/services"
	"github.com/shashiranjanraj/lister/config"
	"github.com/shashiranjanraj/lister/internal/server"
	"github.com/shashiranjanraj/lister/pkg/auth"
)

var (
	renderOutFlag   string
	renderStoreFlag bool
	tokenTTLFlag    time.Duration
)

// lister render <project-id>
var renderCmd = &cobra.Command{
	Use:   "render <project-id>",
	Short: "Render a project's listing HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if renderStoreFlag {
			job := jobs.NewExportListing(app.Projects, app.Disk)
			job.ProjectID = args[0]
			if err := job.Handle(ctx); err != nil {
				return err
			}
			fmt.Println(app.Disk.URL(jobs.ExportPath(args[0])))
			return nil
		}

		p, err := app.Projects.Get(ctx, args[0])
		if err != nil {
			return err
		}
		html := services.RenderPreview(p)
		if renderOutFlag == "" {
			_, err = fmt.Fprint(cmd.OutOrStdout(), html)
			return err
		}
		return os.WriteFile(renderOutFlag, []byte(html), 0o644)
	},
}

// lister usage <user-id>
var usageCmd = &cobra.Command{
	Use:   "usage <user-id>",
	Short: "Show a user's plan and usage for the current month",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := server.Boot(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		snap, err := app.Usage.Usage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, snap)
	},
}

// lister plan <user-id> <plan>
var planCmd = &cobra.Command{
	Use:   "plan <user-id> <free|pro|enterprise>",
	Short: "Move a user to another subscription plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan := models.Plan(args[1])
		if !plan.Known() {
			return fmt.Errorf("unknown plan %q (free, pro, enterprise)", args[1])
		}

		app, err := server.Boot(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		rec, err := app.Usage.SetPlan(cmd.Context(), args[0], plan)
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	},
}

// lister token <user-id>
var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a development JWT for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		token, err := auth.GenerateToken(args[0], tokenTTLFlag)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutFlag, "out", "o", "", "Write the HTML to a file instead of stdout")
	renderCmd.Flags().BoolVar(&renderStoreFlag, "store", false, "Write the export onto the storage disk and print its URL")
	tokenCmd.Flags().DurationVar(&tokenTTLFlag, "ttl", 24*time.Hour, "Token lifetime")
}
