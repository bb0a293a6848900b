package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var noScheduler bool

	root := &cobra.Command{
		Use:          "code-janitor",
		Short:        "Tracks analyzer findings and opens AI-generated fix pull requests",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, !noScheduler)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, !noScheduler)
		},
	}
	root.PersistentFlags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without the periodic sync and fix cycle")

	root.AddCommand(
		serveCmd,
		newSyncCmd(),
		newReconcileCmd(),
		newFixCmd(),
		newScanCmd(),
		newMigrateCmd(),
	)
	return root
}

func runServe(cmd *cobra.Command, withScheduler bool) error {
	a, err := bootstrap(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()
	return serve(cmd.Context(), a, withScheduler)
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import new analyzer findings once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.fixer.SyncIssues(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"new_issues": n})
		},
	}
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Check open fix pull requests and close merged or rejected ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.fixer.ReconcilePullRequests(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"merged": n})
		},
	}
}

func newFixCmd() *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "fix [issue-id]",
		Short: "Attempt a fix for one issue, or a batch of NEW issues with --pending",
		Args: func(cmd *cobra.Command, args []string) error {
			if pending {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			if pending {
				res, err := a.fixer.FixPending(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			res, err := a.fixer.AttemptFix(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("fix failed: %s", res.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "attempt the next batch of NEW issues")
	return cmd
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [owner repo]",
		Short: "Run the analyzer scan for a repository, the configured one by default",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or owner and repo, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			var owner, repo string
			if len(args) == 2 {
				owner, repo = args[0], args[1]
			}
			res, err := a.fixer.Scan(cmd.Context(), owner, repo)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("scan failed: %s", res.Message)
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()
			a.logger.Info("migrations applied")
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
