package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/NoticeFlow/internal/application/dispatch"
	"github.com/turtacn/NoticeFlow/internal/application/ingestion"
)

// withApp loads the CLIContext, builds the App and hands both to fn. The App
// is closed when fn returns.
func withApp(cmd *cobra.Command, mutate func(*CLIContext), fn func(*CLIContext, *App) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(cliCtx)
	}
	app, err := NewApp(cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(cliCtx, app)
}

// oneShot bounds ctx by the --timeout flag.
func oneShot(cmd *cobra.Command, cliCtx *CLIContext) (context.Context, context.CancelFunc) {
	if cliCtx.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), cliCtx.Timeout)
}

func newIngestCmd() *cobra.Command {
	var bypassWindow bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion pass for today",
		Long: `Fetch today's notifications for every active recipient, compute deadlines
and persist new records with their pending dispatches.

Exits non-zero when another worker holds the ingestion lock or the run fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mutate := func(c *CLIContext) {
				if bypassWindow {
					c.Config.Ingestion.BypassWindow = true
				}
			}
			return withApp(cmd, mutate, func(cliCtx *CLIContext, app *App) error {
				ctx, cancel := oneShot(cmd, cliCtx)
				defer cancel()

				report, err := app.Ingestion.Run(ctx)
				if report != nil {
					if perr := PrintResult(cmd, ingestResult{report}); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&bypassWindow, "bypass-window", false, "keep records published on days other than today")
	return cmd
}

func newDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Send every pending dispatch once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(cliCtx *CLIContext, app *App) error {
				ctx, cancel := oneShot(cmd, cliCtx)
				defer cancel()

				report, err := app.Dispatch.RunPending(ctx)
				if err != nil {
					return err
				}
				return PrintResult(cmd, dispatchResult{report})
			})
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook and query API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(cliCtx *CLIContext, app *App) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				app.WatchRules(cliCtx.ConfigPath)
				return Serve(ctx, app)
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the scheduler and the inbound consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(cliCtx *CLIContext, app *App) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				app.WatchRules(cliCtx.ConfigPath)
				return RunWorker(ctx, app)
			})
		},
	}
}

type ingestResult struct{ *ingestion.RunReport }

func (r ingestResult) String() string {
	return fmt.Sprintf("run %s %s for %s: recipients=%d fetched=%d persisted=%d duplicates=%d out_of_window=%d extraction_failures=%d rule_failures=%d fetch_failures=%d (%s)",
		r.ExecutionID, r.Status, r.TargetDay.Format("2006-01-02"),
		r.Recipients, r.Fetched, r.Persisted, r.Duplicates, r.OutOfWindow,
		r.ExtractionFailures, r.RuleFailures, r.FetchFailures,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}

func (r ingestResult) TableHeaders() []string {
	return []string{"EXECUTION", "STATUS", "DAY", "RECIPIENTS", "FETCHED", "PERSISTED", "DUPLICATES", "FAILURES"}
}

func (r ingestResult) TableRows() [][]string {
	failures := r.FetchFailures + r.ExtractionFailures + r.RuleFailures
	return [][]string{{
		r.ExecutionID, string(r.Status), r.TargetDay.Format("2006-01-02"),
		strconv.Itoa(r.Recipients), strconv.Itoa(r.Fetched), strconv.Itoa(r.Persisted),
		strconv.Itoa(r.Duplicates), strconv.Itoa(failures),
	}}
}

type dispatchResult struct{ *dispatch.DispatchReport }

func (r dispatchResult) String() string {
	return fmt.Sprintf("dispatch pass: selected=%d sent=%d failed=%d", r.Selected, r.Sent, r.Failed)
}

func (r dispatchResult) TableHeaders() []string {
	return []string{"SELECTED", "SENT", "FAILED"}
}

func (r dispatchResult) TableRows() [][]string {
	return [][]string{{strconv.Itoa(r.Selected), strconv.Itoa(r.Sent), strconv.Itoa(r.Failed)}}
}
