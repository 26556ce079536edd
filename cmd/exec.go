package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/jobs"
	"github.com/oactree/jobmon/internal/log"
	"github.com/oactree/jobmon/internal/model"
	"github.com/oactree/jobmon/internal/tracing"
)

// ErrJobNotSucceeded is returned by exec when the job ends Failed or Halted.
var ErrJobNotSucceeded = errors.New("job did not succeed")

var execTimeout time.Duration

var execCmd = &cobra.Command{
	Use:   "exec <procedure.yaml>",
	Short: "Run a procedure headless and print its log",
	Long: `Run a procedure without the monitor. The job is started immediately,
every event is dispatched until the job ends, and the job log is printed.

The exit status is non-zero unless the job succeeded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if execTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, execTimeout)
			defer cancel()
		}

		s, err := newSession(ctx, cfg, args[0], 0)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := s.Close(closeCtx); err != nil {
				log.ErrorErr(log.CatJob, "closing session", err)
			}
		}()

		ctx, span := tracing.StartJobSpan(ctx, s.tracing.Tracer(), s.handler.Job())
		err = execJob(ctx, s.handler)
		if err != nil {
			// Halt the runner and dispatch its final events so the
			// printed status is the one the job ended with.
			if cerr := s.handler.Close(); cerr != nil {
				log.ErrorErr(log.CatJob, "halting job", cerr)
			}
		}
		tracing.EndJobSpan(span, s.handler.Job(), err)

		printLog(cmd.OutOrStdout(), s.handler.Log().Records())
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s.handler.Job().Name, s.handler.JobStatus())
		if err != nil {
			return err
		}
		if s.handler.State() != event.JobSucceeded {
			return fmt.Errorf("%s ended %s: %w", s.handler.Job().Name, s.handler.JobStatus(), ErrJobNotSucceeded)
		}
		return nil
	},
}

func init() {
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "halt the job after this long (0 = no limit)")
}

// execJob starts the job and dispatches its events until it ends.
func execJob(ctx context.Context, h *jobs.Handler) error {
	if err := h.Start(); err != nil {
		return fmt.Errorf("starting job: %w", err)
	}
	if err := h.Pump(ctx); err != nil {
		return fmt.Errorf("dispatching events: %w", err)
	}
	return nil
}

func printLog(w io.Writer, records []model.LogRecord) {
	for _, rec := range records {
		source := ""
		if rec.Source != "" {
			source = "[" + rec.Source + "] "
		}
		fmt.Fprintf(w, "%s %-7s %s%s\n", rec.Time.Format(time.RFC3339), rec.Severity, source, rec.Message)
	}
}
