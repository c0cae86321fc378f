package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"

	"github.com/dentaltracker/dentaltracker/internal/timelapse"
	"github.com/dentaltracker/dentaltracker/internal/tracker"
)

func newTimelapseCmd() *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "timelapse",
		Short: "Compile every photo into a timelapse video",
		Long:  "Compile every photo, oldest first, into an MP4 with ffmpeg. Interrupting the command aborts the run and cleans up.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if publish && !a.photos.CanPublish() {
				return errors.New("--publish requires storage.endpoint to be configured")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			updates := a.tracker.Subscribe(ctx)
			run, err := a.tracker.CreateTimelapse(ctx)
			if err != nil {
				if msg := a.tracker.State().ErrorMessage; msg != "" {
					return errors.New(msg)
				}
				return err
			}

			bar := newProgressBar(cmd.ErrOrStderr())
			res := waitWithProgress(ctx, a, run, updates, bar)
			a.tracker.Wait()

			final := a.tracker.State()
			if !res.Succeeded() {
				bar.fail()
				return errors.New(final.ErrorMessage)
			}
			bar.done()

			fmt.Fprintln(cmd.OutOrStdout(), final.SuccessMessage)
			fmt.Fprintln(cmd.OutOrStdout(), res.OutputPath)

			if publish {
				obj, err := a.photos.Publish(ctx, res.OutputPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published to %s/%s\n", obj.Bucket, obj.Key)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", false, "Upload the video to the configured bucket")

	return cmd
}

// waitWithProgress mirrors tracker progress onto the bar until the run ends.
// An interrupt closes the tracker, which cancels the run.
func waitWithProgress(ctx context.Context, a *app, run *timelapse.Run, updates <-chan tracker.State, bar *progressBar) timelapse.Result {
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			bar.set(st.Progress)
		case <-run.Done():
			return run.Result()
		case <-ctx.Done():
			a.tracker.Close()
			<-run.Done()
			return run.Result()
		}
	}
}

// progressBar draws a go-pretty bar on terminals and plain lines elsewhere.
type progressBar struct {
	w       io.Writer
	pw      progress.Writer
	tracker *progress.Tracker
	last    int
}

func newProgressBar(w io.Writer) *progressBar {
	b := &progressBar{w: w, last: -1}
	if f, ok := w.(*os.File); !ok || !isTerminal(f) {
		return b
	}

	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetAutoStop(true)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Visibility.ETA = false

	b.tracker = &progress.Tracker{Message: "Building timelapse", Total: 100, Units: progress.UnitsDefault}
	pw.AppendTracker(b.tracker)
	b.pw = pw
	go pw.Render()
	return b
}

func (b *progressBar) set(pct int) {
	if pct == b.last {
		return
	}
	b.last = pct
	if b.tracker != nil {
		b.tracker.SetValue(int64(pct))
		return
	}
	fmt.Fprintf(b.w, "progress: %d%%\n", pct)
}

func (b *progressBar) done() {
	if b.tracker == nil {
		return
	}
	b.tracker.SetValue(100)
	b.tracker.MarkAsDone()
	b.wait()
}

func (b *progressBar) fail() {
	if b.tracker == nil {
		return
	}
	b.tracker.MarkAsErrored()
	b.wait()
}

func (b *progressBar) wait() {
	for b.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
