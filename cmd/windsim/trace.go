package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/windfield/internal/wind"
)

func newTraceCmd(a *app) *cobra.Command {
	var (
		steps int
		every int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Step the field headless and print wind samples",
		Long: "trace runs the configured scene without pacing or the API and prints\n" +
			"one wind sample every --every steps. A fixed seed gives identical output.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				steps = a.cfg.Sim.TraceSteps
			}
			if every <= 0 {
				every = 1
			}
			ec := a.cfg.Engine()
			if cmd.Flags().Changed("seed") {
				ec.Wind.Seed = seed
			}

			w, f := buildField(a.cfg, ec)
			eng := newEngine(a.cfg, w, f)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed %d, %d bodies, mode %s\n", f.Sim.Seed(), w.Len(), f.Tracker.Mode())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "step\ttime\tdirection\tmagnitude\tgust\ttargets\tapplied")
			eng.OnStep = func(n uint64, st wind.State) {
				if n%uint64(every) != 0 {
					return
				}
				snap := eng.Snapshot()
				fmt.Fprintf(tw, "%d\t%.2f\t(%.3f, %.3f, %.3f)\t%.3f\t%s\t%d\t%d\n",
					n, st.Time, st.Direction.X, st.Direction.Y, st.Direction.Z,
					st.Magnitude, snap.Gust.Phase, len(snap.Targets), snap.Last.Applied)
			}
			eng.RunSteps(steps)
			if err := tw.Flush(); err != nil {
				return err
			}

			totals := f.Totals
			fmt.Fprintf(out, "%s steps, %s forces applied, %s skipped, %d gust events\n",
				humanize.Comma(int64(f.Steps)),
				humanize.Comma(int64(totals.Applied)),
				humanize.Comma(int64(totals.Skipped())),
				countEvents(f.RecentEvents(0), "gust"))
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "steps to run (default sim.trace_steps)")
	cmd.Flags().IntVar(&every, "every", 50, "print one sample every N steps")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override wind.seed")
	return cmd
}
