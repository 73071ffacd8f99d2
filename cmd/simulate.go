package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/config"
	"github.com/abhisek/attune/internal/store"
	"github.com/abhisek/attune/internal/ui/theme"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Replay a scripted learner session through the engine",
	Long: "Simulate feeds each step of a scenario file (snapshots, dialogue replies and\n" +
		"closes) through a fresh engine and prints every decision. With --record the\n" +
		"run is journaled to the database.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sc, err := loadScenario(args[0])
		if err != nil {
			return err
		}

		var s *store.Store
		if record, _ := cmd.Flags().GetBool("record"); record {
			dbPath, err := resolveDBPath(cmd, cfg)
			if err != nil {
				return fmt.Errorf("resolve database path: %w", err)
			}
			if s, err = openDB(dbPath); err != nil {
				return err
			}
		}

		log := zap.NewNop()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			if log, err = newLogger(cfg.Log); err != nil {
				return err
			}
		}
		return simulate(cmd.Context(), cmd.OutOrStdout(), cfg, sc, s, log)
	},
}

// replayClock reports scenario time. It only moves when set.
type replayClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *replayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *replayClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func simulate(ctx context.Context, w io.Writer, cfg config.Config, sc *scenario, s *store.Store, log *zap.Logger) error {
	clock := &replayClock{now: sc.Start}
	rt, err := newInstance(ctx, cfg, s, clock.Now, log)
	if err != nil {
		if s != nil {
			_ = s.Close()
		}
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = rt.eng.Run(ctx)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	fmt.Fprintln(w, theme.Title.Render("Scenario")+"  "+theme.Hint.Render(fmt.Sprintf("%s, %d steps", sc.UserID, len(sc.Steps))))
	fmt.Fprintln(w, theme.Separator(48))
	for i, st := range sc.Steps {
		clock.set(sc.Start.Add(st.At))
		label := fmt.Sprintf("[%d] +%s %s", i+1, st.At, st.kind())
		if err := runStep(ctx, w, rt, sc.UserID, label, st); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	concepts := rt.eng.Tracker().Concepts()
	order := make([]string, 0, len(concepts))
	for id := range concepts {
		order = append(order, id)
	}
	slices.Sort(order)
	fmt.Fprintln(w, theme.Separator(48))
	renderMastery(w, concepts, order)
	return nil
}

func runStep(ctx context.Context, w io.Writer, rt *instance, userID, label string, st step) error {
	if st.Snapshot != nil {
		out, err := rt.eng.Submit(ctx, *st.Snapshot)
		if err != nil {
			return err
		}
		renderOutcome(w, label, out)
		return nil
	}

	sess, ok := rt.eng.Tutor().Active(userID)
	if !ok {
		fmt.Fprintln(w, theme.Title.Render(label)+"  "+theme.Hint.Render("no open dialogue, skipped"))
		return nil
	}
	fmt.Fprintln(w, theme.Title.Render(label))

	if st.Close {
		report, err := rt.eng.Close(ctx, sess.ID())
		if err != nil {
			return err
		}
		renderReport(w, report)
		return nil
	}

	fmt.Fprintln(w, "  "+theme.Field("Learner", st.Reply))
	res, err := rt.eng.Reply(ctx, sess.ID(), st.Reply)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "  "+theme.Label.Render("Grasp")+theme.Bar(res.Analysis.Comprehension, barWidth))
	if m := res.Analysis.MisconceptionDetected; m != "" {
		fmt.Fprintln(w, "  "+theme.Label.Render("Misconception")+theme.Bad.Render(m))
	}
	renderMessage(w, &res.Message)
	if res.Report != nil {
		renderReport(w, res.Report)
	}
	return nil
}

func init() {
	simulateCmd.Flags().Bool("record", false, "Journal the run to the database")
	simulateCmd.Flags().BoolP("verbose", "v", false, "Log engine activity to stderr")
}
