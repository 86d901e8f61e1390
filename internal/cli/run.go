package cli

import (
	"context"
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"hostboot/internal/bootstrap"
	"hostboot/internal/logx"
	"hostboot/internal/tui"
)

var (
	runDev        bool
	runNoProgress bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Install missing or outdated components",
		RunE:  runRun,
	}
	cmd.Flags().BoolVar(&runDev, "dev", false, "Development mode: skip every step")
	cmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "Disable the interactive progress table")
	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	logger, closer, err := logx.New(env.dirs.LogsDir)
	if err != nil {
		return err
	}
	defer closer.Close()

	orch, err := bootstrap.New(bootstrap.Options{
		Dirs:        env.dirs,
		Target:      env.target,
		Pins:        env.pins,
		Logger:      logger,
		DevMode:     env.cfg.DevMode || runDev,
		ErrorPrefix: env.cfg.ErrorPrefix,
		EventBuffer: env.cfg.EventBuffer,
		UserAgent:   env.cfg.UserAgent,
	})
	if err != nil {
		return err
	}
	sub, err := orch.Events().Attach()
	if err != nil {
		return err
	}
	defer sub.Close()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()
	steps := visibleSteps(env.target.IsWindows())

	switch tui.DetectMode(out, runNoProgress, outputJSON) {
	case tui.ModeJSON:
		enc := json.NewEncoder(out)
		return pump(ctx, orch, sub, func(ev bootstrap.Event) { _ = enc.Encode(ev) })

	case tui.ModeTUI:
		model := tui.NewStepModel("hostboot "+env.target.String(), steps)
		return tui.RunWithWork(out, model, func(send func(tea.Msg)) error {
			rep := tui.NewEventReporter(send, steps)
			return pump(ctx, orch, sub, rep.Handle)
		})

	default:
		rep := tui.NewPlainReporter(out, !runNoProgress && tui.IsTerminal(out))
		return pump(ctx, orch, sub, rep.Handle)
	}
}

// pump runs the pipeline and feeds every event to handle until the stream
// closes, then returns Run's result.
func pump(ctx context.Context, orch *bootstrap.Orchestrator, sub *bootstrap.Subscription, handle func(bootstrap.Event)) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- orch.Run(ctx)
	}()
	for ev := range sub.C() {
		handle(ev)
	}
	return <-errCh
}

func visibleSteps(windows bool) []string {
	steps := make([]string, 0, len(bootstrap.Steps))
	for _, s := range bootstrap.Steps {
		if s == bootstrap.StepRuntime && !windows {
			continue
		}
		steps = append(steps, s)
	}
	return steps
}

