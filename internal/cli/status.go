package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hostboot/internal/bootstrap"
	"hostboot/internal/tui"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report which steps a run would perform, without changing anything",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	orch, err := bootstrap.New(bootstrap.Options{
		Dirs:   env.dirs,
		Target: env.target,
		Pins:   env.pins,
	})
	if err != nil {
		return err
	}

	var spinner *tui.StatusWriter
	if !outputJSON && tui.IsTerminal(cmd.ErrOrStderr()) {
		spinner = tui.NewStatusWriter(cmd.ErrOrStderr(), "checking installed components")
	}
	report := orch.Checks().Report(commandContext(cmd))
	if spinner != nil {
		spinner.Stop()
	}

	if outputJSON {
		return writeStatusJSON(cmd, env.dirs.Root, env.target.String(), report)
	}
	writeStatusTable(cmd, env.dirs.Root, env.target.String(), report)
	return nil
}

func statusLabel(s bootstrap.StepStatus) string {
	switch {
	case s.Skip:
		return tui.StatusSkipped
	case s.Needed:
		return tui.StatusNeeded
	default:
		return tui.StatusCurrent
	}
}

func writeStatusTable(cmd *cobra.Command, root, target string, report []bootstrap.StepStatus) {
	fmt.Fprintf(cmd.OutOrStdout(), "Root:   %s\nTarget: %s\n\n", root, target)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTATUS\tDETAIL")
	for _, s := range report {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Step, statusLabel(s), s.Detail)
	}
	w.Flush()
}

func writeStatusJSON(cmd *cobra.Command, root, target string, report []bootstrap.StepStatus) error {
	payload := struct {
		Root   string                 `json:"root"`
		Target string                 `json:"target"`
		Steps  []bootstrap.StepStatus `json:"steps"`
	}{
		Root:   root,
		Target: target,
		Steps:  report,
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
