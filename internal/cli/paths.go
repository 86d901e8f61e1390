package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the resolved installation directories",
		RunE:  runPaths,
	}
}

type pathEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func runPaths(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	d := env.dirs

	entries := []pathEntry{
		{"root", d.Root},
		{"config", d.ConfigFile},
		{"manager", d.Manager},
		{"interpreter", d.Interpreter},
		{"runtime", d.Runtime},
		{"cache", d.CacheDir},
		{"deps", d.DepsDir()},
		{"fingerprint", d.FingerprintFile()},
		{"host", d.HostDir},
		{"lock", d.LockFile()},
		{"scripts", d.ScriptsDir},
		{"logs", d.LogsDir},
	}
	if !env.target.IsWindows() {
		entries = append(entries[:4], entries[5:]...)
	}

	if outputJSON {
		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("encode paths json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Path)
	}
	return w.Flush()
}
