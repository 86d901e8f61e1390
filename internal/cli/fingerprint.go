package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"hostboot/internal/fingerprint"
	"hostboot/internal/pins"
)

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Compare the embedded lock file fingerprint with the installed one",
		RunE:  runFingerprint,
	}
}

func runFingerprint(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	embedded := pins.Fingerprint()
	persisted, ok, err := fingerprint.New(env.dirs.FingerprintFile()).Read()
	if err != nil {
		return err
	}

	if outputJSON {
		payload := struct {
			Embedded  string `json:"embedded"`
			Persisted string `json:"persisted,omitempty"`
			Match     bool   `json:"match"`
		}{embedded, persisted, ok && persisted == embedded}
		out, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode fingerprint json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "embedded:  %s\n", embedded)
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "persisted: (none)")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "persisted: %s\n", persisted)
	if persisted != embedded {
		fmt.Fprintln(cmd.OutOrStdout(), "packages are out of date; run `hostboot run` to reinstall")
	}
	return nil
}
