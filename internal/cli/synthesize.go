package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newSynthesizeCmd() *cobra.Command {
	var (
		saveSnapshot bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Run one synthesis cycle and print the fleet report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			gen, err := rt.synth.Synthesize(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeIndented(out, gen.Report); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, rt.synth.FormatReport())
				for _, s := range gen.Skipped {
					fmt.Fprintf(out, "skipped: %s (%s)\n", s.AgentID, s.Reason)
				}
			}

			if saveSnapshot {
				id, err := rt.synth.SaveSnapshot(cmd.Context())
				if err != nil {
					return fmt.Errorf("saving snapshot: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "snapshot saved: %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&saveSnapshot, "snapshot", false, "save the result as the latest snapshot")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
