package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/report"
)

func newReportCmd() *cobra.Command {
	var (
		latest bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the fleet report",
		Long: "Print the fleet report from a fresh synthesis, or with --latest from the " +
			"last saved snapshot without reading the workspaces.",
		Args: cobra.NoArgs,
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

			if latest {
				snap, err := rt.synth.LoadLatestSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeIndented(cmd.OutOrStdout(), snap.Report)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s\n", snap.ID)
				fmt.Fprint(cmd.OutOrStdout(), report.Format(snap.Report, snap.Agents))
				return nil
			}

			if _, err := rt.synth.Synthesize(cmd.Context()); err != nil {
				return err
			}
			if asJSON {
				return writeIndented(cmd.OutOrStdout(), rt.synth.Report())
			}
			fmt.Fprint(cmd.OutOrStdout(), rt.synth.FormatReport())
			return nil
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "read the last saved snapshot instead of synthesizing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
