package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/gateway"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/snapshot"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show swarmintel status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n", version.Get())

			fmt.Fprintf(out, "Config:     %s\n", paths.Config)
			fmt.Fprintf(out, "Data:       %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:       %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:     error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "Config:     not found (using defaults)")
			}
			paths.Fill(&cfg)

			fmt.Fprintf(out, "Workspaces: %s\n", cfg.Workspace.Dir)
			if entries, err := os.ReadDir(cfg.Workspace.Dir); err == nil {
				n := 0
				for _, e := range entries {
					if e.IsDir() {
						n++
					}
				}
				fmt.Fprintf(out, "Agents:     %d workspace(s)\n", n)
			} else {
				fmt.Fprintln(out, "Agents:     (workspace directory unreadable)")
			}

			s := cfg.Scoring
			fmt.Fprintf(out, "Scoring:    weights=%.2f/%.2f/%.2f tiers=%.0f/%.0f admission=%s\n",
				s.TrustWeight, s.ReliabilityWeight, s.EfficiencyWeight, s.Tiers.Oro, s.Tiers.Diamante, s.Admission.Policy)

			schedule := "every " + cfg.Synth.Interval.String()
			if cfg.Synth.Schedule != "" {
				schedule = "cron " + cfg.Synth.Schedule
			}
			fmt.Fprintf(out, "Synthesis:  %s workers=%d watch=%v\n", schedule, cfg.Synth.Workers, cfg.Synth.Watch)

			auth := "token"
			if cfg.Gateway.Token == "" {
				auth = "none"
			}
			fmt.Fprintf(out, "Gateway:    addr=%s auth=%s\n", gateway.Addr(cfg.Gateway), auth)

			switch cfg.Snapshot.Backend {
			case config.SnapshotBackendSQLite:
				fmt.Fprintf(out, "Snapshots:  sqlite %s retain=%d\n", cfg.Snapshot.DBPath, cfg.Snapshot.Retain)
			default:
				fs := snapshot.NewFileStore(cfg.Snapshot, log)
				names, err := fs.List()
				if err != nil {
					fmt.Fprintf(out, "Snapshots:  file %s (error: %v)\n", cfg.Snapshot.Dir, err)
					break
				}
				fmt.Fprintf(out, "Snapshots:  file %s count=%d compress=%v\n", cfg.Snapshot.Dir, len(names), cfg.Snapshot.Compress)
				if snap, err := fs.LoadLatest(cmd.Context()); err == nil {
					fmt.Fprintf(out, "Latest:     %s at %s (%d agents, health %.1f)\n",
						snap.ID, snap.GeneratedAt.Format("2006-01-02 15:04:05Z07:00"), len(snap.Agents), snap.Report.SwarmHealthScore)
				} else if !errors.Is(err, snapshot.ErrNoSnapshot) {
					fmt.Fprintf(out, "Latest:     error: %v\n", err)
				}
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
