package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
)

const (
	groupFleet   = "fleet"
	groupService = "service"

	envLogLevel = "SWARMINTEL_LOG_LEVEL"
)

var (
	cfgFile  string
	logLevel string

	// Resolved before every command runs.
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swarmintel",
		Short: "Score an agent fleet and route tasks to it",
		Long: "swarmintel reads per-agent workspace records, synthesizes a compound\n" +
			"intelligence profile for every agent and routes incoming tasks to the best fit.",
		PersistentPreRunE: setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $SWARMINTEL_HOME/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "override logging.level ($"+envLogLevel+")")

	cmd.AddGroup(
		&cobra.Group{ID: groupFleet, Title: "Fleet commands:"},
		&cobra.Group{ID: groupService, Title: "Service commands:"},
	)
	for _, sub := range []*cobra.Command{newSynthesizeCmd(), newReportCmd(), newRouteCmd()} {
		sub.GroupID = groupFleet
		cmd.AddCommand(sub)
	}
	for _, sub := range []*cobra.Command{newServeCmd(), newStatusCmd()} {
		sub.GroupID = groupService
		cmd.AddCommand(sub)
	}
	cmd.AddCommand(newConfigCmd(), newVersionCmd())
	return cmd
}

// setup resolves paths and the bootstrap logger used until the config is read.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if paths, err = config.ResolvePaths(); err != nil {
		return err
	}
	if cfgFile != "" {
		paths.Config = cfgFile
	}
	if logLevel == "" {
		logLevel = os.Getenv(envLogLevel)
	}
	level := logLevel
	if level == "" {
		level = "info"
	}
	log = logging.New(nil, level)
	return nil
}

// Execute runs the swarmintel command tree.
func Execute() error {
	return newRootCmd().Execute()
}
