package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/routing"
)

type taskFlags struct {
	taskID     string
	title      string
	category   string
	bounty     float64
	physical   bool
	evidence   []string
	exclude    []string
	minFitness float64
	fromLatest bool
	asJSON     bool
}

var (
	errNoTask     = errors.New("no task given: pass a JSON file, - for stdin, or --task-id")
	errNoSnapshot = errors.New("no snapshot to route from")
)

// request builds the task from a JSON file, stdin ("-") or the flags.
func (f *taskFlags) request(cmd *cobra.Command, args []string) (domain.TaskRoutingRequest, error) {
	if len(args) == 1 {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return domain.TaskRoutingRequest{}, fmt.Errorf("reading task: %w", err)
		}
		return domain.ParseTaskRoutingRequest(data)
	}

	if f.taskID == "" {
		return domain.TaskRoutingRequest{}, errNoTask
	}
	raw := map[string]any{
		"task_id":           f.taskID,
		"title":             f.title,
		"category":          f.category,
		"bounty_usd":        f.bounty,
		"requires_physical": f.physical,
	}
	if len(f.evidence) > 0 {
		items := make([]any, len(f.evidence))
		for i, e := range f.evidence {
			items[i] = strings.TrimSpace(e)
		}
		raw["evidence_types"] = items
	}
	return domain.NewTaskRoutingRequest(raw)
}

func (f *taskFlags) options(cmd *cobra.Command) []routing.RouteOption {
	var opts []routing.RouteOption
	if len(f.exclude) > 0 {
		opts = append(opts, routing.WithExclude(f.exclude...))
	}
	if cmd.Flags().Changed("min-fitness") {
		opts = append(opts, routing.WithMinFitness(f.minFitness))
	}
	return opts
}

func newRouteCmd() *cobra.Command {
	var f taskFlags

	cmd := &cobra.Command{
		Use:   "route [task.json | -]",
		Short: "Route one task to the best-fit agent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(cmd, args)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if f.fromLatest {
				restored, err := rt.restoreLatest(cmd.Context())
				if err != nil {
					return err
				}
				if !restored {
					return errNoSnapshot
				}
			} else if _, err := rt.synth.Synthesize(cmd.Context()); err != nil {
				return err
			}

			d := rt.synth.Route(cmd.Context(), req, f.options(cmd)...)
			if f.asJSON {
				return writeIndented(cmd.OutOrStdout(), d)
			}
			fmt.Fprint(cmd.OutOrStdout(), routing.FormatDecision(d))
			return nil
		},
	}

	cmd.Flags().StringVar(&f.taskID, "task-id", "", "task identifier")
	cmd.Flags().StringVar(&f.title, "title", "", "task title")
	cmd.Flags().StringVar(&f.category, "category", "", "task category (default general)")
	cmd.Flags().Float64Var(&f.bounty, "bounty", 0, "task bounty in USD")
	cmd.Flags().BoolVar(&f.physical, "physical", false, "task needs physical presence")
	cmd.Flags().StringSliceVar(&f.evidence, "evidence", nil, "required evidence types")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "agent ids to leave out")
	cmd.Flags().Float64Var(&f.minFitness, "min-fitness", 0, "drop candidates below this fitness")
	cmd.Flags().BoolVar(&f.fromLatest, "latest", false, "route against the last saved snapshot")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the decision as JSON")
	return cmd
}
