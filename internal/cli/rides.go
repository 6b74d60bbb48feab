package cli

import (
	"context"
	"strings"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/region"
	"pelotourney-cli/internal/rides"
	"pelotourney-cli/internal/submit"

	"github.com/spf13/cobra"
)

type rideRow struct {
	model.Ride
	Instructor model.Instructor `json:"instructor"`
}

func newRidesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rides",
		Short: "Ride commands",
	}
	cmd.AddCommand(newRidesAttachedCmd(app))
	cmd.AddCommand(newRidesFiltersCmd(app))
	cmd.AddCommand(newRidesListCmd(app))
	cmd.AddCommand(newRidesAddCmd(app))
	cmd.AddCommand(newRidesDeleteCmd(app))
	return cmd
}

func (s *session) refresher() *rides.Refresher {
	return rides.NewRefresher(s.client,
		rides.WithTimeout(s.cfg.RequestTimeout),
		rides.WithJoinPolicy(s.policy),
		rides.WithLogger(s.log),
	)
}

func newRidesAttachedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "attached",
		Short: "List rides attached to the tournament",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			st, err := s.client.State(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			rows, err := rides.Join(model.RideList{Data: st.Rides, Instructors: st.Instructors}, s.policy, s.log)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": toRideRows(rows)})
		},
	}
}

func newRidesFiltersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "Show the instructor and duration filter options",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			f, err := s.client.ListRideFilters(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": f.Filters})
		},
	}
}

func newRidesListCmd(app *App) *cobra.Command {
	var instructor, duration string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse the ride catalog, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			rows, filter, err := browseRides(cmd.Context(), rides.NewController(s.refresher()), instructor, duration)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": toRideRows(rows),
				"meta": map[string]any{"filter": filter},
			})
		},
	}

	cmd.Flags().StringVar(&instructor, "instructor", "", "Instructor id")
	cmd.Flags().StringVar(&duration, "duration", "", "Duration in seconds")
	return cmd
}

// browseRides drives the same cascade as the add-ride modal: populate the
// axes once, apply each selection, and keep only the newest result.
func browseRides(ctx context.Context, c *rides.Controller, instructor, duration string) ([]rides.Row, model.RideFilter, error) {
	var last *rides.Request
	step := c.Open()
	if step.LoadOptions {
		step = c.OptionsLoaded(c.LoadOptions(ctx))
	}
	if step.Refresh != nil {
		last = step.Refresh
	}
	reg := c.Refresher().Region()
	if c.State() != rides.Ready {
		return nil, model.RideFilter{}, reg.Err()
	}

	for _, sel := range []struct{ axis, value string }{
		{model.AxisInstructor, instructor},
		{model.AxisDuration, duration},
	} {
		step, err := c.Select(sel.axis, sel.value)
		if err != nil {
			return nil, model.RideFilter{}, err
		}
		if step.Refresh != nil {
			last = step.Refresh
		}
	}
	if last == nil {
		return nil, c.Snapshot(), nil
	}
	c.Apply(c.Refresher().Fetch(ctx, *last))
	if reg.State() == region.Failed {
		return nil, c.Snapshot(), reg.Err()
	}
	return reg.Value(), c.Snapshot(), nil
}

func toRideRows(rows []rides.Row) []rideRow {
	out := make([]rideRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, rideRow{Ride: r.Ride, Instructor: r.Instructor})
	}
	return out
}

func newRidesAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <ride-id>",
		Short: "Attach a ride to the tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRideCommand(cmd, app, submit.CmdRideAdd, args[0])
		},
	}
}

func newRidesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ride-id>",
		Short: "Detach a ride from the tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRideCommand(cmd, app, submit.CmdRideDelete, args[0])
		},
	}
}

func runRideCommand(cmd *cobra.Command, app *App, name, rideID string) error {
	s, err := openSession(cmd, app, false)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()

	nav, err := s.submit(cmd.Context(), model.FragmentRides, submit.Command{Name: name, RideID: strings.TrimSpace(rideID)})
	if err != nil {
		return writeErr(cmd, err)
	}
	rows, err := rides.Join(model.RideList{Data: nav.state.Rides, Instructors: nav.state.Instructors}, s.policy, s.log)
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, map[string]any{"data": toRideRows(rows), "meta": nav.meta()})
}
