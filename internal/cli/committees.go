package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/iliyamo/munreg/internal/app"
	"github.com/iliyamo/munreg/internal/service"
)

func committeesCmd(o Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "committees",
		Short: "Inspect committees and maintain their seats",
	}
	cmd.AddCommand(committeesStatsCmd(o), committeesSetAllCmd(o), committeesToggleCmd(o))
	return cmd
}

func committeesStatsCmd(o Options) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show seat statistics per committee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, o, func(ctx context.Context, a *app.App) error {
				ov, err := a.Seats.Overview(ctx, search)
				if err != nil {
					return errors.Wrap(err, "load committees")
				}
				w := tabwriter.NewWriter(o.Out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSEATS\tAVAILABLE\tOCCUPIED\tREVISION")
				for _, c := range ov.Committees {
					avail := fmt.Sprint(c.Stats.Available)
					if c.Stats.Total > 0 && c.Stats.Available == 0 {
						avail = red(avail)
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%d\n", c.ID, c.Name, c.Stats.Total, avail, c.Stats.Occupied, c.Revision)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				st := ov.Stats
				fmt.Fprintf(o.Out, "\n%d committees, %d seats (%d declared): %s available, %d occupied\n",
					st.Committees, st.Total, st.Declared, green(st.Available), st.Occupied)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by name, topic or president")
	return cmd
}

func committeesSetAllCmd(o Options) *cobra.Command {
	var (
		id        string
		available bool
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "set-all",
		Short: "Mark every seat of a committee available or occupied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, o, func(ctx context.Context, a *app.App) error {
				c, err := a.Seats.SetAll(ctx, id, available, yes, nil)
				var ce *service.ConfirmationError
				if errors.As(err, &ce) {
					if !confirm(o, ce.Prompt) {
						fmt.Fprintln(o.Out, yellow("aborted"))
						return nil
					}
					c, err = a.Seats.SetAll(ctx, id, available, true, nil)
				}
				if err != nil {
					return err
				}
				st := c.Stats()
				fmt.Fprintf(o.Out, "%s %s: %d available, %d occupied (revision %d)\n",
					green("✓"), c.Name, st.Available, st.Occupied, c.Revision)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "committee id")
	cmd.Flags().BoolVar(&available, "available", false, "mark seats available instead of occupied")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func committeesToggleCmd(o Options) *cobra.Command {
	var (
		id    string
		index int
	)
	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Flip one seat between available and occupied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, o, func(ctx context.Context, a *app.App) error {
				c, err := a.Seats.Toggle(ctx, id, index, nil)
				if err != nil {
					return err
				}
				state := red("occupied")
				if c.SeatsList[index].Available {
					state = green("available")
				}
				fmt.Fprintf(o.Out, "%s is now %s\n", c.SeatLabel(c.SeatsList[index].Name), state)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "committee id")
	cmd.Flags().IntVar(&index, "index", -1, "seat position")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}
