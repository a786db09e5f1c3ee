package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/iliyamo/munreg/internal/app"
)

func rateCmd(o Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate [value]",
		Short: "Show or set the exchange rate used on receipts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, o, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					v, err := strconv.ParseFloat(args[0], 64)
					if err != nil {
						return errors.Errorf("invalid rate %q", args[0])
					}
					if err := a.Registrations.SetRate(ctx, v); err != nil {
						return err
					}
				}
				rate, err := a.Registrations.GetRate(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(o.Out, "rate: %.2f\n", rate)
				return nil
			})
		},
	}
	return cmd
}
