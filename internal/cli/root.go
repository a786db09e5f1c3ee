// Package cli implements munadmin, the operator command line.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iliyamo/munreg/internal/app"
)

// Options are the process hooks the commands run against.
type Options struct {
	// Open builds the application. It is called once per command.
	Open         func(ctx context.Context) (*app.App, error)
	Out          io.Writer
	In           io.Reader
	ReadPassword func() ([]byte, error)
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// NewRootCmd returns the munadmin command tree.
func NewRootCmd(o Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "munadmin",
		Short:         "Operate the MUN registration service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(o.Out)
	root.AddCommand(migrateCmd(o))
	root.AddCommand(committeesCmd(o))
	root.AddCommand(usersCmd(o))
	root.AddCommand(rateCmd(o))
	return root
}

// withApp opens the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, o Options, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.Open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// confirm asks a yes/no question on In. Only "y" and "yes" agree.
func confirm(o Options, prompt string) bool {
	fmt.Fprintf(o.Out, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(o.In).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func migrateCmd(o Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, o, func(context.Context, *app.App) error {
				fmt.Fprintln(o.Out, green("✓"), "schema up to date")
				return nil
			})
		},
	}
}
