package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/iliyamo/munreg/internal/app"
	"github.com/iliyamo/munreg/internal/service"
	"github.com/iliyamo/munreg/internal/validation"
)

func usersCmd(o Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user profiles and accounts",
	}
	cmd.AddCommand(usersListCmd(o), usersPromoteCmd(o), usersSetPasswordCmd(o))
	return cmd
}

func usersListCmd(o Options) *cobra.Command {
	var q service.UserQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validation.Struct(q); err != nil {
				return err
			}
			return withApp(cmd, o, func(ctx context.Context, a *app.App) error {
				users, err := a.Users.List(ctx, q)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(o.Out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tEMAIL\tINSTITUTION\tROLES")
				for _, p := range users {
					var roles []string
					if p.IsAdmin {
						roles = append(roles, yellow("admin"))
					}
					if p.IsFaculty {
						roles = append(roles, "faculty")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.FullName(), p.Email, p.Institution, strings.Join(roles, ","))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(o.Out, "\n%d shown\n", len(users))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q.Search, "search", "s", "", "match name, email or institution")
	f.StringVar(&q.Role, "role", "", "all, user, faculty or admin")
	f.StringVar(&q.Institution, "institution", "", "exact institution, case-insensitive")
	f.StringVar(&q.Sort, "sort", "", "newest, oldest, alphabetical or reverse-alphabetical")
	return cmd
}

func usersPromoteCmd(o Options) *cobra.Command {
	var (
		id     string
		revoke bool
	)
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Grant or revoke the admin role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, o, func(ctx context.Context, a *app.App) error {
				if err := a.Users.SetAdmin(ctx, id, !revoke); err != nil {
					return errors.Wrapf(err, "user %s", id)
				}
				p, err := a.Users.Get(ctx, id)
				if err != nil {
					return err
				}
				verb := "is now an admin"
				if revoke {
					verb = "is no longer an admin"
				}
				fmt.Fprintf(o.Out, "%s %s <%s> %s (applies from the next login)\n", green("✓"), p.FullName(), p.Email, verb)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the admin role instead")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func usersSetPasswordCmd(o Options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Set a user's password; it is prompted for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(o.Out, "New password: ")
			pwd, err := o.ReadPassword()
			fmt.Fprintln(o.Out)
			if err != nil {
				return errors.Wrap(err, "read password")
			}
			if len(pwd) == 0 {
				return errors.New("empty password")
			}
			return withApp(cmd, o, func(ctx context.Context, a *app.App) error {
				if err := a.Auth.SetPassword(ctx, email, string(pwd)); err != nil {
					return err
				}
				fmt.Fprintf(o.Out, "%s password updated, sessions of %s signed out\n", green("✓"), email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
