package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Seann-Moser/afisha/apiclient"
	"github.com/Seann-Moser/afisha/route"
	"github.com/Seann-Moser/afisha/session"
)

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session",
		Long: `Log in with email and password. The session is stored in the configured storage
and reused by later commands until logout or until the API rejects it.

The password may also be given in AFISHA_PASSWORD.

Examples:
  afisha login --email user@example.com --password Secret123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("AFISHA_PASSWORD")
			}
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				return errors.New("--password is required")
			}
			deps, err := c.newSession(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer deps.close()

			res := deps.manager.Login(cmd.Context(), email, password)
			if !res.Success {
				return errors.New(res.Error)
			}
			printUser(cmd, deps.manager.Status().User)
			fmt.Fprintf(cmd.OutOrStdout(), "Next: %s\n", res.Redirect)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.newSession(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer deps.close()

			deps.manager.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var req apiclient.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account. Registering does not log in.

Examples:
  afisha register --email user@example.com --password Secret123 --full-name "Ann Lee"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("AFISHA_PASSWORD")
			}
			deps, err := c.newSession(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer deps.close()

			res := deps.manager.Register(cmd.Context(), req)
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "display name")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Restore the stored session and show who is logged in",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.newSession(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer deps.close()

			st := deps.manager.Restore(cmd.Context())
			if !st.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			printUser(cmd, st.User)
			return nil
		},
	}
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Ask the API whether the stored session is still valid",
		Long: `Check re-validates the stored session without restoring it first. A rejected
session is reported but left in storage; run logout to remove it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.newSession(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer deps.close()

			res := deps.manager.CheckSession(cmd.Context())
			if !res.Success {
				return errors.New(res.Error)
			}
			if u, ok := res.Data.(*session.User); ok {
				printUser(cmd, u)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session is valid.")
			return nil
		},
	}
}

func (c *cli) openCmd() *cobra.Command {
	var marker string
	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Show where a page load for path would end up",
		Long: `Open boots the app shell at path: it restores the stored session, replays a
recovered deep link if --marker is set, applies the route guard and prints every
navigation followed by the final decision.

Examples:
  afisha open /events
  afisha open / --marker /notifications`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.newSession(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer deps.close()

			if marker != "" {
				if err := deps.transient.MarkRedirect(cmd.Context(), marker); err != nil {
					return err
				}
			}
			history := &route.History{}
			shell := route.NewShell(deps.manager, deps.transient, history,
				route.WithLoginPath(c.cfg.Session.LoginPath),
				route.WithLogger(c.log),
			)
			defer shell.Close()

			d := shell.Boot(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			for _, e := range history.Entries() {
				fmt.Fprintf(out, "%s %s\n", e.Action, e.Path)
			}
			fmt.Fprintln(out, d)
			if target, ok, err := deps.transient.ReturnTo(cmd.Context()); err == nil && ok {
				fmt.Fprintf(out, "after login: %s\n", target)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&marker, "marker", "", "deep link left by the entry shim")
	return cmd
}

func printUser(cmd *cobra.Command, u *session.User) {
	if u == nil {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n", u.Email, u.FullName, u.Role)
}
