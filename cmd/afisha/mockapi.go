package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Seann-Moser/afisha/apitest"
)

func (c *cli) mockAPICmd() *cobra.Command {
	var (
		addr  string
		users []string
	)
	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Run an in-memory stand-in for the afisha API",
		Long: `mock-api serves POST /register, POST /login and GET /login from memory, for local
development against serve and the session commands.

Examples:
  afisha mock-api --addr :8081 --user demo@example.com:Demo1234`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api := apitest.NewServer(c.log)
			for _, u := range users {
				email, password, ok := strings.Cut(u, ":")
				if !ok || email == "" || password == "" {
					return fmt.Errorf("invalid --user %q, want email:password", u)
				}
				api.AddUser(email, password, email, apitest.RoleUser)
			}
			srv := &http.Server{Addr: addr, Handler: api.Router(), ReadHeaderTimeout: 10 * time.Second}

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				c.log.WithField("addr", addr).Info("mock api listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(ctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8081", "listen address")
	cmd.Flags().StringSliceVar(&users, "user", nil, "seed account as email:password (repeatable)")
	return cmd
}
