package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Seann-Moser/afisha"
	"github.com/Seann-Moser/afisha/config"
	"github.com/Seann-Moser/afisha/storage"
)

const shutdownTimeout = 15 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Host the web app behind the session guard",
		Long: `Serve hosts the web app. Every page load restores the session from cookies, replays
deep links recovered by the entry shim and sends anonymous visitors on protected pages
to the login page.

With storage.driver redis or mongo, credentials are kept in the backend under a
per-browser device id instead of in cookies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateServer(); err != nil {
				return err
			}
			handler, closeFn, err := c.buildServer(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return c.listen(cmd.Context(), handler)
		},
	}
}

func (c *cli) buildServer(ctx context.Context) (http.Handler, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []afisha.Option{afisha.WithLogger(c.log), afisha.WithRegistry(reg)}
	closeFn := func() {}
	switch c.cfg.Storage.Driver {
	case config.DriverRedis:
		_, client, err := storage.NewRedisFromURL(ctx, c.cfg.Storage.RedisURL, "")
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { client.Close() }
		opts = append(opts, afisha.WithDeviceScoped(func(device string) storage.KV {
			return storage.NewRedis(client, "afisha:"+device+":")
		}))
	case config.DriverMongo:
		coll, closeMongo, err := c.mongoCollection(ctx)
		if err != nil {
			return nil, nil, err
		}
		closeFn = closeMongo
		opts = append(opts, afisha.WithDeviceScoped(func(device string) storage.KV {
			return storage.NewMongo(coll, device)
		}))
	default:
		c.log.WithField("driver", c.cfg.Storage.Driver).Info("keeping credentials in cookies")
	}

	app, err := afisha.New(afisha.Options{
		APIBaseURL:     c.cfg.API.BaseURL,
		APITimeout:     c.cfg.API.Timeout,
		RestoreTimeout: c.cfg.Session.RestoreTimeout,
		LandingPath:    c.cfg.Session.LandingPath,
		LoginPath:      c.cfg.Session.LoginPath,
		EntryPath:      c.cfg.Server.EntryPath,
		ShimDeepLinks:  c.cfg.Server.ShimDeepLinks,
		CookieSecret:   []byte(c.cfg.Server.CookieSecret),
		CookieDomain:   c.cfg.Server.CookieDomain,
	}, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	var pages http.Handler = http.HandlerFunc(afisha.StatusPage)
	var public []string
	if dir := c.cfg.Server.StaticDir; dir != "" {
		pages = spaHandler{staticPath: dir, indexPath: "index.html"}
		public = []string{"/assets/", "/favicon.ico"}
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(app.Router(pages, public...))
	return r, closeFn, nil
}

func (c *cli) listen(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              c.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.log.WithField("addr", srv.Addr).Info("serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		c.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
