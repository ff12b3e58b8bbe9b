package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Seann-Moser/afisha/apiclient"
	"github.com/Seann-Moser/afisha/auth"
	"github.com/Seann-Moser/afisha/config"
	"github.com/Seann-Moser/afisha/session"
	"github.com/Seann-Moser/afisha/storage"
)

// cli is the state shared by every command.
type cli struct {
	configPath string
	cfg        *config.Config
	log        *logrus.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "afisha",
		Short: "Session tooling for the afisha event platform",
		Long: `afisha signs in to the afisha API, keeps the session between runs and hosts the
web app behind the session guard.

Settings come from an optional YAML file and AFISHA_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = cfg.Logger()
			c.log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (YAML)")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.registerCmd(),
		c.whoamiCmd(),
		c.checkCmd(),
		c.openCmd(),
		c.serveCmd(),
		c.mockAPICmd(),
	)
	return root
}

// openStore opens the durable credential store. The returned func releases it.
func (c *cli) openStore(ctx context.Context) (storage.KV, func(), error) {
	s := c.cfg.Storage
	switch s.Driver {
	case config.DriverMemory:
		return storage.NewMemory(), func() {}, nil
	case config.DriverFile:
		return storage.NewFile(s.FilePath), func() {}, nil
	case config.DriverRedis:
		kv, client, err := storage.NewRedisFromURL(ctx, s.RedisURL, "afisha:cli:")
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { client.Close() }, nil
	case config.DriverMongo:
		coll, closeFn, err := c.mongoCollection(ctx)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewMongo(coll, "cli"), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", s.Driver)
	}
}

func (c *cli) mongoCollection(ctx context.Context) (*mongo.Collection, func(), error) {
	s := c.cfg.Storage
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			c.log.WithError(err).Warn("failed to disconnect from mongo")
		}
	}
	return client.Database(s.MongoDatabase).Collection(s.MongoCollection), closeFn, nil
}

// sessionDeps is the wiring of one command run. The transient store lives in memory, so a
// pending redirect never outlives the process.
type sessionDeps struct {
	tokens    *session.TokenStore
	transient *session.Transient
	client    *apiclient.Client
	manager   *auth.Manager
	close     func()
}

func (c *cli) newSession(ctx context.Context, out io.Writer) (*sessionDeps, error) {
	kv, closeFn, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	tokens := session.NewTokenStore(kv)
	transient := session.NewTransient(storage.NewMemory())
	client, err := apiclient.New(c.cfg.API.BaseURL, tokens,
		apiclient.WithLogger(c.log),
		apiclient.WithTimeout(c.cfg.API.Timeout),
	)
	if err != nil {
		closeFn()
		return nil, err
	}
	manager := auth.NewManager(client, tokens, transient,
		auth.WithLogger(c.log),
		auth.WithNotifier(printNotifier(out)),
		auth.WithRestoreTimeout(c.cfg.Session.RestoreTimeout),
		auth.WithLandingPath(c.cfg.Session.LandingPath),
	)
	return &sessionDeps{tokens: tokens, transient: transient, client: client, manager: manager, close: closeFn}, nil
}

// printNotifier prints info notifications. Failures come back as command errors instead.
func printNotifier(out io.Writer) auth.Notifier {
	return auth.NotifierFunc(func(_ context.Context, n auth.Notification) {
		if n.Level == auth.LevelInfo {
			fmt.Fprintln(out, n.Message)
		}
	})
}
