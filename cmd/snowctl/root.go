package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanChat/ubiquitous-octo-pancake/auth"
	"github.com/IshaanChat/ubiquitous-octo-pancake/bootstrap"
	"github.com/IshaanChat/ubiquitous-octo-pancake/config"
	"github.com/IshaanChat/ubiquitous-octo-pancake/httpclient"
	"github.com/IshaanChat/ubiquitous-octo-pancake/logger"
	"github.com/IshaanChat/ubiquitous-octo-pancake/observability"
	"github.com/IshaanChat/ubiquitous-octo-pancake/redis"
	"github.com/IshaanChat/ubiquitous-octo-pancake/version"
)

type rootOptions struct {
	configFile string
	envFile    string
	verbose    bool
	appOpts    []bootstrap.Option
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Rate-limited, retrying client for the ServiceNow REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (default: ./config.yml, ./config/config.yml or the user config dir)")
	f.StringVar(&opts.envFile, "env-file", "", ".env file loaded before reading the environment")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newRequestCommand(opts),
		newStreamCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the snowctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), appName, version.String())
			return err
		},
	}
}

func loadConfig(opts *rootOptions) (*AppConfig, error) {
	loaderOpts := []config.LoaderOption{config.WithEnvAliases(envAliases)}
	if opts.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(opts.configFile))
	}
	if opts.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(opts.envFile))
	}

	var cfg AppConfig
	if err := config.LoadConfig(appName, &cfg, loaderOpts...); err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}
	return &cfg, nil
}

// withClient loads the configuration, starts the components and runs task
// with the started client. Components are stopped when task returns.
func withClient(ctx context.Context, opts *rootOptions, task func(ctx context.Context, client *httpclient.Client) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	app, err := bootstrap.NewApp(cfg, opts.appOpts...)
	if err != nil {
		return err
	}

	shutdown, err := observability.Init(ctx, cfg.Observability)
	if err != nil {
		return err
	}
	app.OnStop(func(ctx context.Context) error { return shutdown(ctx) })

	provider, err := auth.NewProvider(cfg.Auth, auth.WithLogger(app.Logger.WithComponent("auth")))
	if err != nil {
		return err
	}
	clientOpts := []httpclient.Option{
		httpclient.WithAuth(provider),
		httpclient.WithLogger(app.Logger.WithComponent("httpclient")),
	}
	if cfg.Observability.Enabled {
		metrics, err := observability.NewClientMetrics(observability.Meter(appName))
		if err != nil {
			return err
		}
		clientOpts = append(clientOpts, httpclient.WithMetrics(metrics))
	}

	if cfg.Redis.Enabled {
		rc := redis.NewComponent(cfg.Redis, app.Logger)
		if err := app.RegisterComponent(rc); err != nil {
			return err
		}
		window := cfg.HTTP.RateLimit
		window.OnLimit = func(name string, wait time.Duration) {
			app.Logger.Debug("shared rate limit reached, waiting", logger.Fields("limiter", name, logger.FieldDelay, wait.Milliseconds()))
		}
		clientOpts = append(clientOpts, httpclient.WithLimiter(rc.Limiter(window)))
	}

	hc := httpclient.NewComponent(cfg.HTTP, clientOpts...)
	if err := app.RegisterComponent(hc); err != nil {
		return err
	}

	return app.RunTask(ctx, func(ctx context.Context) error {
		return task(ctx, hc.Client())
	})
}
