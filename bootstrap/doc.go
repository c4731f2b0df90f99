// Package bootstrap runs a finite task inside a uniform lifecycle:
// validate config, initialize logging, start components, run the task,
// stop components in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(redis.NewComponent(cfg.Redis, app.Logger))
//	err = app.RunTask(ctx, func(ctx context.Context) error { ... })
//
// SIGINT and SIGTERM cancel the task's context.
package bootstrap
