package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"joyous/internal/config"
	appLog "joyous/internal/log"
	"joyous/internal/store"
	"joyous/internal/tz"
)

const usage = `usage: joyous [-config path] <command> [flags]

commands:
  init-calendar  create a top-level calendar
  export         write a calendar or event as iCalendar
  import         load an iCalendar file into a calendar
  sync           fetch and import every configured feed once
  serve          run the HTTP API and the feed scheduler
  occurrences    list occurrences in a date range
  describe       print a recurrence rule in words
`

// app is what every command needs, built once from the config.
type app struct {
	cfg      *config.Config
	store    *store.SQLite
	resolver *tz.Resolver
}

func main() {
	configPath := flag.String("config", "./joyous.yaml", "Path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", *configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Debug("effective config",
		"database", cfg.Database,
		"timezone", cfg.Timezone,
		"base_url", cfg.BaseURL,
		"feeds", len(cfg.Feeds),
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		appLog.Error("command failed", err, "command", flag.Arg(0))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}

	resolver, err := tz.NewResolver(cfg.Timezone)
	if err != nil {
		return err
	}
	st, err := store.OpenSQLite(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	a := &app{cfg: cfg, store: st, resolver: resolver}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return cmd(ctx, a, fs, args)
}
