package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"joyous/internal/agenda"
	"joyous/internal/feed"
	"joyous/internal/ics"
	appLog "joyous/internal/log"
	"joyous/internal/model"
	"joyous/internal/recurrence"
	"joyous/internal/web"
)

type command func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error

var commands = map[string]command{
	"init-calendar": initCalendar,
	"export":        exportCmd,
	"import":        importCmd,
	"sync":          syncCmd,
	"serve":         serveCmd,
	"occurrences":   occurrencesCmd,
	"describe":      describeCmd,
}

func initCalendar(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	slug := fs.String("slug", "events", "URL slug of the calendar")
	title := fs.String("title", "Events", "Calendar title")
	desc := fs.String("description", "", "Calendar description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cal := &model.Container{Kind: model.CalendarContainer, Slug: *slug, Title: *title, Description: *desc}
	if err := a.store.CreateContainer(ctx, nil, cal); err != nil {
		return err
	}
	fmt.Printf("%d\t%s\n", cal.ID, cal.Path)
	return nil
}

func exportCmd(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	calPath := fs.String("calendar", "", "Calendar path to export, e.g. events")
	eventID := fs.Int64("event", 0, "Event ID to export instead of a calendar")
	out := fs.String("o", "-", "Output file, - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var root model.Node
	switch {
	case *eventID != 0:
		ev, err := a.store.Event(ctx, *eventID)
		if err != nil {
			return err
		}
		root = ev
	case *calPath != "":
		cal, err := a.store.ContainerByPath(ctx, *calPath)
		if err != nil {
			return err
		}
		root = cal
	default:
		return errors.New("export: -calendar or -event is required")
	}

	cal, err := ics.NewExporter(a.store, a.resolver).Export(ctx, root, ics.Request{BaseURL: a.cfg.BaseURL})
	if err != nil {
		return err
	}
	data := ics.Serialize(cal)
	if *out == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

func importCmd(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	calPath := fs.String("calendar", "events", "Calendar path to import into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("import: expected one file argument (- for stdin)")
	}
	var (
		data []byte
		err  error
	)
	if name := fs.Arg(0); name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return err
	}

	cal, err := a.store.ContainerByPath(ctx, *calPath)
	if err != nil {
		return err
	}
	rep, err := ics.NewImporter(a.store, a.resolver).Load(ctx, cal, data)
	if err != nil {
		return err
	}
	fmt.Println(rep.String())
	if rep.HasErrors() {
		return errors.New("import finished with errors")
	}
	return nil
}

func (a *app) scheduler(locks *feed.Locks) (*feed.Scheduler, error) {
	fetcher := ics.NewFetcher(a.cfg.CacheDir, nil)
	importer := ics.NewImporter(a.store, a.resolver)
	return feed.New(a.cfg.Feeds, a.store, fetcher, importer, locks, a.resolver.Default())
}

func syncCmd(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	sc, err := a.scheduler(nil)
	if err != nil {
		return err
	}
	return sc.SyncAll(ctx)
}

func serveCmd(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	listen := fs.String("listen", "", "HTTP listen address (overrides config if set)")
	noFeeds := fs.Bool("no-feeds", false, "Do not run the feed scheduler")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *listen != "" {
		a.cfg.Listen = *listen
	}

	locks := &feed.Locks{}
	if !*noFeeds && len(a.cfg.Feeds) > 0 {
		sc, err := a.scheduler(locks)
		if err != nil {
			return err
		}
		if err := sc.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sc.Stop(stopCtx)
		}()
	}

	err := web.NewServer(a.cfg, a.store, a.resolver, locks).ListenAndServe(ctx)
	appLog.Info("joyous exiting")
	return err
}

func occurrencesCmd(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	calPath := fs.String("calendar", "events", "Calendar path")
	fromArg := fs.String("from", "", "First day, YYYY-MM-DD (default today)")
	days := fs.Int("days", 7, "Number of days to list")
	zone := fs.String("tz", "", "Display time zone (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loc := a.resolver.Default()
	if *zone != "" {
		var err error
		if loc, err = a.resolver.Resolve(*zone); err != nil {
			return err
		}
	}
	from := time.Now().In(loc)
	if *fromArg != "" {
		d, err := time.ParseInLocation(time.DateOnly, *fromArg, loc)
		if err != nil {
			return fmt.Errorf("occurrences: -from: %w", err)
		}
		from = d
	}
	y, m, d := from.Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, loc)

	cal, err := a.store.ContainerByPath(ctx, *calPath)
	if err != nil {
		return err
	}
	occs, err := agenda.New(a.store, a.resolver).Between(ctx, cal, from, from.AddDate(0, 0, *days), loc)
	if err != nil {
		return err
	}
	for _, o := range occs {
		when := o.Start.Format("2006-01-02 15:04")
		if o.AllDay {
			when = o.Start.Format(time.DateOnly) + " all day"
		}
		note := ""
		if o.Override != 0 {
			note = " (" + o.Override.String() + ")"
		}
		fmt.Printf("%s\t%s%s\t%s\n", when, o.Title, note, a.cfg.BaseURL+o.Path)
	}
	return nil
}

func describeCmd(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	eventID := fs.Int64("event", 0, "Describe the rule of a stored event")
	rrule := fs.String("rrule", "", "RRULE value, e.g. FREQ=WEEKLY;BYDAY=MO")
	start := fs.String("start", "", "Rule start date, YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var rule *recurrence.Rule
	switch {
	case *eventID != 0:
		ev, err := a.store.Event(ctx, *eventID)
		if err != nil {
			return err
		}
		if ev.Rule == nil {
			return fmt.Errorf("describe: event %d does not repeat", ev.ID)
		}
		rule = ev.Rule
	case *rrule != "":
		day := time.Now().In(a.resolver.Default())
		if *start != "" {
			d, err := time.Parse(time.DateOnly, *start)
			if err != nil {
				return fmt.Errorf("describe: -start: %w", err)
			}
			day = d
		}
		value := *rrule
		if !strings.Contains(strings.ToUpper(value), "WKST=") && a.cfg.WeekStart == "sunday" {
			value += ";WKST=SU"
		}
		var err error
		if rule, err = recurrence.ParseRRULE(value, day, a.resolver.Default()); err != nil {
			return err
		}
	default:
		return errors.New("describe: -event or -rrule is required")
	}

	fmt.Println(rule.Describe())
	fmt.Println(rule.String())
	return nil
}
