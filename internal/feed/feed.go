// Package feed keeps calendars in step with remote iCalendar feeds: each
// configured feed is fetched on its own cron schedule and loaded into its
// calendar.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"joyous/internal/config"
	"joyous/internal/ics"
	appLog "joyous/internal/log"
	"joyous/internal/model"
	"joyous/internal/report"
	"joyous/internal/store"
)

// Fetcher downloads one feed.
type Fetcher interface {
	Fetch(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// Loader loads an iCalendar payload into a calendar.
type Loader interface {
	Load(ctx context.Context, cal *model.Container, data []byte) (*report.Report, error)
}

// Locks hands out one mutex per calendar. Loads into the same calendar
// must hold its lock; the scheduler and the HTTP import share one Locks.
type Locks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

// Lock blocks until the calendar is free and returns the unlock func.
func (l *Locks) Lock(calendarID int64) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = map[int64]*sync.Mutex{}
	}
	m, ok := l.m[calendarID]
	if !ok {
		m = &sync.Mutex{}
		l.m[calendarID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Scheduler runs feed imports.
type Scheduler struct {
	feeds   []config.FeedConfig
	store   store.Store
	fetcher Fetcher
	loader  Loader
	locks   *Locks

	cron *cron.Cron
}

// New validates the refresh schedules of feeds. Schedules are read in loc.
func New(feeds []config.FeedConfig, s store.Store, f Fetcher, l Loader, locks *Locks, loc *time.Location) (*Scheduler, error) {
	if locks == nil {
		locks = &Locks{}
	}
	if loc == nil {
		loc = time.Local
	}
	sc := &Scheduler{
		feeds:   feeds,
		store:   s,
		fetcher: f,
		loader:  l,
		locks:   locks,
		cron:    cron.New(cron.WithLocation(loc)),
	}
	for _, fc := range feeds {
		if _, err := cron.ParseStandard(fc.Refresh); err != nil {
			return nil, fmt.Errorf("feed %s: refresh %q: %w", fc.ID, fc.Refresh, err)
		}
	}
	return sc, nil
}

// Start registers every feed with the cron runner and starts it. Jobs run
// with ctx until Stop.
func (sc *Scheduler) Start(ctx context.Context) error {
	for _, fc := range sc.feeds {
		_, err := sc.cron.AddFunc(fc.Refresh, func() {
			if _, err := sc.Sync(ctx, fc); err != nil {
				appLog.Error("feed sync failed", err, "feed", fc.ID)
			}
		})
		if err != nil {
			return fmt.Errorf("feed %s: %w", fc.ID, err)
		}
		appLog.Info("feed scheduled", "feed", fc.ID, "calendar", fc.Calendar, "refresh", fc.Refresh)
	}
	sc.cron.Start()
	return nil
}

// Stop stops the cron runner and waits for running syncs, or for ctx.
func (sc *Scheduler) Stop(ctx context.Context) {
	done := sc.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("feed scheduler stop timed out")
	}
}

// Sync fetches one feed and loads it into its calendar.
func (sc *Scheduler) Sync(ctx context.Context, fc config.FeedConfig) (*report.Report, error) {
	cal, err := sc.store.ContainerByPath(ctx, store.NormalizePath(fc.Calendar))
	if err != nil {
		return nil, fmt.Errorf("feed %s: calendar %q: %w", fc.ID, fc.Calendar, err)
	}
	res, err := sc.fetcher.Fetch(ctx, ics.Source{ID: fc.ID, URL: fc.URL})
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", fc.ID, err)
	}

	unlock := sc.locks.Lock(cal.ID)
	defer unlock()
	rep, err := sc.loader.Load(ctx, cal, res.Body)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", fc.ID, err)
	}
	rep.Forward(logSink{feed: fc.ID})
	return rep, nil
}

// SyncAll syncs every feed once, in order, and joins the failures.
func (sc *Scheduler) SyncAll(ctx context.Context) error {
	var errs []error
	for _, fc := range sc.feeds {
		if _, err := sc.Sync(ctx, fc); err != nil {
			appLog.Error("feed sync failed", err, "feed", fc.ID)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// logSink writes report messages to the application log.
type logSink struct{ feed string }

func (s logSink) AddMessage(level report.Level, text string) {
	switch level {
	case report.Error:
		appLog.Error("feed report", errors.New(text), "feed", s.feed)
	case report.Warning:
		appLog.Warn("feed report", "feed", s.feed, "msg", text)
	default:
		appLog.Info("feed report", "feed", s.feed, "msg", text)
	}
}
