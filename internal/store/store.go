// Package store is the data access layer used by the exporter, importer,
// agenda and web packages. Two implementations are provided: an in-memory
// store and a SQLite store.
package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"joyous/internal/model"
)

var (
	// ErrNotFound is returned by lookups by ID or path.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a UID or an override date is taken.
	ErrDuplicate = errors.New("store: duplicate")
	// ErrInvalid is returned for records missing required fields.
	ErrInvalid = errors.New("store: invalid record")
)

// Store gives read/write access to the page tree, events and overrides.
//
// FindEventByUID and FindOverride return (nil, nil) when nothing matches.
// Create methods fill in ID, Slug (from the title when empty), Path,
// Revision (1), Created and Modified. Update methods bump Revision and
// Modified.
type Store interface {
	CreateContainer(ctx context.Context, parent *model.Container, c *model.Container) error
	CreatePage(ctx context.Context, parent *model.Container, p *model.Page) error
	Container(ctx context.Context, id int64) (*model.Container, error)
	ContainerByPath(ctx context.Context, path string) (*model.Container, error)
	Containers(ctx context.Context) ([]*model.Container, error)
	// Children lists the direct children of parent: containers and pages
	// first, then events, each in creation order.
	Children(ctx context.Context, parent *model.Container) ([]model.Node, error)

	Event(ctx context.Context, id int64) (*model.Event, error)
	FindEventByUID(ctx context.Context, uid string) (*model.Event, error)
	CreateEvent(ctx context.Context, parent *model.Container, ev *model.Event) error
	UpdateEvent(ctx context.Context, ev *model.Event) error
	// DeleteEvent removes the event and its overrides.
	DeleteEvent(ctx context.Context, ev *model.Event) error

	FindOverride(ctx context.Context, ev *model.Event, exceptDate time.Time) (*model.Override, error)
	CreateOverride(ctx context.Context, ev *model.Event, o *model.Override) error
	UpdateOverride(ctx context.Context, o *model.Override) error
	DeleteOverride(ctx context.Context, o *model.Override) error
	// Overrides lists the overrides of ev in creation order.
	Overrides(ctx context.Context, ev *model.Event) ([]*model.Override, error)

	// Atomic runs fn so that its writes are applied together or not at
	// all. Nested calls join the outer unit.
	Atomic(ctx context.Context, fn func(tx Store) error) error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) timestamp() time.Time {
	return o.now().UTC().Truncate(time.Second)
}

var slugStrip = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a title into a URL slug: "Mini-Fair & Garage Sale" becomes
// "mini-fair-garage-sale".
func Slugify(title string) string {
	plain, _, err := transform.String(slugStrip, title)
	if err != nil {
		plain = title
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "event"
	}
	return slug
}

// uniqueSlug appends -2, -3, ... until taken reports false.
func uniqueSlug(base string, taken func(string) bool) string {
	slug := base
	for i := 2; taken(slug); i++ {
		slug = base + "-" + strconv.Itoa(i)
	}
	return slug
}

func childPath(parentPath, slug string) string {
	if parentPath == "" {
		parentPath = "/"
	}
	return strings.TrimRight(parentPath, "/") + "/" + slug + "/"
}

// NormalizePath accepts "events", "/events" or "/events/".
func NormalizePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
}

func prepareEvent(o options, parent *model.Container, ev *model.Event) error {
	if parent == nil {
		return errors.Join(ErrInvalid, errors.New("event needs a parent container"))
	}
	switch ev.Kind {
	case model.SimpleEvent:
	case model.RecurringEvent:
		if ev.Rule == nil {
			return errors.Join(ErrInvalid, errors.New("recurring event needs a rule"))
		}
	default:
		return errors.Join(ErrInvalid, errors.New("unknown event kind "+ev.Kind.String()))
	}
	if ev.UID == "" {
		ev.UID = uuid.NewString()
	}
	if ev.Slug == "" {
		ev.Slug = Slugify(ev.Title)
	}
	ev.CalendarID = parent.ID
	now := o.timestamp()
	ev.Revision = 1
	if ev.Created.IsZero() {
		ev.Created = now
	}
	ev.Modified = now
	return nil
}

func prepareOverride(o options, ev *model.Event, ov *model.Override) error {
	if ev == nil || ev.Kind != model.RecurringEvent {
		return errors.Join(ErrInvalid, errors.New("overrides belong to recurring events"))
	}
	if ov.ExceptDate.IsZero() {
		return errors.Join(ErrInvalid, errors.New("override needs an except date"))
	}
	ov.ExceptDate = dateOnly(ov.ExceptDate)
	if ov.Slug == "" {
		ov.Slug = model.OverrideSlug(ov.Kind, ov.ExceptDate)
	}
	if ov.Title == "" {
		ov.Title = model.OverrideTitle(ov.Kind, ov.ExceptDate)
	}
	ov.EventID = ev.ID
	now := o.timestamp()
	ov.Revision = 1
	if ov.Created.IsZero() {
		ov.Created = now
	}
	ov.Modified = now
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
