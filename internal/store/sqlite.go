package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"joyous/internal/model"
	"joyous/internal/recurrence"
)

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db   *sqlx.DB
	q    sqlx.ExtContext
	inTx bool
	opts options
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	// One connection: SQLite serialises writers anyway, and each
	// connection to ":memory:" would see its own database.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, q: db, opts: buildOptions(opts)}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type containerRow struct {
	ID          int64         `db:"id"`
	ParentID    sql.NullInt64 `db:"parent_id"`
	Kind        string        `db:"kind"`
	Slug        string        `db:"slug"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	Path        string        `db:"path"`
	Created     time.Time     `db:"created"`
}

const containerColumns = `id, parent_id, kind, slug, title, description, path, created`

func (r containerRow) node() (model.Node, error) {
	if r.Kind == "page" {
		return &model.Page{ID: r.ID, ParentID: r.ParentID.Int64, Slug: r.Slug, Title: r.Title, Path: r.Path}, nil
	}
	return r.container()
}

func (r containerRow) container() (*model.Container, error) {
	var kind model.ContainerKind
	switch r.Kind {
	case "calendar":
		kind = model.CalendarContainer
	case "group":
		kind = model.GroupContainer
	default:
		return nil, fmt.Errorf("container %d has kind %q", r.ID, r.Kind)
	}
	return &model.Container{
		ID:          r.ID,
		ParentID:    r.ParentID.Int64,
		Kind:        kind,
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
		Path:        r.Path,
		Created:     r.Created.UTC(),
	}, nil
}

type eventRow struct {
	ID         int64          `db:"id"`
	Kind       string         `db:"kind"`
	CalendarID int64          `db:"calendar_id"`
	UID        string         `db:"uid"`
	Slug       string         `db:"slug"`
	Path       string         `db:"path"`
	Title      string         `db:"title"`
	Details    string         `db:"details"`
	Location   string         `db:"location"`
	Website    string         `db:"website"`
	TZ         string         `db:"tz"`
	Date       string         `db:"date"`
	TimeFrom   sql.NullString `db:"time_from"`
	TimeTo     sql.NullString `db:"time_to"`
	Repeat     string         `db:"repeat"`
	Revision   int            `db:"revision"`
	Created    time.Time      `db:"created"`
	Modified   time.Time      `db:"modified"`
}

const eventColumns = `id, kind, calendar_id, uid, slug, path, title, details, location, website,
	tz, date, time_from, time_to, repeat, revision, created, modified`

func eventToRow(ev *model.Event) eventRow {
	r := eventRow{
		ID:         ev.ID,
		Kind:       ev.Kind.String(),
		CalendarID: ev.CalendarID,
		UID:        ev.UID,
		Slug:       ev.Slug,
		Path:       ev.Path,
		Title:      ev.Title,
		Details:    ev.Details,
		Location:   ev.Location,
		Website:    ev.Website,
		TZ:         ev.TZ,
		Date:       formatDate(ev.Date),
		TimeFrom:   formatClock(ev.TimeFrom),
		TimeTo:     formatClock(ev.TimeTo),
		Revision:   ev.Revision,
		Created:    ev.Created.UTC(),
		Modified:   ev.Modified.UTC(),
	}
	if ev.Rule != nil {
		r.Repeat = ev.Rule.String()
	}
	return r
}

func (r eventRow) event() (*model.Event, error) {
	ev := &model.Event{
		ID:         r.ID,
		CalendarID: r.CalendarID,
		UID:        r.UID,
		Slug:       r.Slug,
		Path:       r.Path,
		Title:      r.Title,
		Details:    r.Details,
		Location:   r.Location,
		Website:    r.Website,
		TZ:         r.TZ,
		Revision:   r.Revision,
		Created:    r.Created.UTC(),
		Modified:   r.Modified.UTC(),
	}
	switch r.Kind {
	case "simple":
		ev.Kind = model.SimpleEvent
	case "recurring":
		ev.Kind = model.RecurringEvent
		rule, err := recurrence.Parse(r.Repeat)
		if err != nil {
			return nil, fmt.Errorf("event %d repeat: %w", r.ID, err)
		}
		ev.Rule = rule
	default:
		return nil, fmt.Errorf("event %d has kind %q", r.ID, r.Kind)
	}
	var err error
	if ev.Date, err = parseDate(r.Date); err != nil {
		return nil, fmt.Errorf("event %d date: %w", r.ID, err)
	}
	if ev.TimeFrom, err = parseClock(r.TimeFrom); err != nil {
		return nil, fmt.Errorf("event %d time_from: %w", r.ID, err)
	}
	if ev.TimeTo, err = parseClock(r.TimeTo); err != nil {
		return nil, fmt.Errorf("event %d time_to: %w", r.ID, err)
	}
	return ev, nil
}

type overrideRow struct {
	ID                  int64          `db:"id"`
	EventID             int64          `db:"event_id"`
	Kind                string         `db:"kind"`
	ExceptDate          string         `db:"except_date"`
	Slug                string         `db:"slug"`
	Path                string         `db:"path"`
	Title               string         `db:"title"`
	CancellationTitle   string         `db:"cancellation_title"`
	CancellationDetails string         `db:"cancellation_details"`
	PostponementTitle   string         `db:"postponement_title"`
	Details             string         `db:"details"`
	Location            string         `db:"location"`
	Date                string         `db:"date"`
	TimeFrom            sql.NullString `db:"time_from"`
	TimeTo              sql.NullString `db:"time_to"`
	ExtraTitle          string         `db:"extra_title"`
	ExtraInformation    string         `db:"extra_information"`
	Revision            int            `db:"revision"`
	Created             time.Time      `db:"created"`
	Modified            time.Time      `db:"modified"`
}

const overrideColumns = `id, event_id, kind, except_date, slug, path, title, cancellation_title,
	cancellation_details, postponement_title, details, location, date, time_from, time_to,
	extra_title, extra_information, revision, created, modified`

func overrideToRow(o *model.Override) overrideRow {
	return overrideRow{
		ID:                  o.ID,
		EventID:             o.EventID,
		Kind:                o.Kind.String(),
		ExceptDate:          formatDate(o.ExceptDate),
		Slug:                o.Slug,
		Path:                o.Path,
		Title:               o.Title,
		CancellationTitle:   o.CancellationTitle,
		CancellationDetails: o.CancellationDetails,
		PostponementTitle:   o.PostponementTitle,
		Details:             o.Details,
		Location:            o.Location,
		Date:                formatDate(o.Date),
		TimeFrom:            formatClock(o.TimeFrom),
		TimeTo:              formatClock(o.TimeTo),
		ExtraTitle:          o.ExtraTitle,
		ExtraInformation:    o.ExtraInformation,
		Revision:            o.Revision,
		Created:             o.Created.UTC(),
		Modified:            o.Modified.UTC(),
	}
}

func (r overrideRow) override() (*model.Override, error) {
	o := &model.Override{
		ID:                  r.ID,
		EventID:             r.EventID,
		Slug:                r.Slug,
		Path:                r.Path,
		Title:               r.Title,
		CancellationTitle:   r.CancellationTitle,
		CancellationDetails: r.CancellationDetails,
		PostponementTitle:   r.PostponementTitle,
		Details:             r.Details,
		Location:            r.Location,
		ExtraTitle:          r.ExtraTitle,
		ExtraInformation:    r.ExtraInformation,
		Revision:            r.Revision,
		Created:             r.Created.UTC(),
		Modified:            r.Modified.UTC(),
	}
	switch r.Kind {
	case "cancellation":
		o.Kind = model.Cancellation
	case "postponement":
		o.Kind = model.Postponement
	case "extra-info":
		o.Kind = model.ExtraInfo
	default:
		return nil, fmt.Errorf("override %d has kind %q", r.ID, r.Kind)
	}
	var err error
	if o.ExceptDate, err = parseDate(r.ExceptDate); err != nil {
		return nil, fmt.Errorf("override %d except_date: %w", r.ID, err)
	}
	if o.Date, err = parseDate(r.Date); err != nil {
		return nil, fmt.Errorf("override %d date: %w", r.ID, err)
	}
	if o.TimeFrom, err = parseClock(r.TimeFrom); err != nil {
		return nil, fmt.Errorf("override %d time_from: %w", r.ID, err)
	}
	if o.TimeTo, err = parseClock(r.TimeTo); err != nil {
		return nil, fmt.Errorf("override %d time_to: %w", r.ID, err)
	}
	return o, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func formatClock(c *model.Clock) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: c.String(), Valid: true}
}

func parseClock(s sql.NullString) (*model.Clock, error) {
	if !s.Valid {
		return nil, nil
	}
	return model.ParseClock(s.String)
}

// translate maps driver errors onto the package's sentinel errors.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *SQLite) slugTaken(ctx context.Context, parentID int64) (func(string) bool, error) {
	var slugs []string
	err := sqlx.SelectContext(ctx, s.q, &slugs, `
		SELECT slug FROM containers WHERE parent_id IS ?
		UNION SELECT slug FROM events WHERE calendar_id = ?`,
		nullID(parentID), parentID)
	if err != nil {
		return nil, fmt.Errorf("list sibling slugs: %w", err)
	}
	taken := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		taken[slug] = true
	}
	return func(slug string) bool { return taken[slug] }, nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func (s *SQLite) insertContainer(ctx context.Context, parent *model.Container, row *containerRow) error {
	parentPath := "/"
	if parent != nil {
		stored, err := s.Container(ctx, parent.ID)
		if err != nil {
			return err
		}
		row.ParentID = nullID(stored.ID)
		parentPath = stored.Path
	}
	if row.Slug == "" {
		row.Slug = Slugify(row.Title)
	}
	taken, err := s.slugTaken(ctx, row.ParentID.Int64)
	if err != nil {
		return err
	}
	row.Slug = uniqueSlug(row.Slug, taken)
	row.Path = childPath(parentPath, row.Slug)
	if row.Created.IsZero() {
		row.Created = s.opts.timestamp()
	}
	res, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO containers (parent_id, kind, slug, title, description, path, created)
		VALUES (:parent_id, :kind, :slug, :title, :description, :path, :created)`, row)
	if err != nil {
		return translate(err, "insert "+row.Kind+" "+row.Path)
	}
	row.ID, err = res.LastInsertId()
	return err
}

func (s *SQLite) CreateContainer(ctx context.Context, parent *model.Container, c *model.Container) error {
	if c.Kind != model.CalendarContainer && c.Kind != model.GroupContainer {
		return fmt.Errorf("%w: unknown container kind %s", ErrInvalid, c.Kind)
	}
	row := containerRow{Kind: c.Kind.String(), Slug: c.Slug, Title: c.Title, Description: c.Description, Created: c.Created.UTC()}
	if err := s.insertContainer(ctx, parent, &row); err != nil {
		return err
	}
	c.ID, c.ParentID, c.Slug, c.Path, c.Created = row.ID, row.ParentID.Int64, row.Slug, row.Path, row.Created
	return nil
}

func (s *SQLite) CreatePage(ctx context.Context, parent *model.Container, p *model.Page) error {
	row := containerRow{Kind: "page", Slug: p.Slug, Title: p.Title}
	if err := s.insertContainer(ctx, parent, &row); err != nil {
		return err
	}
	p.ID, p.ParentID, p.Slug, p.Path = row.ID, row.ParentID.Int64, row.Slug, row.Path
	return nil
}

func (s *SQLite) getContainer(ctx context.Context, what, query string, arg any) (*model.Container, error) {
	var row containerRow
	err := sqlx.GetContext(ctx, s.q, &row, `SELECT `+containerColumns+` FROM containers WHERE kind != 'page' AND `+query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("container %s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get container %s: %w", what, err)
	}
	return row.container()
}

func (s *SQLite) Container(ctx context.Context, id int64) (*model.Container, error) {
	return s.getContainer(ctx, fmt.Sprint(id), `id = ?`, id)
}

func (s *SQLite) ContainerByPath(ctx context.Context, path string) (*model.Container, error) {
	path = NormalizePath(path)
	return s.getContainer(ctx, path, `path = ?`, path)
}

func (s *SQLite) Containers(ctx context.Context) ([]*model.Container, error) {
	var rows []containerRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, `SELECT `+containerColumns+` FROM containers WHERE kind != 'page' ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]*model.Container, 0, len(rows))
	for _, row := range rows {
		c, err := row.container()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLite) Children(ctx context.Context, parent *model.Container) ([]model.Node, error) {
	var parentID int64
	if parent != nil {
		parentID = parent.ID
	}
	var rows []containerRow
	err := sqlx.SelectContext(ctx, s.q, &rows,
		`SELECT `+containerColumns+` FROM containers WHERE parent_id IS ? ORDER BY kind = 'page', id`, nullID(parentID))
	if err != nil {
		return nil, fmt.Errorf("list children of %d: %w", parentID, err)
	}
	var nodes []model.Node
	for _, row := range rows {
		n, err := row.node()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if parentID == 0 {
		return nodes, nil
	}
	var evRows []eventRow
	err = sqlx.SelectContext(ctx, s.q, &evRows,
		`SELECT `+eventColumns+` FROM events WHERE calendar_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list events of %d: %w", parentID, err)
	}
	for _, row := range evRows {
		ev, err := row.event()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, ev)
	}
	return nodes, nil
}

func (s *SQLite) getEvent(ctx context.Context, query string, arg any) (*model.Event, error) {
	var row eventRow
	if err := sqlx.GetContext(ctx, s.q, &row, `SELECT `+eventColumns+` FROM events WHERE `+query, arg); err != nil {
		return nil, err
	}
	return row.event()
}

func (s *SQLite) Event(ctx context.Context, id int64) (*model.Event, error) {
	ev, err := s.getEvent(ctx, `id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return ev, nil
}

func (s *SQLite) FindEventByUID(ctx context.Context, uid string) (*model.Event, error) {
	ev, err := s.getEvent(ctx, `uid = ?`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find event %s: %w", uid, err)
	}
	return ev, nil
}

func (s *SQLite) CreateEvent(ctx context.Context, parent *model.Container, ev *model.Event) error {
	if err := prepareEvent(s.opts, parent, ev); err != nil {
		return err
	}
	stored, err := s.Container(ctx, parent.ID)
	if err != nil {
		return err
	}
	taken, err := s.slugTaken(ctx, stored.ID)
	if err != nil {
		return err
	}
	ev.Slug = uniqueSlug(ev.Slug, taken)
	ev.Path = childPath(stored.Path, ev.Slug)

	res, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO events (kind, calendar_id, uid, slug, path, title, details, location, website,
			tz, date, time_from, time_to, repeat, revision, created, modified)
		VALUES (:kind, :calendar_id, :uid, :slug, :path, :title, :details, :location, :website,
			:tz, :date, :time_from, :time_to, :repeat, :revision, :created, :modified)`, eventToRow(ev))
	if err != nil {
		return translate(err, "insert event "+ev.UID)
	}
	ev.ID, err = res.LastInsertId()
	return err
}

func (s *SQLite) UpdateEvent(ctx context.Context, ev *model.Event) error {
	old, err := s.Event(ctx, ev.ID)
	if err != nil {
		return err
	}
	if ev.Kind != old.Kind {
		return fmt.Errorf("%w: event %d cannot change from %s to %s", ErrInvalid, ev.ID, old.Kind, ev.Kind)
	}
	if ev.Kind == model.RecurringEvent && ev.Rule == nil {
		return fmt.Errorf("%w: recurring event needs a rule", ErrInvalid)
	}
	ev.CalendarID = old.CalendarID
	ev.Slug = old.Slug
	ev.Path = old.Path
	ev.Created = old.Created
	ev.Revision = old.Revision + 1
	ev.Modified = s.opts.timestamp()

	_, err = sqlx.NamedExecContext(ctx, s.q, `
		UPDATE events SET uid = :uid, title = :title, details = :details, location = :location,
			website = :website, tz = :tz, date = :date, time_from = :time_from, time_to = :time_to,
			repeat = :repeat, revision = :revision, modified = :modified
		WHERE id = :id`, eventToRow(ev))
	return translate(err, fmt.Sprintf("update event %d", ev.ID))
}

func (s *SQLite) DeleteEvent(ctx context.Context, ev *model.Event) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, ev.ID)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", ev.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %d: %w", ev.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLite) FindOverride(ctx context.Context, ev *model.Event, exceptDate time.Time) (*model.Override, error) {
	var row overrideRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+overrideColumns+` FROM overrides WHERE event_id = ? AND except_date = ?`,
		ev.ID, formatDate(exceptDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find override of event %d: %w", ev.ID, err)
	}
	return row.override()
}

func (s *SQLite) CreateOverride(ctx context.Context, ev *model.Event, o *model.Override) error {
	if err := prepareOverride(s.opts, ev, o); err != nil {
		return err
	}
	stored, err := s.Event(ctx, ev.ID)
	if err != nil {
		return err
	}
	o.Path = childPath(stored.Path, o.Slug)
	res, err := sqlx.NamedExecContext(ctx, s.q, `
		INSERT INTO overrides (event_id, kind, except_date, slug, path, title, cancellation_title,
			cancellation_details, postponement_title, details, location, date, time_from, time_to,
			extra_title, extra_information, revision, created, modified)
		VALUES (:event_id, :kind, :except_date, :slug, :path, :title, :cancellation_title,
			:cancellation_details, :postponement_title, :details, :location, :date, :time_from, :time_to,
			:extra_title, :extra_information, :revision, :created, :modified)`, overrideToRow(o))
	if err != nil {
		return translate(err, fmt.Sprintf("insert override %s of event %d", formatDate(o.ExceptDate), ev.ID))
	}
	o.ID, err = res.LastInsertId()
	return err
}

func (s *SQLite) UpdateOverride(ctx context.Context, o *model.Override) error {
	var row overrideRow
	err := sqlx.GetContext(ctx, s.q, &row, `SELECT `+overrideColumns+` FROM overrides WHERE id = ?`, o.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("override %d: %w", o.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get override %d: %w", o.ID, err)
	}
	old, err := row.override()
	if err != nil {
		return err
	}
	if o.Kind != old.Kind {
		return fmt.Errorf("%w: override %d cannot change from %s to %s", ErrInvalid, o.ID, old.Kind, o.Kind)
	}
	o.EventID = old.EventID
	o.ExceptDate = old.ExceptDate
	o.Slug = old.Slug
	o.Path = old.Path
	o.Created = old.Created
	o.Revision = old.Revision + 1
	o.Modified = s.opts.timestamp()

	_, err = sqlx.NamedExecContext(ctx, s.q, `
		UPDATE overrides SET title = :title, cancellation_title = :cancellation_title,
			cancellation_details = :cancellation_details, postponement_title = :postponement_title,
			details = :details, location = :location, date = :date, time_from = :time_from,
			time_to = :time_to, extra_title = :extra_title, extra_information = :extra_information,
			revision = :revision, modified = :modified
		WHERE id = :id`, overrideToRow(o))
	return translate(err, fmt.Sprintf("update override %d", o.ID))
}

func (s *SQLite) DeleteOverride(ctx context.Context, o *model.Override) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM overrides WHERE id = ?`, o.ID)
	if err != nil {
		return fmt.Errorf("delete override %d: %w", o.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("override %d: %w", o.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLite) Overrides(ctx context.Context, ev *model.Event) ([]*model.Override, error) {
	var rows []overrideRow
	err := sqlx.SelectContext(ctx, s.q, &rows,
		`SELECT `+overrideColumns+` FROM overrides WHERE event_id = ? ORDER BY id`, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("list overrides of event %d: %w", ev.ID, err)
	}
	out := make([]*model.Override, 0, len(rows))
	for _, row := range rows {
		o, err := row.override()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Atomic runs fn inside a transaction. Nested calls reuse it.
func (s *SQLite) Atomic(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&SQLite{db: s.db, q: tx, inTx: true, opts: s.opts}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var _ Store = (*SQLite)(nil)
