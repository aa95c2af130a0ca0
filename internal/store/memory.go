package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"joyous/internal/model"
	"joyous/internal/recurrence"
)

// Memory is a Store kept in process memory. Records are copied in and out,
// so callers never share state with the store.
type Memory struct {
	mu   sync.Mutex
	opts options
	memoryState
}

type memoryState struct {
	nextID     int64
	containers map[int64]*model.Container
	pages      map[int64]*model.Page
	events     map[int64]*model.Event
	overrides  map[int64]*model.Override
}

func NewMemory(opts ...Option) *Memory {
	return &Memory{
		opts: buildOptions(opts),
		memoryState: memoryState{
			containers: map[int64]*model.Container{},
			pages:      map[int64]*model.Page{},
			events:     map[int64]*model.Event{},
			overrides:  map[int64]*model.Override{},
		},
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		nextID:     s.nextID,
		containers: make(map[int64]*model.Container, len(s.containers)),
		pages:      make(map[int64]*model.Page, len(s.pages)),
		events:     make(map[int64]*model.Event, len(s.events)),
		overrides:  make(map[int64]*model.Override, len(s.overrides)),
	}
	for id, c := range s.containers {
		cc := *c
		out.containers[id] = &cc
	}
	for id, p := range s.pages {
		pc := *p
		out.pages[id] = &pc
	}
	for id, ev := range s.events {
		out.events[id] = cloneEvent(ev)
	}
	for id, o := range s.overrides {
		out.overrides[id] = cloneOverride(o)
	}
	return out
}

func cloneClock(c *model.Clock) *model.Clock {
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}

func cloneRule(r *recurrence.Rule) *recurrence.Rule {
	if r == nil {
		return nil
	}
	rc := *r
	rc.ByWeekday = slices.Clone(r.ByWeekday)
	rc.ByMonthDay = slices.Clone(r.ByMonthDay)
	rc.ByMonth = slices.Clone(r.ByMonth)
	rc.ExDates = slices.Clone(r.ExDates)
	return &rc
}

func cloneEvent(ev *model.Event) *model.Event {
	ec := *ev
	ec.TimeFrom = cloneClock(ev.TimeFrom)
	ec.TimeTo = cloneClock(ev.TimeTo)
	ec.Rule = cloneRule(ev.Rule)
	return &ec
}

func cloneOverride(o *model.Override) *model.Override {
	oc := *o
	oc.TimeFrom = cloneClock(o.TimeFrom)
	oc.TimeTo = cloneClock(o.TimeTo)
	return &oc
}

func (m *Memory) newID() int64 {
	m.nextID++
	return m.nextID
}

// slugTaken reports whether a direct child of parentID already uses slug.
func (m *Memory) slugTaken(parentID int64, slug string) bool {
	for _, c := range m.containers {
		if c.ParentID == parentID && c.Slug == slug {
			return true
		}
	}
	for _, p := range m.pages {
		if p.ParentID == parentID && p.Slug == slug {
			return true
		}
	}
	for _, ev := range m.events {
		if ev.CalendarID == parentID && ev.Slug == slug {
			return true
		}
	}
	return false
}

func (m *Memory) CreateContainer(_ context.Context, parent *model.Container, c *model.Container) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.Kind != model.CalendarContainer && c.Kind != model.GroupContainer {
		return fmt.Errorf("%w: unknown container kind %s", ErrInvalid, c.Kind)
	}
	parentPath := "/"
	c.ParentID = 0
	if parent != nil {
		if _, ok := m.containers[parent.ID]; !ok {
			return fmt.Errorf("container %d: %w", parent.ID, ErrNotFound)
		}
		c.ParentID = parent.ID
		parentPath = parent.Path
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Title)
	}
	c.Slug = uniqueSlug(c.Slug, func(s string) bool { return m.slugTaken(c.ParentID, s) })
	c.Path = childPath(parentPath, c.Slug)
	c.ID = m.newID()
	if c.Created.IsZero() {
		c.Created = m.opts.timestamp()
	}
	cc := *c
	m.containers[c.ID] = &cc
	return nil
}

func (m *Memory) CreatePage(_ context.Context, parent *model.Container, p *model.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentPath := "/"
	p.ParentID = 0
	if parent != nil {
		if _, ok := m.containers[parent.ID]; !ok {
			return fmt.Errorf("container %d: %w", parent.ID, ErrNotFound)
		}
		p.ParentID = parent.ID
		parentPath = parent.Path
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	p.Slug = uniqueSlug(p.Slug, func(s string) bool { return m.slugTaken(p.ParentID, s) })
	p.Path = childPath(parentPath, p.Slug)
	p.ID = m.newID()
	pc := *p
	m.pages[p.ID] = &pc
	return nil
}

func (m *Memory) Container(_ context.Context, id int64) (*model.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.containers[id]
	if !ok {
		return nil, fmt.Errorf("container %d: %w", id, ErrNotFound)
	}
	cc := *c
	return &cc, nil
}

func (m *Memory) ContainerByPath(_ context.Context, path string) (*model.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = NormalizePath(path)
	for _, c := range m.containers {
		if c.Path == path {
			cc := *c
			return &cc, nil
		}
	}
	return nil, fmt.Errorf("container %s: %w", path, ErrNotFound)
}

func (m *Memory) Containers(_ context.Context) ([]*model.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.Container, 0, len(m.containers))
	for _, id := range slices.Sorted(maps.Keys(m.containers)) {
		cc := *m.containers[id]
		out = append(out, &cc)
	}
	return out, nil
}

func (m *Memory) Children(_ context.Context, parent *model.Container) ([]model.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var parentID int64
	if parent != nil {
		parentID = parent.ID
	}
	var nodes []model.Node
	for _, id := range slices.Sorted(maps.Keys(m.containers)) {
		if c := m.containers[id]; c.ParentID == parentID {
			cc := *c
			nodes = append(nodes, &cc)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(m.pages)) {
		if p := m.pages[id]; p.ParentID == parentID {
			pc := *p
			nodes = append(nodes, &pc)
		}
	}
	if parentID == 0 {
		return nodes, nil
	}
	for _, id := range slices.Sorted(maps.Keys(m.events)) {
		if ev := m.events[id]; ev.CalendarID == parentID {
			nodes = append(nodes, cloneEvent(ev))
		}
	}
	return nodes, nil
}

func (m *Memory) Event(_ context.Context, id int64) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return cloneEvent(ev), nil
}

func (m *Memory) FindEventByUID(_ context.Context, uid string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ev := range m.events {
		if ev.UID == uid {
			return cloneEvent(ev), nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateEvent(_ context.Context, parent *model.Container, ev *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := prepareEvent(m.opts, parent, ev); err != nil {
		return err
	}
	stored, ok := m.containers[parent.ID]
	if !ok {
		return fmt.Errorf("container %d: %w", parent.ID, ErrNotFound)
	}
	for _, other := range m.events {
		if other.UID == ev.UID {
			return fmt.Errorf("event uid %s: %w", ev.UID, ErrDuplicate)
		}
	}
	ev.Slug = uniqueSlug(ev.Slug, func(s string) bool { return m.slugTaken(parent.ID, s) })
	ev.Path = childPath(stored.Path, ev.Slug)
	ev.ID = m.newID()
	m.events[ev.ID] = cloneEvent(ev)
	return nil
}

func (m *Memory) UpdateEvent(_ context.Context, ev *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.events[ev.ID]
	if !ok {
		return fmt.Errorf("event %d: %w", ev.ID, ErrNotFound)
	}
	if ev.Kind != old.Kind {
		return fmt.Errorf("%w: event %d cannot change from %s to %s", ErrInvalid, ev.ID, old.Kind, ev.Kind)
	}
	for _, other := range m.events {
		if other.ID != ev.ID && other.UID == ev.UID {
			return fmt.Errorf("event uid %s: %w", ev.UID, ErrDuplicate)
		}
	}
	// Placement is owned by the store.
	ev.CalendarID = old.CalendarID
	ev.Slug = old.Slug
	ev.Path = old.Path
	ev.Created = old.Created
	ev.Revision = old.Revision + 1
	ev.Modified = m.opts.timestamp()
	m.events[ev.ID] = cloneEvent(ev)
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, ev *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[ev.ID]; !ok {
		return fmt.Errorf("event %d: %w", ev.ID, ErrNotFound)
	}
	delete(m.events, ev.ID)
	maps.DeleteFunc(m.overrides, func(_ int64, o *model.Override) bool {
		return o.EventID == ev.ID
	})
	return nil
}

func (m *Memory) FindOverride(_ context.Context, ev *model.Event, exceptDate time.Time) (*model.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dateOnly(exceptDate)
	for _, o := range m.overrides {
		if o.EventID == ev.ID && o.ExceptDate.Equal(day) {
			return cloneOverride(o), nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateOverride(_ context.Context, ev *model.Event, o *model.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := prepareOverride(m.opts, ev, o); err != nil {
		return err
	}
	stored, ok := m.events[ev.ID]
	if !ok {
		return fmt.Errorf("event %d: %w", ev.ID, ErrNotFound)
	}
	for _, other := range m.overrides {
		if other.EventID == ev.ID && other.ExceptDate.Equal(o.ExceptDate) {
			return fmt.Errorf("override %s of event %d: %w", o.ExceptDate.Format(time.DateOnly), ev.ID, ErrDuplicate)
		}
	}
	o.Path = childPath(stored.Path, o.Slug)
	o.ID = m.newID()
	m.overrides[o.ID] = cloneOverride(o)
	return nil
}

func (m *Memory) UpdateOverride(_ context.Context, o *model.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.overrides[o.ID]
	if !ok {
		return fmt.Errorf("override %d: %w", o.ID, ErrNotFound)
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
	o.Modified = m.opts.timestamp()
	m.overrides[o.ID] = cloneOverride(o)
	return nil
}

func (m *Memory) DeleteOverride(_ context.Context, o *model.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.overrides[o.ID]; !ok {
		return fmt.Errorf("override %d: %w", o.ID, ErrNotFound)
	}
	delete(m.overrides, o.ID)
	return nil
}

func (m *Memory) Overrides(_ context.Context, ev *model.Event) ([]*model.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Override
	for _, id := range slices.Sorted(maps.Keys(m.overrides)) {
		if o := m.overrides[id]; o.EventID == ev.ID {
			out = append(out, cloneOverride(o))
		}
	}
	return out, nil
}

// Atomic snapshots the store and restores the snapshot if fn fails. It
// does not isolate fn from concurrent writers; callers serialise imports
// per calendar.
func (m *Memory) Atomic(_ context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	snapshot := m.memoryState.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.memoryState = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

var _ Store = (*Memory)(nil)
