package model

import (
	"fmt"
	"time"

	"joyous/internal/recurrence"
)

// Node is anything that lives in the page tree.
type Node interface {
	NodeID() int64
	// URLPath is the node's path below the site root, e.g. "/events/bbq/".
	URLPath() string
}

// ContainerKind tells calendars (which can receive imports) from plain
// groups of events.
type ContainerKind int

const (
	CalendarContainer ContainerKind = iota + 1
	GroupContainer
)

func (k ContainerKind) String() string {
	switch k {
	case CalendarContainer:
		return "calendar"
	case GroupContainer:
		return "group"
	default:
		return fmt.Sprintf("ContainerKind(%d)", int(k))
	}
}

// Container holds events and other containers.
type Container struct {
	ID          int64
	ParentID    int64
	Kind        ContainerKind
	Slug        string
	Title       string
	Description string
	Path        string
	Created     time.Time
}

func (c *Container) NodeID() int64   { return c.ID }
func (c *Container) URLPath() string { return c.Path }

// Page is a plain content node. It is part of the tree but holds no events.
type Page struct {
	ID       int64
	ParentID int64
	Slug     string
	Title    string
	Path     string
}

func (p *Page) NodeID() int64   { return p.ID }
func (p *Page) URLPath() string { return p.Path }

// EventKind is the variant tag of an Event.
type EventKind int

const (
	SimpleEvent EventKind = iota + 1
	RecurringEvent
)

func (k EventKind) String() string {
	switch k {
	case SimpleEvent:
		return "simple"
	case RecurringEvent:
		return "recurring"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a simple one-off event or a recurring series, told apart by Kind.
// Date is only meaningful for simple events and Rule only for recurring
// ones.
type Event struct {
	ID         int64
	Kind       EventKind
	CalendarID int64
	UID        string
	Slug       string
	Path       string

	Title    string
	Details  string
	Location string
	Website  string

	// TZ is an IANA zone name; empty means the deployment default.
	TZ       string
	Date     time.Time
	TimeFrom *Clock
	TimeTo   *Clock
	Rule     *recurrence.Rule

	Revision int
	Created  time.Time
	Modified time.Time
}

func (e *Event) NodeID() int64   { return e.ID }
func (e *Event) URLPath() string { return e.Path }

// AllDay reports whether the event has no start time.
func (e *Event) AllDay() bool {
	return e.TimeFrom == nil
}

// OverrideKind is the variant tag of an Override.
type OverrideKind int

const (
	Cancellation OverrideKind = iota + 1
	Postponement
	ExtraInfo
)

func (k OverrideKind) String() string {
	switch k {
	case Cancellation:
		return "cancellation"
	case Postponement:
		return "postponement"
	case ExtraInfo:
		return "extra-info"
	default:
		return fmt.Sprintf("OverrideKind(%d)", int(k))
	}
}

// Label is the capitalised form used in override titles.
func (k OverrideKind) Label() string {
	switch k {
	case Cancellation:
		return "Cancellation"
	case Postponement:
		return "Postponement"
	case ExtraInfo:
		return "Extra-Info"
	default:
		return k.String()
	}
}

// Override changes one occurrence of a recurring event, identified by the
// date the occurrence would originally have had.
type Override struct {
	ID         int64
	EventID    int64
	Kind       OverrideKind
	ExceptDate time.Time
	Slug       string
	Path       string
	Title      string

	// Cancellation, and the vacated slot of a postponement.
	CancellationTitle   string
	CancellationDetails string

	// Postponement.
	PostponementTitle string
	Details           string
	Location          string
	Date              time.Time
	TimeFrom          *Clock
	TimeTo            *Clock

	// ExtraInfo.
	ExtraTitle       string
	ExtraInformation string

	Revision int
	Created  time.Time
	Modified time.Time
}

func (o *Override) NodeID() int64   { return o.ID }
func (o *Override) URLPath() string { return o.Path }

// OverrideSlug is the conventional slug of an override, e.g.
// "2018-04-05-extra-info".
func OverrideSlug(kind OverrideKind, exceptDate time.Time) string {
	return exceptDate.Format(time.DateOnly) + "-" + kind.String()
}

// OverrideTitle is the conventional title of an override, e.g.
// "Extra-Info for Thursday 5th of April".
func OverrideTitle(kind OverrideKind, exceptDate time.Time) string {
	return fmt.Sprintf("%s for %s %s of %s", kind.Label(),
		exceptDate.Weekday(), recurrence.Ordinal(exceptDate.Day()), exceptDate.Month())
}

// Occurrence is one concrete instance of an event after recurrence
// expansion and override handling.
type Occurrence struct {
	EventID int64
	UID     string

	// ExceptDate is the original date of a recurring occurrence; zero for
	// simple events.
	ExceptDate time.Time
	Override   OverrideKind

	Title    string
	Details  string
	Location string
	Path     string

	AllDay bool

	// Start / End are in the display zone.
	Start time.Time
	End   time.Time
}
