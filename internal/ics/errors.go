// Package ics converts between the event tree and iCalendar (RFC 5545)
// documents: Exporter writes VCALENDARs, Importer reads them back into the
// store, and Fetcher pulls subscribed feeds over HTTP.
package ics

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedEntity is matched by *UnsupportedEntityError.
	ErrUnsupportedEntity = errors.New("ics: unsupported entity")
	// ErrCalendarNotInitialized is returned by Load without a target calendar.
	ErrCalendarNotInitialized = errors.New("ics: calendar not initialized")
	// ErrMalformedDocument marks payloads that are not parseable iCalendar.
	ErrMalformedDocument = errors.New("ics: malformed document")
	// ErrMissingUID marks VEVENTs without a UID.
	ErrMissingUID = errors.New("ics: event has no UID")
	// ErrKindMismatch is returned when an incoming component would change a
	// stored simple event into a recurring one or the reverse.
	ErrKindMismatch = errors.New("ics: event kind mismatch")
	// ErrNoBaseEvent is returned for occurrence overrides whose series is
	// neither in the payload nor in the store.
	ErrNoBaseEvent = errors.New("ics: override without a base event")
)

// UnsupportedEntityError reports an export root that is not an event or an
// event container.
type UnsupportedEntityError struct {
	Type string
}

func (e *UnsupportedEntityError) Error() string {
	return fmt.Sprintf("ics: cannot export %s", e.Type)
}

func (e *UnsupportedEntityError) Is(target error) bool {
	return target == ErrUnsupportedEntity
}
