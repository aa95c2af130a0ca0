package store

// schema is applied on every open; statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS containers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_id   INTEGER REFERENCES containers(id) ON DELETE CASCADE,
	kind        TEXT NOT NULL,
	slug        TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	path        TEXT NOT NULL UNIQUE,
	created     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	calendar_id INTEGER NOT NULL REFERENCES containers(id) ON DELETE CASCADE,
	uid         TEXT NOT NULL UNIQUE,
	slug        TEXT NOT NULL,
	path        TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL DEFAULT '',
	details     TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	website     TEXT NOT NULL DEFAULT '',
	tz          TEXT NOT NULL DEFAULT '',
	date        TEXT NOT NULL DEFAULT '',
	time_from   TEXT,
	time_to     TEXT,
	repeat      TEXT NOT NULL DEFAULT '',
	revision    INTEGER NOT NULL,
	created     DATETIME NOT NULL,
	modified    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS events_calendar ON events(calendar_id);

CREATE TABLE IF NOT EXISTS overrides (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id             INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	kind                 TEXT NOT NULL,
	except_date          TEXT NOT NULL,
	slug                 TEXT NOT NULL,
	path                 TEXT NOT NULL UNIQUE,
	title                TEXT NOT NULL DEFAULT '',
	cancellation_title   TEXT NOT NULL DEFAULT '',
	cancellation_details TEXT NOT NULL DEFAULT '',
	postponement_title   TEXT NOT NULL DEFAULT '',
	details              TEXT NOT NULL DEFAULT '',
	location             TEXT NOT NULL DEFAULT '',
	date                 TEXT NOT NULL DEFAULT '',
	time_from            TEXT,
	time_to              TEXT,
	extra_title          TEXT NOT NULL DEFAULT '',
	extra_information    TEXT NOT NULL DEFAULT '',
	revision             INTEGER NOT NULL,
	created              DATETIME NOT NULL,
	modified             DATETIME NOT NULL,
	UNIQUE (event_id, except_date)
);
`
