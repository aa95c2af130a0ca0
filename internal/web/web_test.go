package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joyous/internal/config"
	"joyous/internal/model"
	"joyous/internal/store"
	"joyous/internal/tz"
)

type testServer struct {
	*httptest.Server
	store *store.Memory
	cal   *model.Container
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://joy.test"
	if mutate != nil {
		mutate(cfg)
	}
	now := time.Date(2019, 1, 21, 6, 0, 0, 0, time.UTC)
	s := store.NewMemory(store.WithClock(func() time.Time { return now }))
	cal := &model.Container{Kind: model.CalendarContainer, Slug: "events", Title: "Events"}
	require.NoError(t, s.CreateContainer(context.Background(), nil, cal))
	r, err := tz.NewResolver("Asia/Tokyo")
	require.NoError(t, err)

	srv := NewServer(cfg, s, r, nil)
	srv.now = func() time.Time { return now }
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: s, cal: cal}
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (ts *testServer) post(t *testing.T, path, body string) (*http.Response, string) {
	t.Helper()
	resp, err := ts.Client().Post(ts.URL+path, "text/calendar", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(out)
}

const quizNight = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Club//Feed//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:quiz@club.test\r\n" +
	"DTSTART;TZID=Asia/Tokyo:20190301T190000\r\n" +
	"DTEND;TZID=Asia/Tokyo:20190301T210000\r\n" +
	"SUMMARY:Quiz Night\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := ts.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
}

func TestImportThenList(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.post(t, fmt.Sprintf("/calendars/%d/import", ts.cal.ID), quizNight)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"messages":[{"level":"success","message":"1 iCal events loaded"}]}`, body)

	resp, body = ts.get(t, "/api/events/2019-03-01/")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var got eventsResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "2019-03-01", got.Date)
	assert.Equal(t, "Asia/Tokyo", got.DisplayTimeZone)
	require.Len(t, got.Occurrences, 1)
	occ := got.Occurrences[0]
	assert.Equal(t, "Quiz Night", occ.Title)
	assert.Equal(t, "http://joy.test/events/quiz-night/", occ.URL)
	assert.True(t, occ.Start.Equal(time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC)))

	_, body = ts.get(t, "/api/events/2019-03-02/?calendar=events")
	assert.Contains(t, body, `"occurrences":[]`)
}

func TestImportMalformed(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := ts.post(t, fmt.Sprintf("/calendars/%d/import", ts.cal.ID), "FOO:BAR:SNAFU")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `{"messages":[{"level":"error","message":"Could not parse iCalendar file"}]}`, body)
}

func TestImportRejectsGroupsAndUnknownCalendars(t *testing.T) {
	ts := newTestServer(t, nil)
	group := &model.Container{Kind: model.GroupContainer, Slug: "club", Title: "Club"}
	require.NoError(t, ts.store.CreateContainer(context.Background(), ts.cal, group))

	resp, _ := ts.post(t, fmt.Sprintf("/calendars/%d/import", group.ID), quizNight)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.post(t, "/calendars/999/import", quizNight)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportCalendarAndEvent(t *testing.T) {
	ts := newTestServer(t, nil)
	ev := &model.Event{
		Kind:     model.SimpleEvent,
		Title:    "BBQ",
		Date:     time.Date(2008, 7, 15, 0, 0, 0, 0, time.UTC),
		TimeFrom: model.At(17, 30),
		TimeTo:   model.At(19, 0),
		TZ:       "Pacific/Auckland",
	}
	require.NoError(t, ts.store.CreateEvent(context.Background(), ts.cal, ev))

	resp, body := ts.get(t, fmt.Sprintf("/calendars/%d.ics", ts.cal.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/calendar; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="events.ics"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, "X-WR-CALNAME:Events\r\n")
	assert.Contains(t, body, "URL:http://joy.test/events/bbq/\r\n")
	assert.Contains(t, body, "DTSTAMP:20190121T060000Z\r\n")

	resp, body = ts.get(t, fmt.Sprintf("/events/%d.ics", ev.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "DTSTART;TZID=Pacific/Auckland:20080715T173000\r\n")
	assert.NotContains(t, body, "X-WR-CALNAME")

	resp, _ = ts.get(t, "/events/424242.ics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "joy", Password: "secret"}
	})

	resp, _ := ts.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.get(t, "/api/events/2019-03-01/")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/events/2019-03-01/", nil)
	require.NoError(t, err)
	req.SetBasicAuth("joy", "secret")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEventsBadZone(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := ts.get(t, "/api/events/2019-03-01/?tz=Mars/Olympus")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.get(t, "/api/events/2019-03-01/?calendar=nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
