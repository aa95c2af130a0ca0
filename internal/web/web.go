package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"joyous/internal/agenda"
	"joyous/internal/config"
	"joyous/internal/feed"
	"joyous/internal/ics"
	appLog "joyous/internal/log"
	"joyous/internal/model"
	"joyous/internal/store"
	"joyous/internal/tz"
)

// maxImportSize caps an uploaded iCalendar body.
const maxImportSize = 16 << 20

// Server exposes calendar export, import and occurrence listing over HTTP.
type Server struct {
	cfg      *config.Config
	store    store.Store
	resolver *tz.Resolver
	exporter *ics.Exporter
	importer *ics.Importer
	agenda   *agenda.Agenda
	locks    *feed.Locks
	router   *mux.Router

	// now is swapped in tests.
	now func() time.Time
}

// NewServer wires the handlers. locks must be the instance the feed
// scheduler uses, so HTTP and scheduled imports never overlap.
func NewServer(cfg *config.Config, s store.Store, r *tz.Resolver, locks *feed.Locks) *Server {
	if locks == nil {
		locks = &feed.Locks{}
	}
	srv := &Server{
		cfg:      cfg,
		store:    s,
		resolver: r,
		exporter: ics.NewExporter(s, r),
		importer: ics.NewImporter(s, r),
		agenda:   agenda.New(s, r),
		locks:    locks,
		router:   mux.NewRouter(),
		now:      time.Now,
	}
	srv.registerRoutes()
	return srv
}

// Handler returns the root handler, behind basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than lock everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every route except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Joyous", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/events/{date:[0-9]{4}-[0-9]{2}-[0-9]{2}}/", s.handleEventsOnDay).Methods(http.MethodGet)
	s.router.HandleFunc("/calendars/{id:[0-9]+}.ics", s.handleExportCalendar).Methods(http.MethodGet)
	s.router.HandleFunc("/events/{id:[0-9]+}.ics", s.handleExportEvent).Methods(http.MethodGet)
	s.router.HandleFunc("/calendars/{id:[0-9]+}/import", s.handleImport).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON shape of /api/events/{date}/.
type eventsResponse struct {
	Date            string          `json:"date"`
	DisplayTimeZone string          `json:"display_timezone"`
	Occurrences     []occurrenceDTO `json:"occurrences"`
}

type occurrenceDTO struct {
	UID        string    `json:"uid"`
	Title      string    `json:"title"`
	Details    string    `json:"details,omitempty"`
	Location   string    `json:"location,omitempty"`
	URL        string    `json:"url"`
	AllDay     bool      `json:"all_day"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ExceptDate string    `json:"except_date,omitempty"`
	Override   string    `json:"override,omitempty"`
}

// handleEventsOnDay lists the occurrences on one day.
//
// GET /api/events/2019-02-08/?calendar=events&tz=Asia/Tokyo
//   - calendar: calendar path; default is every top-level calendar
//   - tz:       display zone; default is the configured zone
func (s *Server) handleEventsOnDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day, err := time.Parse(time.DateOnly, mux.Vars(r)["date"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad date")
		return
	}
	q := r.URL.Query()
	loc := s.resolver.Default()
	if name := q.Get("tz"); name != "" {
		if loc, err = s.resolver.Resolve(name); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var cals []*model.Container
	if path := q.Get("calendar"); path != "" {
		cal, err := s.store.ContainerByPath(ctx, path)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		cals = append(cals, cal)
	} else {
		all, err := s.store.Containers(ctx)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		for _, c := range all {
			if c.ParentID == 0 {
				cals = append(cals, c)
			}
		}
	}

	dtos := []occurrenceDTO{}
	for _, cal := range cals {
		occs, err := s.agenda.OnDay(ctx, cal, day, loc)
		if err != nil {
			appLog.Error("api events failed", err, "calendar", cal.Path, "date", day.Format(time.DateOnly))
			writeError(w, http.StatusInternalServerError, "failed to list events")
			return
		}
		for _, o := range occs {
			dtos = append(dtos, s.occurrenceDTO(o))
		}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Date:            day.Format(time.DateOnly),
		DisplayTimeZone: loc.String(),
		Occurrences:     dtos,
	})
}

func (s *Server) occurrenceDTO(o model.Occurrence) occurrenceDTO {
	dto := occurrenceDTO{
		UID:      o.UID,
		Title:    o.Title,
		Details:  o.Details,
		Location: o.Location,
		URL:      s.cfg.BaseURL + o.Path,
		AllDay:   o.AllDay,
		Start:    o.Start,
		End:      o.End,
	}
	if !o.ExceptDate.IsZero() {
		dto.ExceptDate = o.ExceptDate.Format(time.DateOnly)
	}
	if o.Override != 0 {
		dto.Override = o.Override.String()
	}
	return dto
}

func (s *Server) handleExportCalendar(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	cal, err := s.store.Container(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.export(w, r, cal, cal.Slug)
}

func (s *Server) handleExportEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	ev, err := s.store.Event(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.export(w, r, ev, ev.Slug)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, root model.Node, name string) {
	cal, err := s.exporter.Export(r.Context(), root, ics.Request{BaseURL: s.cfg.BaseURL, Now: s.now()})
	if err != nil {
		appLog.Error("ics export failed", err, "path", root.URLPath())
		writeError(w, http.StatusInternalServerError, "failed to export")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ics.Serialize(cal))
}

// handleImport loads the request body into a calendar and answers with the
// import report. A report holding errors is sent with 422.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	cal, err := s.store.Container(ctx, id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if cal.Kind != model.CalendarContainer {
		writeError(w, http.StatusBadRequest, "only calendars accept imports")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	unlock := s.locks.Lock(cal.ID)
	defer unlock()
	rep, err := s.importer.Load(ctx, cal, body)
	if err != nil {
		appLog.Error("ics import failed", err, "calendar", cal.Path)
		writeError(w, http.StatusInternalServerError, "failed to import")
		return
	}
	status := http.StatusOK
	if rep.HasErrors() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, rep)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	appLog.Error("store lookup failed", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
