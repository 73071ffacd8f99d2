// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/bus"
	"github.com/abhisek/attune/internal/engine"
	"github.com/abhisek/attune/internal/fusion"
	"github.com/abhisek/attune/internal/mastery"
	"github.com/abhisek/attune/internal/scheduler"
)

const maxSnapshotBytes = 1 << 20

// EventSource streams bus events. *bus.Bus satisfies it.
type EventSource interface {
	SubscribeAll(ctx context.Context) (<-chan bus.Event, error)
}

// Server holds the HTTP handlers.
type Server struct {
	eng     *engine.Engine
	events  EventSource
	origins []string
	log     *zap.Logger
}

// New creates a server. events may be nil, which disables /v1/events.
func New(eng *engine.Engine, events EventSource, allowedOrigins []string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{eng: eng, events: events, origins: allowedOrigins, log: log.Named("http")}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(cors(s.origins))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/snapshots", s.postSnapshot)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Post("/replies", s.postReply)
			r.Post("/close", s.postClose)
		})

		r.Get("/mastery", s.listMastery)
		r.Get("/mastery/{concept}", s.getMastery)
		r.Get("/scheduler", s.getScheduler)
		r.Get("/events", s.streamEvents)
	})
	return r
}

func (s *Server) postSnapshot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		Error(w, http.StatusRequestEntityTooLarge, "snapshot too large")
		return
	}
	snap := fusion.NewSnapshot()
	if err := json.Unmarshal(body, &snap); err != nil {
		// A malformed snapshot carries no signal.
		s.log.Warn("skipping malformed snapshot",
			zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
			zap.Error(err))
		JSON(w, http.StatusOK, &engine.Outcome{
			UserID:   engine.DefaultUserID,
			Decision: scheduler.Decision{Reason: scheduler.ReasonSkipped},
		})
		return
	}
	out, err := s.eng.Submit(r.Context(), snap)
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, out)
}

type replyRequest struct {
	Message string `json:"message"`
}

func (s *Server) postReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid reply: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	res, err := s.eng.Reply(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

func (s *Server) postClose(w http.ResponseWriter, r *http.Request) {
	report, err := s.eng.Close(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, report)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.eng.Tutor().Get(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	JSON(w, http.StatusOK, sess.View())
}

// conceptView is one concept's mastery as shown to clients.
type conceptView struct {
	ConceptID string          `json:"concept_id"`
	Mastery   float64         `json:"mastery"`
	Percent   int             `json:"percent"`
	Band      mastery.Band    `json:"band"`
	Quality   mastery.Quality `json:"quality"`
}

func (s *Server) view(id string, p float64) conceptView {
	return conceptView{
		ConceptID: id,
		Mastery:   p,
		Percent:   mastery.Percent(p),
		Band:      mastery.ResolveBand(p),
		Quality:   s.eng.Tracker().Quality(id),
	}
}

func (s *Server) listMastery(w http.ResponseWriter, r *http.Request) {
	concepts := s.eng.Tracker().Concepts()
	ids := make([]string, 0, len(concepts))
	for id := range concepts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]conceptView, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.view(id, concepts[id]))
	}
	JSON(w, http.StatusOK, out)
}

type conceptDetail struct {
	conceptView
	Record mastery.Record `json:"record"`
}

func (s *Server) getMastery(w http.ResponseWriter, r *http.Request) {
	id := mastery.NormalizeConceptID(chi.URLParam(r, "concept"))
	rec, ok := s.eng.Tracker().Record(id)
	if !ok {
		Error(w, http.StatusNotFound, "concept_not_found")
		return
	}
	JSON(w, http.StatusOK, conceptDetail{conceptView: s.view(id, rec.PKnow), Record: rec})
}

type schedulerView struct {
	Config scheduler.Config `json:"config"`
	State  scheduler.State  `json:"state"`
}

func (s *Server) getScheduler(w http.ResponseWriter, r *http.Request) {
	sched := s.eng.Scheduler()
	JSON(w, http.StatusOK, schedulerView{Config: sched.Config(), State: sched.Snapshot()})
}

// requestLogger logs each request once it completes.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
		})
	}
}

// cors allows the configured origins; "*" allows any.
func cors(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (slices.Contains(allowed, "*") || slices.Contains(allowed, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ListenAndServe runs srv until ctx is done, then shuts it down within
// grace.
func ListenAndServe(ctx context.Context, srv *http.Server, grace time.Duration, log *zap.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
