package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Simplici0/cotizador/internal/obs"
	"github.com/Simplici0/cotizador/internal/pricing"
	"github.com/Simplici0/cotizador/internal/quotes"
)

const maxBodyBytes = 1 << 20

type server struct {
	svc    *quotes.Service
	db     *sql.DB
	logger zerolog.Logger
}

type errorResponse struct {
	Error  string               `json:"error"`
	Fields []pricing.FieldError `json:"fields,omitempty"`
}

func newRouter(srv *server, gatherer prometheus.Gatherer, dev bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.RequestLogger{Logger: srv.logger}.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if dev {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/policy", srv.handlePolicyGet)
		r.Put("/policy", srv.handlePolicyPut)
		r.Post("/quotes/calc", srv.handleCalc)
		r.Get("/quotes", srv.handleQuotesList)
		r.Route("/purchase-requests/{id}/quote", func(r chi.Router) {
			r.Post("/", srv.handleQuoteCreate)
			r.Get("/", srv.handleQuoteLatest)
			r.Get("/text", srv.handleQuoteText)
		})
		r.Patch("/drafts/{id}", srv.handleDraftPatch)
		r.Get("/drafts/{id}", srv.handleDraftGet)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("health check")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handlePolicyGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Policy(r.Context())
	if err != nil {
		s.writeError(w, r, err, "failed to load pricing policy")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handlePolicyPut(w http.ResponseWriter, r *http.Request) {
	var p pricing.Policy
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := s.svc.UpdatePolicy(r.Context(), p); err != nil {
		s.writeError(w, r, err, "failed to save pricing policy")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleCalc(w http.ResponseWriter, r *http.Request) {
	var in quotes.CalcInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := s.svc.Calculate(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err, "failed to calculate quote")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleQuoteCreate(w http.ResponseWriter, r *http.Request) {
	var in quotes.QuoteInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := s.svc.QuoteRequest(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err, "failed to save quotation")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *server) handleQuoteLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Latest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "failed to load quotation")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) handleQuoteText(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Latest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "failed to load quotation")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, quotes.RenderText(snap))
}

func (s *server) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	items, err := s.svc.List(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err, "failed to load quotes")
		return
	}
	if items == nil {
		items = []quotes.ListItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "quotes": items})
}

func (s *server) handleDraftPatch(w http.ResponseWriter, r *http.Request) {
	var u pricing.DraftUpdate
	if !decodeJSON(w, r, &u) {
		return
	}
	res, err := s.svc.ApplyDraft(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		s.writeError(w, r, err, "failed to update draft")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleDraftGet(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Draft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "failed to load draft")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeError maps domain errors to status codes. Anything unrecognised is logged and reported
// as a 500 with msg.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr *pricing.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid input", Fields: verr.Fields})
	case errors.Is(err, quotes.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	default:
		s.logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg(msg)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
