package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/gate"
	apimw "github.com/hamed0406/covidrefresh/internal/httpapi/middleware"
)

type HistoryReader interface {
	History(ctx context.Context, table string, limit int) ([]domain.Commit, error)
}

type RunReader interface {
	LatestRun(ctx context.Context) (*domain.RunOutcome, error)
}

type GateEvaluator interface {
	Evaluate(ctx context.Context) gate.Decision
}

type Trigger interface {
	RunNow(ctx context.Context) (domain.RunOutcome, error)
}

type Server struct {
	Logger      *zap.Logger
	History     HistoryReader
	Runs        RunReader
	Gate        GateEvaluator
	Trigger     Trigger // nil disables POST /api/runs
	ArchivePath string
	Tables      []string // tables whose history may be queried; the first is the default
}

func NewServer(l *zap.Logger, h HistoryReader, runs RunReader, g GateEvaluator, archivePath string, tables ...string) *Server {
	return &Server{Logger: l, History: h, Runs: runs, Gate: g, ArchivePath: archivePath, Tables: tables}
}

// Router mounts the status API. An empty origins list allows any origin.
func (s *Server) Router(keys apimw.Keys, origins []string, reqPerMin, burst int) http.Handler {
	r := chi.NewRouter()
	if len(origins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(reqPerMin, burst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/gate", s.handleGate)
		r.Get("/history", s.handleHistory)
		r.Get("/history/{table}", s.handleHistory)
		r.Get("/runs/latest", s.handleLatestRun)
		r.Get("/archive", s.handleArchive)

		r.With(apimw.RequireAdmin(keys)).Post("/runs", s.handleTrigger)
	})

	return r
}

func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	if s.Gate == nil {
		writeError(w, http.StatusNotImplemented, "gate not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.Gate.Evaluate(r.Context()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if table == "" && len(s.Tables) > 0 {
		table = s.Tables[0]
	}
	if !s.knownTable(table) {
		writeError(w, http.StatusNotFound, "unknown table")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}

	h, err := s.History.History(r.Context(), table, limit)
	if err != nil {
		s.Logger.Warn("api_history_error", zap.String("table", table), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history error")
		return
	}
	if h == nil {
		h = []domain.Commit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "commits": h})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Runs.LatestRun(r.Context())
	if err != nil {
		s.Logger.Warn("api_latest_run_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "run lookup error")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no runs yet")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.ArchivePath)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "no archive yet")
			return
		}
		s.Logger.Warn("api_archive_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "archive error")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "no archive yet")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(s.ArchivePath)+`"`)
	http.ServeContent(w, r, filepath.Base(s.ArchivePath), info.ModTime(), f)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.Trigger == nil {
		writeError(w, http.StatusNotImplemented, "manual runs disabled")
		return
	}
	out, err := s.Trigger.RunNow(r.Context())
	if err != nil {
		s.Logger.Warn("api_trigger_error", zap.String("run_id", out.RunID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{"run": out, "error": err.Error()})
		return
	}
	s.Logger.Info("api_triggered_run", zap.String("run_id", out.RunID), zap.String("status", string(out.Status)))
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) knownTable(t string) bool {
	for _, k := range s.Tables {
		if k == t {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
