package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
)

type Server struct {
	ds   *Dataset
	cfg  *config.DashboardConfig
	log  *slog.Logger
	page *template.Template
}

func NewServer(ds *Dataset, cfg *config.DashboardConfig, log *slog.Logger) *Server {
	return &Server{
		ds:   ds,
		cfg:  cfg,
		log:  log,
		page: template.Must(template.New("dashboard").Funcs(templateFuncs).Parse(dashboardTemplate)),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.ReadTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.ReadTimeout))
	}

	r.Get("/", s.handleIndex)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/columns", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.ds.Columns)
		})
		r.Get("/columns/{column}/top", s.handleTop)
		r.Get("/preview", s.handlePreview)
	})
	return r
}

// Run serves the dashboard until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting dashboard on port "+s.cfg.Port, slog.Int("rows", len(s.ds.Rows)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}
	s.log.Info("stopping dashboard...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type slice struct {
	ValueCount
	Color string
	From  float64
	To    float64
}

type indexView struct {
	Columns  []string
	Selected string
	Top      []ValueCount
	MaxCount int
	Slices   []slice
	Preview  [][]string
}

var palette = []string{"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac"}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := indexView{Columns: s.ds.Columns, Preview: s.ds.Preview(s.cfg.PreviewRows)}
	if len(s.ds.Columns) > 0 {
		view.Selected = s.ds.Columns[0]
	}
	if c := r.URL.Query().Get("column"); c != "" {
		view.Selected = c
	}

	if view.Selected != "" {
		top, err := s.ds.TopValues(view.Selected, s.cfg.TopN)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		view.Top = top
		var from float64
		for i, vc := range top {
			view.MaxCount = max(view.MaxCount, vc.Count)
			to := from + vc.Share*100
			view.Slices = append(view.Slices, slice{ValueCount: vc, Color: palette[i%len(palette)], From: from, To: to})
			from = to
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, view); err != nil {
		s.log.Error("failed to render dashboard.", slog.String("err", err.Error()))
	}
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	column, err := url.PathUnescape(chi.URLParam(r, "column"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := intQuery(r, "n", s.cfg.TopN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	top, err := s.ds.TopValues(column, n)
	if err != nil {
		if errors.Is(err, ErrUnknownColumn) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"column": column, "values": top})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	n, err := intQuery(r, "rows", s.cfg.PreviewRows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": s.ds.Columns, "rows": s.ds.Preview(n)})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request served.",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsoniter.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
