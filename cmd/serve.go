package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/monitoring"
	"github.com/sells-group/tcsync/internal/progress"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for triggering and watching imports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		registry := progress.NewRegistry()
		coord := newCoordinator(initXray(), st, registry.Publish)
		nc := initNotion()

		srv := newImportServer(ctx, coord, registry)
		srv.afterBatch = func(results []model.RecordResult) {
			writeBack(context.Background(), st, nc, results)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second

		var background []func(context.Context)
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st, time.Duration(cfg.Monitoring.StaleRunMinutes)*time.Minute),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			background = append(background, checker.Run)
		}

		return runServer(ctx, &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}, srv, shutdownTimeout, background...)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runServer serves until ctx is cancelled, then shuts down and waits for
// running batches up to timeout. Background loops share the server lifetime.
func runServer(ctx context.Context, hs *http.Server, srv *importServer, timeout time.Duration, background ...func(context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, fn := range background {
		g.Go(func() error {
			fn(gctx)
			return nil
		})
	}

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", hs.Addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		if !srv.wait(shutdownCtx) {
			zap.L().Warn("import batches still running at shutdown")
		}
		return nil
	})

	return g.Wait()
}

// batchRunner runs a batch of stored records.
type batchRunner interface {
	RunBatchByID(ctx context.Context, ids []string) []model.RecordResult
}

// importServer exposes import triggering and progress snapshots over HTTP.
type importServer struct {
	ctx        context.Context
	runner     batchRunner
	registry   *progress.Registry
	afterBatch func([]model.RecordResult)
	batches    sync.WaitGroup
}

func newImportServer(ctx context.Context, runner batchRunner, registry *progress.Registry) *importServer {
	return &importServer{ctx: ctx, runner: runner, registry: registry}
}

func (s *importServer) routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/imports", func(r chi.Router) {
		r.Post("/", s.handleStart)
		r.Get("/", s.handleList)
		r.Get("/{recordID}", s.handleGet)
		r.Delete("/{recordID}", s.handleDismiss)
	})
	return r
}

// snapshotView is a progress snapshot with its completion percentage.
type snapshotView struct {
	model.ProgressState
	Percent float64 `json:"percent"`
}

func viewOf(p model.ProgressState) snapshotView {
	return snapshotView{ProgressState: p, Percent: p.Percent()}
}

func (s *importServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *importServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecordIDs []string `json:"record_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids := make([]string, 0, len(req.RecordIDs))
	for _, id := range req.RecordIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "record_ids is required")
		return
	}

	for _, id := range ids {
		s.registry.Watch(id)
	}

	s.batches.Add(1)
	go func() {
		defer s.batches.Done()
		results := s.runner.RunBatchByID(s.ctx, ids)
		if s.afterBatch != nil {
			s.afterBatch(results)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "accepted",
		"record_ids": ids,
	})
}

func (s *importServer) handleList(w http.ResponseWriter, _ *http.Request) {
	snaps := s.registry.List()
	out := make([]snapshotView, len(snaps))
	for i, p := range snaps {
		out[i] = viewOf(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *importServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")
	p, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no import progress for "+id)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// handleDismiss hides a snapshot. The import itself keeps running.
func (s *importServer) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")
	if !s.registry.Dismiss(id) {
		writeError(w, http.StatusNotFound, "no import progress for "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// wait blocks until running batches finish or ctx is done. It reports
// whether all batches finished.
func (s *importServer) wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		s.batches.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
