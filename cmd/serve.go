package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantic/fieldsat/internal/geo"
	"github.com/verdantic/fieldsat/internal/model"
	"github.com/verdantic/fieldsat/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored runs over a read-only HTTP API",
	Long: `Exposes the run store to dashboards and notebooks:

  GET /health
  GET /api/runs?status=&limit=&offset=
  GET /api/runs/{id}
  GET /api/runs/{id}/summary
  GET /api/runs/{id}/matches?matched=&limit=&offset=
  GET /api/regions

The API never mutates the store; matching stays in the CLI.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newAPIRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newAPIRouter builds the read-only results API over a store.
func newAPIRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", handleListRuns(st))
		r.Get("/runs/{id}", handleGetRun(st))
		r.Get("/runs/{id}/summary", handleGetSummary(st))
		r.Get("/runs/{id}/matches", handleGetMatches(st))
		r.Get("/regions", handleListRegions(st))
	})

	return r
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.RunFilter{
			Status: model.RunStatus(r.URL.Query().Get("status")),
			Limit:  queryInt(r, "limit", 50),
			Offset: queryInt(r, "offset", 0),
		}
		runs, err := st.ListRuns(r.Context(), filter)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func handleGetSummary(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if run.Summary == nil {
			writeError(w, http.StatusNotFound, "run has no summary yet")
			return
		}
		writeJSON(w, http.StatusOK, run.Summary)
	}
}

// matchesPage is the envelope of the matches endpoint; Count is the page
// size, not the run total.
type matchesPage struct {
	RunID   string        `json:"run_id"`
	Count   int           `json:"count"`
	Offset  int           `json:"offset"`
	Matches []model.Match `json:"matches"`
}

func handleGetMatches(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "id")

		// 404 on unknown runs, not an empty page.
		if _, err := st.GetRun(r.Context(), runID); err != nil {
			writeStoreError(w, err)
			return
		}

		filter := store.MatchFilter{
			Limit:  queryInt(r, "limit", 1000),
			Offset: queryInt(r, "offset", 0),
		}
		if v := r.URL.Query().Get("matched"); v != "" {
			matched, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "matched must be true or false")
				return
			}
			filter.Matched = &matched
		}

		matches, err := st.GetMatches(r.Context(), runID, filter)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if matches == nil {
			matches = []model.Match{}
		}
		writeJSON(w, http.StatusOK, matchesPage{
			RunID:   runID,
			Count:   len(matches),
			Offset:  filter.Offset,
			Matches: matches,
		})
	}
}

func handleListRegions(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		regions, err := st.ListRegions(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if regions == nil {
			regions = []geo.Region{}
		}
		writeJSON(w, http.StatusOK, regions)
	}
}

// queryInt parses a non-negative integer query parameter with a fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store errors to HTTP statuses without leaking
// internals: missing rows are 404, the rest 500.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("api: store", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
