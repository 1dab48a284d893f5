package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"Facestab/internal/auth"
	"Facestab/internal/calc/batch"
	"Facestab/internal/calc/facestab"
	"Facestab/internal/calc/importer"
	"Facestab/internal/calc/report"
	"Facestab/internal/config"
	"Facestab/internal/logging"
	"Facestab/internal/repo"
)

var wg sync.WaitGroup

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusWriter remembers the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// requestLogger logs each API call, with the token subject when one was verified.
func requestLogger(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			attrs := []any{"method", r.Method, "path", r.URL.Path, "status", sw.status, "took", time.Since(start)}
			if sub, ok := auth.Subject(r.Context()); ok {
				attrs = append(attrs, "subject", sub)
			}
			log.Info("request", attrs...)
		})
	}
}

// newRouter wires every API route. store may be nil, in which case results
// are not recorded and the analyses routes are not mounted.
func newRouter(cfg *config.Config, store repo.Repository, log *slog.Logger) *mux.Router {
	rn := cfg.Runner(log)
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		facestab.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	limiter := auth.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(limiter.LimitMiddleware)
	if cfg.Server.TokenKey != "" {
		tokens := &auth.TokenAuth{Key: []byte(cfg.Server.TokenKey)}
		api.Use(tokens.Middleware)
	}
	api.Use(requestLogger(log))

	calcH := &facestab.Handler{Runner: rn}
	if store != nil {
		calcH.Recorder = repo.Recorder{Repo: store}
	}
	reportH := &report.Handler{Runner: rn}
	batchH := &batch.Handler{Runner: rn}
	importH := &importer.Handler{Runner: rn}

	api.HandleFunc("/presets", calcH.Presets).Methods("GET")

	tools := api.PathPrefix("/tools/facestab").Subrouter()
	tools.HandleFunc("/calc", calcH.Calc).Methods("POST")
	tools.HandleFunc("/report/pdf", reportH.Generate).Methods("POST")
	tools.HandleFunc("/report/md", reportH.Markdown).Methods("POST")
	tools.HandleFunc("/batch", batchH.Calc).Methods("POST")
	tools.HandleFunc("/import", importH.Import).Methods("POST")
	tools.HandleFunc("/import/template", importH.Template).Methods("GET")
	tools.HandleFunc("/export/xlsx", importH.Export).Methods("POST")

	if store != nil {
		analysesH := &repo.Handler{Repo: store}
		api.HandleFunc("/analyses", analysesH.List).Methods("GET")
		api.HandleFunc("/analyses/{id}", analysesH.Get).Methods("GET")
	}
	return r
}

func main() {
	path := os.Getenv("FACESTAB_CONFIG")
	if path == "" {
		path = "facestab.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.NoColor)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := repo.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Error("open store", "driver", cfg.Store.Driver, "err", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: CORS(newRouter(cfg, store, log)),
	}

	tls := cfg.Server.TLSCert != "" && cfg.Server.TLSKey != ""
	log.Info("starting server", "addr", cfg.Server.Addr, "tls", tls, "store", cfg.Store.Driver)

	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		if tls {
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, closing active connections")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
	wg.Wait()
	log.Info("server stopped")
}
