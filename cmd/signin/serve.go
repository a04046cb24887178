// cmd/signin/serve.go
//
// `signin serve` – HTTP entry point.
//
// Start-up
// --------
//
//  1. Config, then the daily rotating logger (tees to console in a TTY).
//  2. Auth endpoint client, CSRF signer, request-info enricher.
//  3. Optional audit DB (database.dsn).
//  4. Session store, view engine, component mount.
//  5. errgroup: HTTP server, session evictor, and shutdown watcher.  SIGINT
//     or SIGTERM cancels the group; open forms are closed on the way out.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/signin/internal/audit"
	"github.com/yanizio/signin/internal/authclient"
	"github.com/yanizio/signin/internal/component"
	"github.com/yanizio/signin/internal/config"
	"github.com/yanizio/signin/internal/database"
	"github.com/yanizio/signin/internal/form"
	"github.com/yanizio/signin/internal/logger"
	"github.com/yanizio/signin/internal/middleware"
	"github.com/yanizio/signin/internal/requestinfo"
	"github.com/yanizio/signin/internal/server"
	"github.com/yanizio/signin/internal/session"
	"github.com/yanizio/signin/internal/signin"
	"github.com/yanizio/signin/internal/view"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sign-in page and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.Paths.Root, runningInTTY(), cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	//
	// ── 1.  Outbound client, CSRF, request info ─────────────────────────
	//
	authCli, err := authclient.New(cfg.Auth.Endpoint, authclient.WithTimeout(cfg.Auth.Timeout))
	if err != nil {
		return err
	}

	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}

	var infoOpts []requestinfo.Option
	if cfg.HTTP.TrustProxy {
		infoOpts = append(infoOpts, requestinfo.WithTrustedProxy())
	}
	enricher, err := requestinfo.NewEnricher(cfg.GeoIP.DBPath, infoOpts...)
	if err != nil {
		return err
	}
	defer enricher.Close()

	//
	// ── 2.  Optional audit DB ───────────────────────────────────────────
	//
	deps := component.Deps{Config: cfg, Log: log, CSRF: signer, Info: enricher}
	if cfg.Database.DSN != "" {
		db, err := database.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("audit database: %w", err)
		}
		defer db.Close()
		deps.DB = db
		deps.Audit = audit.New(db)
		log.Infow("sign-in audit enabled")
	}

	//
	// ── 3.  Sessions, views, routes ─────────────────────────────────────
	//
	deps.Sessions = session.New(session.Options{
		IdleTTL:      cfg.Session.IdleTTL,
		MaxEntries:   cfg.Session.MaxEntries,
		SecureCookie: cfg.HTTP.ForceHTTPS,
	}, func() *signin.Controller { return signin.NewController(authCli, log) })
	deps.Views = view.New(cfg.Paths.Templates)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(log))
	r.Use(middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS, cfg.HTTP.TrustProxy))
	r.Use(middleware.Security)
	r.Use(enricher.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/signin", http.StatusFound)
	})
	if err := component.Mount(ctx, r, deps); err != nil {
		return err
	}

	//
	// ── 4.  Run until signalled ─────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, r, cfg.Auth.Timeout)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return deps.Sessions.Run(gctx, cfg.Session.EvictInterval) })
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		log.Infow("shutting down")
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// newSigner decodes csrf.key, or falls back to an ephemeral key.
func newSigner(cfg *config.Config) (*form.Signer, error) {
	if cfg.CSRF.Key == "" {
		return form.NewSigner(nil)
	}
	key, err := config.DecodeCSRFKey(cfg.CSRF.Key)
	if err != nil {
		return nil, err
	}
	return form.NewSigner(key)
}

// requestLogger attaches a request-scoped logger and writes one access line
// per request.
func requestLogger(base *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base.With("request_id", chimw.GetReqID(r.Context()))
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), l)))

			l.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
