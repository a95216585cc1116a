package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sitescore/internal/collect"
	"sitescore/internal/config"
	"sitescore/internal/httpapi"
	"sitescore/internal/logging"
	"sitescore/internal/notify"
	"sitescore/internal/orchestrate"
	"sitescore/internal/report"
	"sitescore/internal/score"
	"sitescore/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audit API server",
	Long: `Starts the HTTP API: audit submission, status polling and token-gated
report downloads. Audits run in-process against a shared headless Chrome
allocator with bounded concurrency; expired records are swept on an interval.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	log := logging.New("serve")

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	tiers := score.Default()
	if cfg.Audit.TiersPath != "" {
		tiers, err = score.Load(cfg.Audit.TiersPath)
		if err != nil {
			return fmt.Errorf("load tiers: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	runtime := collect.NewChromeRuntime(ctx)
	defer runtime.Close()

	collector, err := collect.New(runtime,
		collect.WithSearchURL(cfg.Search.URLTemplate),
		collect.WithLogger(logging.New("collect")),
	)
	if err != nil {
		return err
	}

	renderer, err := report.NewHTMLRenderer(cfg.Store.ReportDir)
	if err != nil {
		return err
	}

	opts := []orchestrate.Option{
		orchestrate.WithScorer(score.New(tiers)),
		orchestrate.WithRenderer(renderer),
		orchestrate.WithPoolSize(cfg.Audit.MaxConcurrent),
		orchestrate.WithTimeout(cfg.Audit.Timeout),
		orchestrate.WithRetention(cfg.Audit.Retention),
		orchestrate.WithSweepInterval(cfg.Audit.SweepInterval),
		orchestrate.WithLogger(logging.New("orchestrate")),
	}
	if cfg.Leads.WebhookURL != "" {
		notifier, err := notify.New(cfg.Leads.WebhookURL,
			notify.WithTimeout(cfg.Leads.Timeout),
			notify.WithLogger(logging.New("notify")),
		)
		if err != nil {
			return err
		}
		opts = append(opts, orchestrate.WithNotifier(notifier))
	}
	orch, err := orchestrate.New(st, collector, opts...)
	if err != nil {
		return err
	}
	defer orch.Close()

	go orch.RunSweeper(ctx)

	secret := []byte(cfg.Server.DownloadSecret)
	if len(secret) == 0 {
		secret = randomSecret()
		log.Warn("no download secret configured, links will not survive a restart")
	}
	api, err := httpapi.New(orch, secret, httpapi.WithLogger(logging.New("http")))
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: api.Routes()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("listening", "addr", cfg.Server.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", "error", err)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return []byte(hex.EncodeToString(buf))
}
