package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kartpilot/internal/browser"
	"kartpilot/internal/checkout"
	"kartpilot/internal/config"
	"kartpilot/internal/process"
	"kartpilot/internal/server"
)

// rodSession adapts the concrete browser session to the orchestrator's
// session contract.
type rodSession struct {
	*browser.Session
}

func (s rodSession) Page() browser.Page {
	return s.Session.Page()
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	headless := flag.Bool("headless", false, "Run the browser headless")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *headless {
		cfg.Headless = true
	}
	if *debug {
		cfg.DebugMode = true
	}

	logger, err := newLogger(cfg.DebugMode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shots, err := browser.NewCapturer(cfg.DebugImagesDir)
	if err != nil {
		return fmt.Errorf("failed to set up screenshot dir: %w", err)
	}
	sessions, err := browser.NewSessionStore(cfg.SessionsDir)
	if err != nil {
		return fmt.Errorf("failed to set up session store: %w", err)
	}

	reg := process.NewRegistry()
	reg.SetUpdateDelay(cfg.StatusUpdateDelay())
	gates := process.NewGates()

	orch := checkout.New(cfg, logger, reg, gates, shots)
	orch.OnTerminal = server.ObserveTerminal
	orch.SetSessionFactory(sessions, func(state []byte) (checkout.Session, error) {
		sess, err := browser.Open(browser.Options{
			Headless:    cfg.Headless,
			ProfilePath: cfg.BrowserProfilePath,
		}, state)
		if err != nil {
			return nil, err
		}
		return rodSession{sess}, nil
	})

	srv := server.New(cfg, logger, reg, orch, sessions)
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		return httpSrv.ListenAndServe()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	// Terminal records are kept for post-mortem inspection, then dropped.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.JanitorInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := reg.EvictTerminal(cfg.RecordRetention()); n > 0 {
					logger.Info("evicted finished processes", zap.Int("count", n))
				}
			}
		}
	})

	return g.Wait()
}
