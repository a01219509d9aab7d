package app

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"orderflow-engine/internal/config"
	"orderflow-engine/internal/engine"
	"orderflow-engine/internal/transport"
)

// App aggregates configuration and the assembled Engine for the CLI
// commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	eng *engine.Engine
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openEngine(ctx context.Context) (*engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	eng, err := engine.New(ctx, a.Config, a.Logger)
	if err != nil {
		return nil, err
	}
	a.eng = eng
	return eng, nil
}

// Run starts the processor loop and, if enabled, the ingest and query
// transport servers, all under one errgroup so any sub-pipeline's fatal
// error shuts the others down (the clean-shutdown check mirrors how
// peer services in this stack coordinate several long-running
// goroutines off a shared context).
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info().Msg("starting processor loop")
		err := eng.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("processor loop: %w", err)
	})

	var ingestSrv, querySrv *http.Server

	if a.Config.Ingest.Enabled {
		mux := http.NewServeMux()
		mux.Handle(a.Config.Ingest.Path, transport.NewIngestServer(eng, a.Logger))
		ingestSrv = &http.Server{Addr: a.Config.Ingest.Addr, Handler: mux}
		g.Go(func() error {
			a.Logger.Info().Str("addr", ingestSrv.Addr).Msg("starting ingest server")
			err := ingestSrv.ListenAndServe()
			if gctx.Err() != nil || err == http.ErrServerClosed {
				return nil
			}
			return fmt.Errorf("ingest server: %w", err)
		})
	}

	if a.Config.Query.Enabled {
		mux := http.NewServeMux()
		mux.Handle(a.Config.Query.Path, transport.NewQueryServer(eng, a.Logger))
		querySrv = &http.Server{Addr: a.Config.Query.Addr, Handler: mux}
		g.Go(func() error {
			a.Logger.Info().Str("addr", querySrv.Addr).Msg("starting query server")
			err := querySrv.ListenAndServe()
			if gctx.Err() != nil || err == http.ErrServerClosed {
				return nil
			}
			return fmt.Errorf("query server: %w", err)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ingestSrv != nil {
			_ = ingestSrv.Shutdown(shutdownCtx)
		}
		if querySrv != nil {
			_ = querySrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical quotes.
type ExportOptions struct {
	Ticker    string
	From      *time.Time
	To        *time.Time
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Ticker          string
	History         string
	IncludePatterns bool
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	CSVPath string
	DryRun  bool
}

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	Scenario string
	Ticker   string
}
