package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"leadgen-engine/internal/apollo"
	"leadgen-engine/internal/bounce"
	"leadgen-engine/internal/cache"
	"leadgen-engine/internal/config"
	"leadgen-engine/internal/dispatch"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/export"
	"leadgen-engine/internal/httpapi"
	"leadgen-engine/internal/pacer"
	"leadgen-engine/internal/persist"
	"leadgen-engine/internal/pipeline"
	"leadgen-engine/internal/render"
	"leadgen-engine/internal/runner"
	"leadgen-engine/internal/scheduler"
	"leadgen-engine/internal/scrape"
	"leadgen-engine/internal/ses"
	"leadgen-engine/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "leadgen:", err)
		os.Exit(1)
	}
}

type flags struct {
	once      bool
	jobs      string
	reconcile bool
	export    string
}

func parseFlags() flags {
	var f flags
	flag.BoolVar(&f.once, "once", false, "run the pipeline once and exit")
	flag.StringVar(&f.jobs, "jobs", "", "comma-separated job posting ids to collect, then exit")
	flag.BoolVar(&f.reconcile, "reconcile", false, "recompute recruiter send counters from the email log and exit")
	flag.StringVar(&f.export, "export", "", "write an xlsx report of recruiters and the email log to this path and exit")
	flag.Parse()
	return f
}

func run() error {
	f := parseFlags()

	// Engine data dir: use env if provided, else local folder.
	dataDir := os.Getenv("LEADGEN_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	if err := config.LoadDotEnv(".env", filepath.Join(dataDir, ".env")); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		return fmt.Errorf("config bootstrap failed: %w", err)
	}

	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		cfg = config.ApplyEnv(cfg, nil, nil)
		if cfg.App.DataDir == "" {
			cfg.App.DataDir = dataDir
		}
		return cfg, nil
	}
	raw, err := loadCfg()
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", userCfgPath, err)
	}
	cfg, vr := config.NormalizeAndValidate(raw)

	log := newLogger(cfg.App.LogLevel)
	slog.SetDefault(log)
	for _, w := range vr.Warnings {
		log.Warn("config", "warning", w)
	}
	// setup errors abort before any processing
	if err := vr.Err(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	e, err := wire(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer e.close()

	switch {
	case f.export != "":
		return runExport(ctx, e.store, f.export, log)
	case f.reconcile:
		fixed, err := e.dispatcher.Reconcile(ctx)
		if err != nil {
			return err
		}
		log.Info("reconcile finished", "fixed", fixed)
		return nil
	case f.jobs != "":
		ids, err := parseJobIDs(f.jobs)
		if err != nil {
			return err
		}
		rep, err := e.runner.RunWith(ctx, func(ctx context.Context) *pipeline.Report {
			return e.pipeline.Collect(ctx, ids)
		})
		if err != nil {
			return err
		}
		logReport(log, rep)
		return nil
	case f.once:
		rep, err := e.runner.Run(ctx)
		if err != nil {
			return err
		}
		logReport(log, rep)
		return nil
	}

	return serve(ctx, stop, cfg, userCfgPath, loadCfg, e, log)
}

// engine holds the wired components of one process.
type engine struct {
	store      *persist.Service
	dispatcher *dispatch.Dispatcher
	pipeline   *pipeline.Pipeline
	runner     *runner.Runner
	hub        *events.Hub
	intake     *bounce.Intake // nil unless bounce intake is enabled
	closers    []func() error
}

func (e *engine) close() {
	for _, c := range e.closers {
		_ = c()
	}
}

func wire(ctx context.Context, cfg config.Config, db *store.DB, log *slog.Logger) (*engine, error) {
	e := &engine{hub: events.NewHub()}
	e.store = persist.New(db, log.With("component", "persist"))
	pc := pacer.New(cfg.ServiceDelays(), time.Second)

	var domains scrape.DomainCache = db
	if cfg.Cache.RedisURL != "" {
		c, err := cache.New(cfg.Cache.RedisURL, time.Duration(cfg.Cache.TTLHours)*time.Hour, db, log.With("component", "cache"))
		if err != nil {
			log.Warn("domain cache disabled", "err", err)
		} else {
			domains = c
			e.closers = append(e.closers, c.Close)
		}
	}

	scraper := scrape.NewClient(scrape.Config{
		BaseURL: cfg.Scrape.BaseURL,
		Cookie:  cfg.Scrape.Cookie,
		Timeout: time.Duration(cfg.Scrape.TimeoutSeconds) * time.Second,
	}, pc, domains, log.With("component", "scrape"))

	rend, err := render.New(render.Sender{Name: cfg.Sender.Name, Email: cfg.Sender.Email})
	if err != nil {
		return nil, err
	}

	var provider dispatch.Provider
	if cfg.SES.Enabled {
		p, err := ses.New(ctx, ses.Config{
			Region:    cfg.SES.Region,
			AccessKey: cfg.SES.AccessKey,
			SecretKey: cfg.SES.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		provider = p
	}
	e.dispatcher = dispatch.New(dispatch.Config{
		SenderName:       cfg.Sender.Name,
		SenderEmail:      cfg.Sender.Email,
		ConfigurationSet: cfg.SES.ConfigurationSet,
	}, provider, e.store, pc, log.With("component", "dispatch"))

	primary, err := pipeline.ParsePrimaryJob(cfg.Outreach.PrimaryJob)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Store:    e.store,
		Scraper:  scraper,
		Resolver: scraper,
		Searcher: scraper,
		Renderer: rend,
		OnUnit: func(runID string, o pipeline.Outcome) {
			e.hub.Publish(events.TypeUnit, runID, o)
		},
	}
	if cfg.Apollo.Enabled {
		deps.Finder = apollo.New(cfg.Apollo.BaseURL, cfg.Apollo.APIKey, pc, log.With("component", "apollo"))
	}
	if provider != nil {
		deps.Sender = e.dispatcher
	}

	e.pipeline = pipeline.New(pipeline.Config{
		SearchURLs: cfg.Scrape.SearchURLs,
		MaxItems:   cfg.Scrape.MaxItems,
		PrimaryJob: primary,
	}, deps, log.With("component", "pipeline"))
	e.runner = runner.New(e.pipeline, filepath.Join(cfg.App.DataDir, "leadgen.lock"), e.hub, log.With("component", "runner"))

	if cfg.Bounce.Enabled {
		mailbox := bounce.NewIMAP(bounce.IMAPConfig{
			Host:     cfg.Bounce.IMAPHost,
			Port:     cfg.Bounce.IMAPPort,
			Username: cfg.Bounce.Username,
			Password: cfg.Bounce.Password,
			Mailbox:  cfg.Bounce.Mailbox,
		}, log.With("component", "imap"))
		e.intake = bounce.NewIntake(mailbox, e.store, 50, log.With("component", "bounce"))
	}
	return e, nil
}

// serve runs the daily scheduler, the HTTP API and the bounce poller until
// ctx is cancelled or one of them fails.
func serve(ctx context.Context, stop context.CancelFunc, cfg config.Config, userCfgPath string,
	loadCfg func() (config.Config, error), e *engine, log *slog.Logger) error {

	clock, err := scheduler.ParseClock(cfg.Schedule.RunTime)
	if err != nil {
		return err
	}

	var cfgVal atomic.Value // stores config.Config
	cfgVal.Store(cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler.Daily(gctx, clock, cfg.Schedule.RunImmediately, "pipeline", e.runner.Task, log)
		return nil
	})

	if e.intake != nil {
		interval := time.Duration(cfg.Bounce.PollSeconds) * time.Second
		g.Go(func() error {
			scheduler.Every(gctx, interval, "bounce", func(ctx context.Context) error {
				n, err := e.intake.PollOnce(ctx)
				if n > 0 {
					e.hub.Publish(events.TypeBounces, "", map[string]int{"recorded": n})
				}
				return err
			}, log)
			return nil
		})
	}

	mux := httpapi.NewMux(httpapi.Deps{
		Leads:       e.store,
		Runner:      e.runner,
		Reconciler:  e.dispatcher,
		Hub:         e.hub,
		Log:         log.With("component", "http"),
		RunCtx:      gctx,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
	})

	token, err := shutdownToken(cfg.App.DataDir)
	if err != nil {
		return err
	}
	mux.HandleFunc("/shutdown", shutdownHandler(token, stop))

	// Bind to loopback only; the API is for a local UI.
	addr := net.JoinHostPort("127.0.0.1", fmt.Sprint(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info("engine listening", "addr", "http://"+addr, "db", redactDSN(cfg.Database.URL), "run_time", clock.String())

	srv := &http.Server{
		Handler:           httpapi.Handler(mux, log.With("component", "http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	log.Info("engine stopped")
	return err
}

func runExport(ctx context.Context, s *persist.Service, path string, log *slog.Logger) error {
	rs, err := s.Recruiters(ctx)
	if err != nil {
		return err
	}
	entries, err := s.EmailLog(ctx)
	if err != nil {
		return err
	}
	out, err := export.WriteFile(path, rs, entries)
	if err != nil {
		return err
	}
	log.Info("report written", "path", out, "recruiters", len(rs), "emails", len(entries))
	return nil
}
