package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"plancal/internal/api"
	"plancal/internal/config"
	"plancal/internal/layout"
	"plancal/internal/provider"
	"plancal/internal/provider/caldav"
	"plancal/internal/provider/google"
	"plancal/internal/recur"
	"plancal/internal/store"
	syncer "plancal/internal/sync"
	"plancal/internal/window"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "plancal",
		Usage: "Calendar server with local-first sync against a remote provider.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "plancal.yaml", Usage: "Path to the YAML config file."},
		},
		Commands: []*cli.Command{
			serveCommand(),
			syncCommand(),
			agendaCommand(),
			authCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// app bundles the wired services shared by the commands.
type app struct {
	logger      *slog.Logger
	cfg         *config.Config
	store       store.Store
	reconciler  *syncer.Reconciler
	scheduler   *syncer.Scheduler
	rescheduler *syncer.Rescheduler
	location    *time.Location
}

func buildApp(c *cli.Context) (*app, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := setupLogger(logLevel)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	var st store.Store
	if cfg.StorePath != "" {
		st, err = store.NewSQLiteStore(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
	} else {
		logger.Warn("No store_path configured, events will not survive a restart.")
		st = store.NewMemoryStore()
	}

	prov, err := buildProvider(c, logger, cfg)
	if err != nil {
		return nil, err
	}
	if prov != nil {
		logger.Info("Remote provider configured.", "source", prov.Name())
	}

	rec := syncer.NewReconciler(logger, st, prov)
	windowFn := func() window.Range {
		return window.Resolve(time.Now().In(loc), window.ViewWeek, cfg.WeekStartDay())
	}
	sched := syncer.NewScheduler(logger, rec, windowFn, cfg.SyncInterval())

	return &app{
		logger:      logger,
		cfg:         cfg,
		store:       st,
		reconciler:  rec,
		scheduler:   sched,
		rescheduler: syncer.NewRescheduler(logger, st, rec),
		location:    loc,
	}, nil
}

// buildProvider picks the remote provider from the config; credentials come
// from the environment.
func buildProvider(c *cli.Context, logger *slog.Logger, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider.Kind {
	case "":
		return nil, nil
	case "rest":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: os.Getenv("PLANCAL_API_TOKEN")})
		return provider.NewRESTProvider("rest", cfg.Provider.BaseURL, ts), nil
	case "google":
		prov, err := google.New(c.Context, logger,
			os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"),
			cfg.Provider.TokenFile, cfg.Provider.CalendarID)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client, did you run the auth command? %w", err)
		}
		return prov, nil
	case "caldav":
		prov, err := caldav.New(c.Context, logger, cfg.Provider.BaseURL,
			os.Getenv("CALDAV_USERNAME"), os.Getenv("CALDAV_PASSWORD"),
			cfg.Provider.CalendarName)
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		return prov, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server with periodic background sync.",
		Action: func(c *cli.Context) error {
			a, err := buildApp(c)
			if err != nil {
				return err
			}
			defer a.store.Close()

			layoutCfg := layout.Config{HourHeight: a.cfg.HourHeight, MinEventHeight: a.cfg.MinEventHeight}
			srv := api.NewServer(a.logger, a.store, a.reconciler, a.scheduler, a.rescheduler,
				a.cfg.WeekStartDay(), layoutCfg, a.location,
				time.Duration(a.cfg.DragSnapMinutes)*time.Minute)

			a.scheduler.Start(c.Context)
			defer a.scheduler.Stop()

			httpSrv := &http.Server{Addr: a.cfg.Listen, Handler: srv.Handler()}
			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("HTTP server listening.", "addr", a.cfg.Listen)
				errCh <- httpSrv.ListenAndServe()
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return fmt.Errorf("http server failed: %w", err)
			case sig := <-stop:
				a.logger.Info("Shutting down.", "signal", sig.String())
				return httpSrv.Close()
			}
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run the reconciliation cycle against the configured provider.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run the sync cycle once and exit."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Run sync every N seconds. Overrides --once."},
		},
		Action: func(c *cli.Context) error {
			a, err := buildApp(c)
			if err != nil {
				return err
			}
			defer a.store.Close()

			if !a.reconciler.Connected() {
				return fmt.Errorf("no provider configured, nothing to sync")
			}

			// --watch flag takes precedence
			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				a.logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for ; true; <-ticker.C {
					if err := a.scheduler.SyncNow(c.Context); err != nil {
						a.logger.Error("Sync cycle failed", "error", err)
					}
				}
			} else { // --once is the default behavior if --watch is not set
				a.logger.Info("Running a single sync cycle.")
				if err := a.scheduler.SyncNow(c.Context); err != nil {
					return fmt.Errorf("single sync cycle failed: %w", err)
				}
			}

			return nil
		},
	}
}

func agendaCommand() *cli.Command {
	return &cli.Command{
		Name:  "agenda",
		Usage: "Print the events of the current window, repeats expanded.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "view", Value: "week", Usage: "Window to print: day, week or month."},
		},
		Action: func(c *cli.Context) error {
			a, err := buildApp(c)
			if err != nil {
				return err
			}
			defer a.store.Close()

			view := window.View(c.String("view"))
			if !view.Valid() {
				return fmt.Errorf("unknown view %q", c.String("view"))
			}
			win := window.Resolve(time.Now().In(a.location), view, a.cfg.WeekStartDay())

			events, err := a.store.Query(c.Context, win.Start, win.End)
			if err != nil {
				return fmt.Errorf("failed to query events: %w", err)
			}
			occurrences, err := recur.ExpandAll(events, win)
			if err != nil {
				return fmt.Errorf("failed to expand repeats: %w", err)
			}

			fmt.Printf("%s - %s\n", win.Start.Format("Mon Jan 2"), win.End.Format("Mon Jan 2"))

			// Day view prints the packed columns the UI would render.
			columns := map[string]layout.Box{}
			if view == window.ViewDay {
				items := make([]layout.Item, len(occurrences))
				for i, occ := range occurrences {
					items[i] = layout.Item{ID: occ.EventID, Start: occ.Start, End: occ.End}
				}
				cfg := layout.Config{HourHeight: a.cfg.HourHeight, MinEventHeight: a.cfg.MinEventHeight}
				for _, box := range layout.Day(items, win.Start, cfg) {
					columns[box.ID] = box
				}
			}

			for _, occ := range occurrences {
				when := occ.Start.Format("Mon Jan 2") + "  all day"
				if !occ.Event.AllDay {
					when = fmt.Sprintf("%s  %s-%s", occ.Start.Format("Mon Jan 2"),
						occ.Start.Format("15:04"), occ.End.Format("15:04"))
				}
				if box, ok := columns[occ.EventID]; ok {
					fmt.Printf("  %s  [col %d/%d]  %s\n", when, box.Column+1, box.Columns, occ.Event.Title)
					continue
				}
				fmt.Printf("  %s  %s\n", when, occ.Event.Title)
			}
			if len(occurrences) == 0 {
				fmt.Println("  (no events)")
			}
			return nil
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			oauthCfg := google.OAuthConfig(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.Exchange(c.Context, oauthCfg, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			tokenFile := cfg.Provider.TokenFile
			if tokenFile == "" {
				tokenFile = "token.json"
			}
			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
