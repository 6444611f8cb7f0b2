package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aliuyar1234/cartshare/internal/audit"
	"github.com/aliuyar1234/cartshare/internal/config"
	"github.com/aliuyar1234/cartshare/internal/db"
	"github.com/aliuyar1234/cartshare/internal/invitations"
	"github.com/aliuyar1234/cartshare/internal/items"
	"github.com/aliuyar1234/cartshare/internal/lists"
	"github.com/aliuyar1234/cartshare/internal/push"
	"github.com/aliuyar1234/cartshare/internal/replacements"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/aliuyar1234/cartshare/internal/store/memstore"
	"github.com/aliuyar1234/cartshare/internal/store/pgstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Services groups the model services shared by the HTTP layer and jobs.
type Services struct {
	Lists        *lists.Service
	Items        *items.Service
	Replacements *replacements.Service
	Invitations  *invitations.Service
	Notifier     *push.Notifier
	Auditor      *audit.Writer
	Activity     *audit.Reader
}

// NewServices wires the model services on top of st.
func NewServices(cfg *config.Config, st store.Store) *Services {
	var sink push.Sink = push.NopSink{}
	if cfg.PushURL != "" {
		sink = push.NewExpoClient(cfg.PushURL, cfg.PushTimeoutMS)
	}
	notifier := push.NewNotifier(sink, st)
	auditor := audit.NewWriter(st)

	ls := lists.NewService(st, auditor)
	is := items.NewService(st, ls)
	return &Services{
		Lists:        ls,
		Items:        is,
		Replacements: replacements.NewService(st, ls, is, notifier),
		Invitations:  invitations.NewService(st, ls, notifier, auditor, cfg.InviteTTL()),
		Notifier:     notifier,
		Auditor:      auditor,
		Activity:     audit.NewReader(st, st),
	}
}

// App holds the application state
type App struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Store    store.Store
	Services *Services
	Router   http.Handler

	server *http.Server
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	setupLogger(cfg)

	log.Info().Msg("Initializing cartshare")
	log.Info().Interface("config", cfg.RedactedValues()).Msg("Configuration loaded")

	app := &App{Config: cfg}

	switch cfg.Store {
	case config.StoreMemory:
		log.Warn().Msg("Using in-memory store: data is lost on restart")
		app.Store = memstore.New()
	default:
		log.Info().Msg("Connecting to database...")
		pool, err := db.Connect(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info().Msg("Database connection established")

		if cfg.IsDev() {
			log.Info().Msg("Development mode: running migrations automatically")
			if _, err := db.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		} else {
			log.Info().Msg("Production mode: migrations must be run manually")
		}

		st, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to start change feed: %w", err)
		}
		app.DB = pool
		app.Store = st
	}

	app.Services = NewServices(cfg, app.Store)
	app.Router = NewRouter(cfg, app.Store, app.Services)

	log.Info().Msg("Application initialized successfully")
	return app, nil
}

// Start starts the HTTP server and blocks until it stops.
func (a *App) Start() error {
	addr := a.Config.HTTPAddr
	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	// no WriteTimeout: it would cut long-lived feed connections
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the store.
func (a *App) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down application")

	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	a.Close()
	return err
}

// Close releases the store and waits for pending push deliveries.
func (a *App) Close() {
	if a.Services != nil {
		a.Services.Notifier.Wait()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.DB != nil {
		log.Info().Msg("Closing database connection")
		a.DB.Close()
	}
}

// setupLogger configures the global logger
func setupLogger(cfg *config.Config) {
	if cfg.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	switch cfg.LogLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Debug().Str("level", cfg.LogLevel).Msg("Logger configured")
}
