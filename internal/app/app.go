package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"pagebuilder/internal/api"
	"pagebuilder/internal/config"
	"pagebuilder/internal/pagestore"
	"pagebuilder/internal/secret"
	"pagebuilder/internal/service"
	"pagebuilder/internal/siteapi"
	"pagebuilder/internal/storage"
	"pagebuilder/internal/tenant"
)

// App wires configuration, stores and services together. The HTTP server,
// the MCP server and the CLI commands all run on top of one App.
type App struct {
	cfg *config.Config

	db      *storage.DB // SQL page store and drafts
	pages   pagestore.Store
	closers []func(context.Context) error

	Tenant   *tenant.Store
	Hub      *api.Hub
	Sessions *service.SessionService
	Autosave *service.AutosaveService
	Watch    *service.WatchService

	watcher service.PageWatcher
}

// New creates a new App.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Startup opens the configured stores and builds the services.
func (a *App) Startup(ctx context.Context) error {
	a.Tenant = tenant.NewStore(secret.New(a.cfg.Secrets.Backend, a.cfg.Secrets.Dir))
	if err := a.Tenant.Hydrate(); err != nil {
		logrus.WithError(err).Warn("could not restore tenant session")
	}

	pages, err := a.openPageStore(ctx)
	if err != nil {
		a.Shutdown(ctx)
		return err
	}
	a.pages = pages

	if a.db == nil {
		db, err := storage.Open(storage.Options{Path: filepath.Join(a.cfg.DataDir, "drafts.db")})
		if err != nil {
			a.Shutdown(ctx)
			return fmt.Errorf("open draft store: %w", err)
		}
		a.db = db
	}

	a.Hub = api.NewHub(0)
	emitter := service.MultiEmitter{service.LogEmitter{}, a.Hub}

	a.Sessions = service.NewSessionService(
		pagestore.NewAdapter(a.pages, nil),
		emitter,
		service.SessionOptions{HistoryLimit: a.cfg.Editor.HistoryLimit},
	)
	a.Autosave = service.NewAutosaveService(
		a.Sessions,
		storage.NewDraftStore(a.db, a.cfg.Autosave.MaxDrafts),
		emitter,
		a.cfg.Autosave.Schedule,
	)
	a.Watch = service.NewWatchService(a.Sessions, emitter)

	logrus.WithFields(logrus.Fields{
		"storage":  a.cfg.Storage.Backend,
		"data_dir": a.cfg.DataDir,
	}).Info("app started")
	return nil
}

// StartBackground starts autosave and the page watcher when configured.
func (a *App) StartBackground(ctx context.Context) error {
	if a.cfg.Autosave.Enabled {
		if err := a.Autosave.Start(ctx); err != nil {
			return err
		}
	}
	if a.watcher != nil {
		if err := a.Watch.Attach(ctx, a.watcher); err != nil {
			return fmt.Errorf("watch pages: %w", err)
		}
	}
	return nil
}

func (a *App) openPageStore(ctx context.Context) (pagestore.Store, error) {
	sc := a.cfg.Storage
	switch sc.Backend {
	case config.BackendSiteAPI:
		return siteapi.New(sc.SiteAPI.BaseURL, a.Tenant, sc.SiteAPI.Timeout.Duration), nil

	case config.BackendSQL:
		db, err := storage.Open(storage.Options{
			Driver:   storage.Driver(sc.SQL.Driver),
			Path:     sc.SQL.Path,
			DSN:      sc.SQL.DSN,
			Host:     sc.SQL.Host,
			Port:     sc.SQL.Port,
			User:     sc.SQL.User,
			Password: sc.SQL.Password,
			Database: sc.SQL.Database,
			SSLMode:  sc.SQL.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("open sql page store: %w", err)
		}
		a.db = db
		return storage.NewPageStore(db), nil

	case config.BackendMongo:
		m, err := storage.OpenMongo(ctx, sc.Mongo.URI, sc.Mongo.Database, sc.Mongo.Collection)
		if err != nil {
			return nil, fmt.Errorf("open mongo page store: %w", err)
		}
		a.closers = append(a.closers, m.Close)
		return m, nil

	case config.BackendS3:
		o, err := storage.OpenS3(ctx, sc.S3.Bucket, sc.S3.Prefix, sc.S3.Region)
		if err != nil {
			return nil, fmt.Errorf("open s3 page store: %w", err)
		}
		return o, nil

	case config.BackendFile:
		f, err := storage.NewFilePageStore(sc.File.Dir)
		if err != nil {
			return nil, err
		}
		if sc.File.Watch {
			a.watcher = f
		}
		a.closers = append(a.closers, func(context.Context) error { return f.Close() })
		return f, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
}

// Shutdown stops background work, waits for outstanding saves and closes
// the stores.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Autosave != nil {
		a.Autosave.Stop()
	}
	if a.Sessions != nil {
		a.Sessions.Shutdown(ctx)
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	return errors.Join(errs...)
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Server builds the HTTP API over the app's services.
func (a *App) Server() *api.Server {
	return api.New(api.Deps{
		Sessions:       a.Sessions,
		Autosave:       a.Autosave,
		Hub:            a.Hub,
		AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
	})
}
