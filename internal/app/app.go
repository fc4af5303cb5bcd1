// Package app initializes and holds the long-lived services of the crawler,
// acting as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/auth"
	"github.com/ulritter/freelance-crawler/internal/backup"
	"github.com/ulritter/freelance-crawler/internal/config"
	"github.com/ulritter/freelance-crawler/internal/crawler"
	"github.com/ulritter/freelance-crawler/internal/executor"
	"github.com/ulritter/freelance-crawler/internal/logging"
	"github.com/ulritter/freelance-crawler/internal/metrics"
	"github.com/ulritter/freelance-crawler/internal/orchestrator"
	"github.com/ulritter/freelance-crawler/internal/publisher"
	pubsubpub "github.com/ulritter/freelance-crawler/internal/publisher/pubsub"
	"github.com/ulritter/freelance-crawler/internal/storage"
	"github.com/ulritter/freelance-crawler/internal/storage/gcs"
	"github.com/ulritter/freelance-crawler/internal/storage/local"
	"github.com/ulritter/freelance-crawler/internal/storage/memory"
	"github.com/ulritter/freelance-crawler/internal/storage/postgres"
	"github.com/ulritter/freelance-crawler/internal/store"
)

// runEventTopic names the Pub/Sub topic used for run completion events when
// the publisher does not pin one itself.
const runEventTopic = "crawl-runs"

// App holds all shared, long-lived services. It is built once at startup and
// handed to the commands that need it; every service is initialized fail-fast.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	pool      *pgxpool.Pool
	listings  store.ListingRepository
	users     *postgres.UserStore
	settings  store.SettingsRepository
	authSvc   *auth.Service
	docs      storage.Provider
	events    publisher.Publisher
	eventsCl  func() error
	renderer  crawler.Renderer
	orch      *orchestrator.Orchestrator
	backupRun *backup.Runner
}

// New builds the service container from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, err
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	if err := a.initDatabase(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initAuth(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initDocumentStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initOrchestrator(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initBackup(); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("crawler_mode", cfg.Crawler.Mode),
		zap.Int("sites", len(cfg.Sites)),
		zap.String("storage_provider", cfg.Storage.Provider),
	)
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Listings exposes the listing repository.
func (a *App) Listings() store.ListingRepository { return a.listings }

// Auth returns the login flow service, or nil when auth is not configured.
func (a *App) Auth() *auth.Service { return a.authSvc }

// Documents exposes the document blob store.
func (a *App) Documents() storage.Provider { return a.docs }

// Settings exposes the key/value settings repository.
func (a *App) Settings() store.SettingsRepository { return a.settings }

// Orchestrator returns the crawl run orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Backup returns the backup runner, or nil when no backup command is set.
func (a *App) Backup() *backup.Runner { return a.backupRun }

func (a *App) initDatabase(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
		MinConns: a.cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.pool = pool

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	listings, err := postgres.NewListingStore(pool)
	if err != nil {
		return err
	}
	users, err := postgres.NewUserStore(pool)
	if err != nil {
		return err
	}
	settings, err := postgres.NewSettingsStore(pool)
	if err != nil {
		return err
	}
	a.listings = listings
	a.users = users
	a.settings = settings
	return nil
}

func (a *App) initAuth() error {
	if a.cfg.Auth.Secret == "" {
		a.logger.Warn("auth.secret not set, authentication disabled")
		return nil
	}
	tokens, err := auth.NewTokenManager(a.cfg.Auth.Secret)
	if err != nil {
		return err
	}

	var mailer auth.Mailer
	if a.cfg.SMTP.User != "" {
		mailer, err = auth.NewSMTPMailer(auth.SMTPConfig{
			Host:     a.cfg.SMTP.Host,
			Port:     a.cfg.SMTP.Port,
			User:     a.cfg.SMTP.User,
			Password: a.cfg.SMTP.Password,
			From:     a.cfg.SMTP.From,
		})
		if err != nil {
			return fmt.Errorf("init mailer: %w", err)
		}
	} else {
		a.logger.Warn("smtp not configured, login codes are logged instead of mailed")
		mailer = auth.NewLogMailer(a.logger)
	}

	a.authSvc = auth.NewService(a.users, a.users, tokens, mailer, auth.ServiceConfig{
		AllowedEmailDomain: a.cfg.Auth.AllowedEmailDomain,
		CodeExpiry:         time.Duration(a.cfg.Auth.CodeExpiryMinutes) * time.Minute,
		SessionValidity:    time.Duration(a.cfg.Auth.SessionValidityMinutes) * time.Minute,
	}, a.logger)
	return nil
}

func (a *App) initDocumentStorage(ctx context.Context) error {
	switch a.cfg.Storage.Provider {
	case "local":
		docs, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
		a.docs = docs
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		docs, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return err
		}
		a.docs = docs
	case "memory":
		a.docs = memory.NewBlobStore()
	default:
		return fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if !a.cfg.PubSub.Enabled {
		return nil
	}
	pub, err := pubsubpub.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("init pubsub: %w", err)
	}
	a.events = pub
	a.eventsCl = pub.Close
	return nil
}

func (a *App) initOrchestrator(ctx context.Context) error {
	jobs, err := a.buildJobs(ctx)
	if err != nil {
		return err
	}
	a.orch = orchestrator.New(jobs, orchestrator.Config{
		Budget: a.cfg.RunBudget(),
		Labels: a.cfg.SiteLabels(),
		OnDone: a.onRunDone,
	}, a.logger)
	return nil
}

// buildJobs assembles the fixed run sequence, one job per configured site.
// In builtin mode each site gets an in-process scraper; in command mode each
// site runs the external crawler command with the site name appended.
func (a *App) buildJobs(ctx context.Context) ([]executor.Job, error) {
	jobs := make([]executor.Job, 0, len(a.cfg.Sites))

	if a.cfg.Crawler.Mode == "command" {
		for _, site := range a.cfg.Sites {
			argv := append(append([]string{}, a.cfg.Crawler.Command...), site.Name)
			job, err := executor.NewProcessJob(site.Name, argv, a.logger)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
		return jobs, nil
	}

	sites := a.cfg.Sites
	if sc, ok := a.loadActiveSearchConfig(ctx); ok {
		sites = config.ApplySearch(sites, sc)
	}

	needsRenderer := false
	for _, site := range sites {
		if site.Render {
			needsRenderer = true
			break
		}
	}
	if needsRenderer {
		renderer, err := crawler.NewChromedpRenderer(crawler.RendererConfig{
			UserAgent: a.cfg.Crawler.UserAgent,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init renderer: %w", err)
		}
		a.renderer = renderer
	}

	opts := crawler.Options{
		UserAgent: a.cfg.Crawler.UserAgent,
		Delay:     time.Duration(a.cfg.Crawler.DelaySeconds) * time.Second,
		Listings:  a.listings,
		Renderer:  a.renderer,
		Logger:    a.logger,
	}
	for _, site := range sites {
		job, err := crawler.NewSiteCrawler(site, opts)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// loadActiveSearchConfig resolves the activated search config version, if
// any. Load failures fall back to the static site configuration.
func (a *App) loadActiveSearchConfig(ctx context.Context) (config.SearchConfig, bool) {
	name, err := a.settings.GetSetting(ctx, config.ActiveSearchConfigKey)
	if errors.Is(err, store.ErrNotFound) {
		return config.SearchConfig{}, false
	}
	if err != nil {
		a.logger.Warn("resolving active search config failed", zap.Error(err))
		return config.SearchConfig{}, false
	}

	data, err := a.docs.GetObject(ctx, config.SearchConfigPrefix+name)
	if err != nil {
		a.logger.Warn("loading active search config failed",
			zap.String("filename", name), zap.Error(err))
		return config.SearchConfig{}, false
	}
	var sc config.SearchConfig
	if err := json.Unmarshal(data, &sc); err != nil {
		a.logger.Warn("active search config is corrupt",
			zap.String("filename", name), zap.Error(err))
		return config.SearchConfig{}, false
	}

	a.logger.Info("using activated search config", zap.String("filename", name))
	return sc, true
}

func (a *App) initBackup() error {
	if len(a.cfg.Backup.Command) == 0 {
		return nil
	}
	runner, err := backup.New(backup.Config{
		Command: a.cfg.Backup.Command,
		Budget:  a.cfg.BackupBudget(),
	}, a.logger)
	if err != nil {
		return err
	}
	a.backupRun = runner
	return nil
}

// onRunDone records run metrics and publishes the completion event. It runs
// in the orchestrator's cleanup path after the lock is released.
func (a *App) onRunDone(sum orchestrator.Summary) {
	metrics.ObserveRun(string(sum.Source), string(sum.Outcome), sum.Duration)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.settings.PutSetting(ctx, "last_run_at", sum.StartedAt.Format(time.RFC3339)); err != nil {
		a.logger.Warn("recording last run time failed", zap.Error(err))
	}
	if err := a.settings.PutSetting(ctx, "last_run_outcome", string(sum.Outcome)); err != nil {
		a.logger.Warn("recording last run outcome failed", zap.Error(err))
	}

	if a.events == nil {
		return
	}
	event := publisher.RunEvent{
		Trigger:     string(sum.Source),
		Outcome:     string(sum.Outcome),
		StartedAt:   sum.StartedAt.Format(time.RFC3339),
		DurationSec: int64(sum.Duration.Seconds()),
		Completed:   sum.Completed,
		Total:       sum.Total,
	}
	if sum.Err != nil {
		event.Error = sum.Err.Error()
	}
	if _, err := a.events.Publish(ctx, runEventTopic, event); err != nil {
		a.logger.Warn("publishing run event failed", zap.Error(err))
	}
}

// Close shuts down all services. Safe to call on a partially built App.
func (a *App) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.eventsCl != nil {
		if err := a.eventsCl(); err != nil {
			a.logger.Warn("closing publisher failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.logger.Sync()
}
