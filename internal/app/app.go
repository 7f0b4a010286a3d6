// Package app builds the process from its configuration. cmd/api serves it, cmd/worker only runs
// its background jobs, and both share this wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/consultorio/internal/config"
	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/internal/guard"
	authhandler "github.com/jwalitptl/consultorio/internal/handler/auth"
	casefilehandler "github.com/jwalitptl/consultorio/internal/handler/casefile"
	"github.com/jwalitptl/consultorio/internal/handler/health"
	"github.com/jwalitptl/consultorio/internal/handler/master"
	metricshandler "github.com/jwalitptl/consultorio/internal/handler/metrics"
	patienthandler "github.com/jwalitptl/consultorio/internal/handler/patient"
	"github.com/jwalitptl/consultorio/internal/handler/settings"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/internal/repository/demo"
	"github.com/jwalitptl/consultorio/internal/repository/postgres"
	"github.com/jwalitptl/consultorio/internal/router"
	"github.com/jwalitptl/consultorio/internal/service/access"
	"github.com/jwalitptl/consultorio/internal/service/auth"
	"github.com/jwalitptl/consultorio/internal/service/casefile"
	"github.com/jwalitptl/consultorio/internal/service/drive"
	"github.com/jwalitptl/consultorio/internal/service/event"
	"github.com/jwalitptl/consultorio/internal/service/patient"
	"github.com/jwalitptl/consultorio/internal/service/radiograph"
	"github.com/jwalitptl/consultorio/internal/session"
	"github.com/jwalitptl/consultorio/internal/worker"
	pkgauth "github.com/jwalitptl/consultorio/pkg/auth"
	"github.com/jwalitptl/consultorio/pkg/gotrue"
	"github.com/jwalitptl/consultorio/pkg/messaging"
	"github.com/jwalitptl/consultorio/pkg/messaging/redis"
	"github.com/jwalitptl/consultorio/pkg/metrics"
	"github.com/jwalitptl/consultorio/pkg/storage"
)

const metricsNamespace = "consultorio"

// App holds everything built from a Config. Close releases the connections it opened.
type App struct {
	Config      *config.Config
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Router      *router.Router
	Radiographs *radiograph.Service
	Broker      messaging.Broker

	logger  zerolog.Logger
	closers []func() error
}

type backend struct {
	odonto repository.Repositories
	admin  repository.Repositories
	checks map[string]health.Check
}

// New connects to every configured dependency and assembles services, handlers and the router.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(metricsNamespace, a.Registry)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("unknown timezone, using UTC")
		loc = time.UTC
	}

	be, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.openBroker(ctx, be.checks); err != nil {
		a.Close()
		return nil, err
	}
	publisher := messaging.NewEventPublisher(a.Broker, cfg.Redis.Channel)
	odontoEvents := event.NewService(publisher, model.ModuleOdonto.String(), logger)
	adminEvents := event.NewService(publisher, model.ModuleAdministrativo.String(), logger)

	store, err := openStorage(ctx, cfg.Attachments)
	if err != nil {
		a.Close()
		return nil, err
	}

	demoMode := cfg.Env.DemoMode
	g := guard.New(guard.Config{
		MasterEmail:        cfg.Env.MasterEmail,
		AdminModuleEnabled: cfg.Env.AdminModuleEnabled,
	})
	sessions := session.NewManager(session.Options{
		Secure: cfg.Server.SecureCookies,
		MaxAge: cfg.Server.SessionMaxAge,
	})

	providers, issuer, err := authBackends(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	accessSvc := access.NewService(be.odonto.AllowedEmails, odontoEvents, cfg.AuthProvider.AllowListCacheTTL)
	authSvc := auth.NewService(auth.Config{
		Demo:               demoMode,
		MasterEmail:        cfg.Env.MasterEmail,
		OdontoEmail:        cfg.Env.OdontoEmail,
		AdminEmail:         cfg.Env.AdminEmail,
		AdminModuleEnabled: cfg.Env.AdminModuleEnabled,
		ResetRedirectURL:   cfg.Env.ResetRedirectURL(),
		DemoPasswordHash:   cfg.Env.DemoPasswordHash,
	}, providers, accessSvc, g, issuer, nil, a.Metrics, logger)

	a.Radiographs = radiograph.NewService(be.odonto, store, odontoEvents, a.Metrics, logger)

	handlers := router.Handlers{
		Health:   health.NewHandler(be.checks),
		Metrics:  metricshandler.New(a.Registry, a.Metrics),
		Auth:     authhandler.NewHandler(authSvc, sessions, g, demoMode),
		Patients: patienthandler.NewHandler(patient.NewService(be.odonto, odontoEvents, loc), a.Radiographs, demoMode),
		Master:   master.NewHandler(accessSvc),
		Settings: settings.NewHandler(drive.NewService(be.odonto, demoMode, odontoEvents, logger), demoMode),
	}
	if cfg.Env.AdminModuleEnabled {
		handlers.Cases = casefilehandler.NewHandler(casefile.NewService(be.admin, adminEvents, loc), demoMode)
	}

	a.Router = router.NewRouter(router.Config{
		ReleaseMode:      logger.GetLevel() > zerolog.DebugLevel,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		MaxUploadBytes:   cfg.Attachments.MaxBytes,
	}, handlers, g, sessions, a.Metrics)
	a.Router.Setup()

	logger.Info().
		Bool("demo", demoMode).
		Bool("admin_module", cfg.Env.AdminModuleEnabled).
		Str("attachments", storeName(store)).
		Bool("events", cfg.Redis.URL != "").
		Msg("application wired")
	return a, nil
}

func (a *App) openBackend(ctx context.Context) (*backend, error) {
	cfg := a.Config
	be := &backend{checks: map[string]health.Check{}}

	if cfg.Env.DemoMode {
		st := demostore.New(cfg.Env.DemoDBPath, a.logger, a.Metrics)
		repos := demo.New(st)
		be.odonto, be.admin = repos, repos
		be.checks["demo_store"] = func(context.Context) error {
			_, err := st.Read()
			return err
		}
		return be, nil
	}

	pool := postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	odontoDB, err := a.openDB(ctx, model.ModuleOdonto, cfg.Env.Odonto.DatabaseURL, pool)
	if err != nil {
		return nil, err
	}
	be.odonto = postgres.New(odontoDB, model.ModuleOdonto.String(), a.Metrics, a.logger)
	be.checks["odonto_db"] = odontoDB.PingContext

	if cfg.Env.AdminModuleEnabled {
		adminDB, err := a.openDB(ctx, model.ModuleAdministrativo, cfg.Env.Admin.DatabaseURL, pool)
		if err != nil {
			return nil, err
		}
		be.admin = postgres.New(adminDB, model.ModuleAdministrativo.String(), a.Metrics, a.logger)
		be.checks["administrativo_db"] = adminDB.PingContext
	}
	return be, nil
}

func (a *App) openDB(ctx context.Context, module model.Module, dsn string, pool postgres.PoolConfig) (*sqlx.DB, error) {
	db, err := postgres.NewDB(ctx, dsn, pool)
	if err != nil {
		return nil, fmt.Errorf("%s database: %w", module, err)
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *App) openBroker(ctx context.Context, checks map[string]health.Check) error {
	rc := a.Config.Redis
	if rc.URL == "" {
		a.Broker = messaging.NoopBroker{}
		return nil
	}
	b, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          rc.URL,
		MaxRetries:   rc.MaxRetries,
		RetryBackoff: rc.RetryBackoff,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
	}, a.logger)
	if err != nil {
		return err
	}
	a.Broker = b
	a.closers = append(a.closers, b.Close)
	checks["redis"] = b.Ping
	return nil
}

func openStorage(ctx context.Context, cfg config.AttachmentsConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
			MaxBytes:        cfg.MaxBytes,
		})
	case "drive":
		// The token source outlives the request that builds it.
		return storage.NewDriveStore(context.Background(), storage.DriveConfig{
			ClientID:     cfg.Drive.ClientID,
			ClientSecret: cfg.Drive.ClientSecret,
			RefreshToken: cfg.Drive.RefreshToken,
			MaxBytes:     cfg.MaxBytes,
		})
	default:
		return nil, nil
	}
}

func storeName(s storage.Store) string {
	if s == nil {
		return "none"
	}
	return s.Name()
}

// authBackends returns the hosted auth client of every configured module, or the demo token
// issuer in demo mode.
func authBackends(cfg *config.Config, logger zerolog.Logger) (map[model.Module]auth.Provider, *pkgauth.TokenIssuer, error) {
	if cfg.Env.DemoMode {
		issuer, err := pkgauth.NewTokenIssuer(cfg.Env.DemoTokenSecret, cfg.Server.SessionMaxAge)
		if err != nil {
			return nil, nil, fmt.Errorf("demo token issuer: %w", err)
		}
		return nil, issuer, nil
	}

	backends := map[model.Module]config.Backend{model.ModuleOdonto: cfg.Env.Odonto}
	if cfg.Env.AdminModuleEnabled {
		backends[model.ModuleAdministrativo] = cfg.Env.Admin
	}

	providers := make(map[model.Module]auth.Provider, len(backends))
	for module, b := range backends {
		client, err := gotrue.NewClient(gotrue.Config{
			URL:        b.SupabaseURL,
			AnonKey:    b.SupabaseAnonKey,
			Timeout:    cfg.AuthProvider.Timeout,
			Retries:    cfg.AuthProvider.Retries,
			RetryDelay: cfg.AuthProvider.RetryDelay,
			Module:     module.String(),
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("%s auth provider: %w", module, err)
		}
		providers[module] = client
	}
	return providers, nil, nil
}

// StaleUploadsWorker returns the sweeper configured for this process, or nil when it is disabled.
func (a *App) StaleUploadsWorker() *worker.StaleUploadsWorker {
	wc := a.Config.Worker
	if !wc.StaleUploadsEnabled {
		return nil
	}
	return worker.NewStaleUploadsWorker(a.Radiographs, wc.StaleUploadAfter, wc.StaleUploadsInterval, a.logger)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
