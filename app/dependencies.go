package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/cloud-tracker/config"
	"github.com/example/cloud-tracker/internal/observability"
	"github.com/example/cloud-tracker/internal/password"
	"github.com/example/cloud-tracker/middleware"
	"github.com/example/cloud-tracker/repositories"
	"github.com/example/cloud-tracker/repositories/postgres"
	"github.com/example/cloud-tracker/services"
	"github.com/example/cloud-tracker/services/costexplorer"
	"github.com/example/cloud-tracker/services/principalcache"
	"github.com/example/cloud-tracker/token"
)

// Version is set via ldflags
var Version = "dev"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Redis  redis.UniversalClient
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	IAMRoles  repositories.IAMRoleRepository
	TxManager repositories.TransactionManager

	// Services
	Codec          *token.Codec
	UserService    *services.UserService
	IAMRoleService *services.IAMRoleService
	Principals     middleware.PrincipalStore

	// Metrics
	Registry    *prometheus.Registry
	AuthMetrics *observability.AuthMetrics

	// Request pipeline
	JWTFilter     *middleware.JWTFilter
	Authorizer    *middleware.Authorizer
	SigninLimiter *middleware.SigninLimiter
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithDB(ctx, cfg, factory.GetDB(), logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithDB wires the application around an already opened database
func NewDependenciesWithDB(ctx context.Context, cfg *config.Config, db *postgres.DB, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		RepoFactory: postgres.NewRepositoryFactoryFromDB(db, logger),
	}

	deps.initRepositories()

	if err := deps.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := deps.initUsers(ctx); err != nil {
		deps.closeRedis()
		return nil, fmt.Errorf("failed to initialize user service: %w", err)
	}

	if err := deps.initCostExplorer(ctx); err != nil {
		deps.closeRedis()
		return nil, fmt.Errorf("failed to initialize cost explorer: %w", err)
	}

	if err := deps.initAuth(); err != nil {
		deps.closeRedis()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("cache", cfg.Cache.Backend),
		zap.String("failure_policy", cfg.Auth.FailurePolicy))
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.IAMRoles = repos.IAMRoles
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initMetrics() error {
	d.Registry = prometheus.NewRegistry()
	if !d.Config.Observability.MetricsEnabled {
		return nil
	}

	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(d.DB.DB, "cloud_tracker"),
	)

	metrics, err := observability.NewAuthMetrics().Register(d.Registry)
	if err != nil {
		return err
	}
	d.AuthMetrics = metrics
	return nil
}

// initUsers builds the token codec, the user service and the principal store in front of it
func (d *Dependencies) initUsers(ctx context.Context) error {
	codec, err := token.NewCodec(token.Config{
		Secret:     d.Config.JWT.Secret,
		Issuer:     d.Config.JWT.Issuer,
		AccessTTL:  d.Config.JWT.AccessTTL,
		RefreshTTL: d.Config.JWT.RefreshTTL,
	})
	if err != nil {
		return err
	}
	d.Codec = codec

	d.UserService = services.NewUserService(d.Users, d.TxManager, password.NewHasher(0), codec, d.Logger)

	backend, err := d.cacheBackend(ctx)
	if err != nil {
		return err
	}
	if backend == nil {
		d.Principals = d.UserService
		return nil
	}

	store := principalcache.New(d.UserService, backend, d.Logger)
	d.UserService.SetPrincipalInvalidator(store)
	d.Principals = store
	return nil
}

// cacheBackend returns the configured principal cache backend, or nil when caching is off
func (d *Dependencies) cacheBackend(ctx context.Context) (principalcache.Backend, error) {
	cfg := d.Config.Cache
	switch cfg.Backend {
	case "memory":
		return principalcache.NewMemoryBackend(cfg.MaxEntries, cfg.TTL), nil

	case "redis":
		d.Redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		// Lookups fall through to the database while Redis is down
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			d.Logger.Warn("redis is not reachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		return principalcache.NewRedisBackend(d.Redis, cfg.KeyPrefix, cfg.TTL), nil

	case "", "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// initCostExplorer builds the IAM role service around STS and Cost Explorer
func (d *Dependencies) initCostExplorer(ctx context.Context) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(d.Config.AWS.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	d.initIAMRoles(awsCfg)
	return nil
}

func (d *Dependencies) initIAMRoles(awsCfg aws.Config) {
	factory := costexplorer.NewSTSClientFactory(awsCfg, d.Config.AWS.SessionName)
	client := costexplorer.NewClient(factory, d.Config.AWS.Timeout, d.Logger)

	d.IAMRoleService = services.NewIAMRoleService(d.IAMRoles, d.TxManager, client, services.IAMRoleConfig{
		Region:         d.Config.AWS.Region,
		LookbackMonths: d.Config.AWS.LookbackMonths,
	}, d.Logger)
}

func (d *Dependencies) initAuth() error {
	proxies, err := middleware.ParseTrustedProxies(d.Config.Auth.TrustedProxies)
	if err != nil {
		return err
	}

	policy := middleware.FailurePropagate
	if d.Config.StrictAuthFailures() {
		policy = middleware.FailureStrict
	}

	d.JWTFilter = middleware.NewJWTFilter(
		d.Codec,
		d.Principals,
		middleware.NewExemptionPolicy(d.Config.Auth.ExtraExemptPaths...),
		d.Logger,
		middleware.WithFailurePolicy(policy),
		middleware.WithLookupTimeout(d.Config.Auth.PrincipalLookupTimeout),
		middleware.WithAuthMetrics(d.AuthMetrics),
	)
	d.Authorizer = middleware.NewAuthorizer(d.Logger)
	d.SigninLimiter = middleware.NewSigninLimiter(
		d.Config.Auth.SigninRatePerMinute,
		d.Config.Auth.SigninBurst,
		d.Logger,
		middleware.WithTrustedProxies(proxies...),
	)
	d.Logger.Info("auth filter initialized", zap.Int("trusted_proxies", len(proxies)))
	return nil
}

func (d *Dependencies) closeRedis() error {
	if d.Redis == nil {
		return nil
	}
	err := d.Redis.Close()
	d.Redis = nil
	return err
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if err := d.closeRedis(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
