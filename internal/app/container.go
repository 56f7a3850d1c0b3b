package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/config"
	"github.com/you/findmyseat/internal/infrastructure/apiclient"
	"github.com/you/findmyseat/internal/infrastructure/audit"
	"github.com/you/findmyseat/internal/infrastructure/auth"
	"github.com/you/findmyseat/internal/infrastructure/database"
	"github.com/you/findmyseat/internal/infrastructure/repositories"
	"github.com/you/findmyseat/internal/services"
	"github.com/you/findmyseat/internal/session"
	"github.com/you/findmyseat/internal/validation"
)

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	Registry    *prometheus.Registry

	// Storage and adapters
	State  domain.StateStore
	Casbin *auth.CasbinService
	Policy domain.IntentPolicy
	API    *apiclient.Client
	Events domain.EventLogger
	Clock  domain.Clock

	// Session stores
	Users  *session.Store
	Admins *session.Store

	// Services
	Ops        *services.OperationTracker
	Challenges *services.OTPChallenges
	Flow       *services.AuthFlow
	Admin      *services.AdminService
	Organizer  *services.OrganizerService
}

// NewContainer creates and initializes all dependencies
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	container := &Container{Config: cfg, Logger: logger, Clock: services.SystemClock()}

	// Initialize infrastructure
	if err := container.initStorage(); err != nil {
		container.Close()
		return nil, err
	}
	if err := container.initPolicy(); err != nil {
		container.Close()
		return nil, err
	}
	container.initMetrics()

	// Initialize services
	container.initServices()

	return container, nil
}

func (c *Container) initStorage() error {
	switch c.Config.StorageDriver {
	case "memory":
		c.State = repositories.NewMemoryStateStore()

	case "redis":
		rdb := database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("redis ping: %w", err)
		}
		c.RedisClient = rdb.Client
		c.State = repositories.NewRedisStateStore(rdb.Client, c.Config.StoragePrefix)

	case "sqlite", "postgres":
		db, err := database.Open(c.Config.StorageDriver, c.Config.StorageDSN)
		if err != nil {
			return fmt.Errorf("open %s: %w", c.Config.StorageDriver, err)
		}
		c.DB = db
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		c.State = repositories.NewGormStateStore(db)

	default:
		return fmt.Errorf("unsupported storage driver %q", c.Config.StorageDriver)
	}

	c.Logger.Info("client state storage ready", zap.String("driver", c.Config.StorageDriver))
	return nil
}

// initPolicy persists the intent policy next to the client state when a
// database is in use
func (c *Container) initPolicy() error {
	cas, err := auth.NewCasbinService(c.DB)
	if err != nil {
		return err
	}
	seeded, err := cas.SeedDefaults()
	if err != nil {
		return fmt.Errorf("seed policies: %w", err)
	}
	if seeded {
		c.Logger.Info("casbin: seeded default policies")
	}

	c.Casbin = cas
	c.Policy = services.NewIntentRules(cas)
	return nil
}

func (c *Container) initMetrics() {
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

func (c *Container) initServices() {
	cfg := c.Config
	tokens := auth.NewTokenInspector(c.Clock.Now)
	validate := validation.New(cfg.Rules, cfg.OTPLength)

	c.API = apiclient.New(cfg.APIBaseURL, cfg.APITimeout, c.State, c.Logger.Named("api"))
	c.Events = audit.NewZapEventLogger(c.Logger)
	c.Users = session.NewUserStore(c.State, tokens)
	c.Admins = session.NewAdminStore(c.State, tokens)
	c.Ops = services.NewOperationTracker()
	c.Challenges = services.NewOTPChallenges(c.State, c.Clock, cfg.OTPDuration)

	c.Flow = services.NewAuthFlow(
		c.API.Auth(),
		c.Users,
		c.Ops,
		c.Challenges,
		services.NewOTPTimer(c.Challenges, c.Clock),
		validate,
		c.Events,
		c.Logger.Named("auth"),
		cfg.SuccessDisplay,
	)
	c.Admin = services.NewAdminService(c.API.Admin(), c.Admins, c.Ops, validate, c.Events, c.Logger.Named("admin"))
	c.Organizer = services.NewOrganizerService(c.API.Organizer(), c.Users, c.Ops, validate, c.Logger.Named("organizer"))
}

// Close stops the OTP countdown and closes all connections
func (c *Container) Close() error {
	if c.Flow != nil {
		c.Flow.Close()
	}

	if c.RedisClient != nil {
		c.RedisClient.Close()
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}
