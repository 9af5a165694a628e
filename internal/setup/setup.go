package setup

import (
	"context"
	"strings"
	"time"

	"github.com/wardenhq/warden/internal/cache"
	"github.com/wardenhq/warden/internal/database"
	"github.com/wardenhq/warden/internal/database/types"
	"github.com/wardenhq/warden/internal/redis"
	"github.com/wardenhq/warden/internal/setup/config"
	syncer "github.com/wardenhq/warden/internal/sync"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
type App struct {
	Config       *config.Config  // Application configuration
	Logger       *zap.Logger     // Main application logger
	DB           database.Client // Database connection pool
	RedisManager *redis.Manager  // Redis connection manager
	Notifier     *cache.Notifier // Cache invalidation notifier
}

// InitializeApp bootstraps all application dependencies in the correct
// order, ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context) (*App, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := NewLogger(&cfg.Debug)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, logger, true)
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Redis, logger)

	cacheClient, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		RedisManager: redisManager,
		Notifier:     cache.NewNotifier(cacheClient, logger),
	}, nil
}

// Cleanup releases all resources in reverse initialization order.
func (a *App) Cleanup() {
	a.RedisManager.Close()

	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database", zap.Error(err))
	}

	_ = a.Logger.Sync()
}

// Policy builds the reconciler security policy from the sync config.
func (a *App) Policy() syncer.Policy {
	rules := make(map[string]syncer.RoleRule, len(a.Config.Sync.Roles))

	for role, rule := range a.Config.Sync.Roles {
		tier := types.EntryTypeGeneral
		if rule.Tier == "staff" {
			tier = types.EntryTypeStaff
		}

		syncRule := syncer.RoleRule{Tier: tier}

		if rule.DurationValue > 0 && rule.DurationUnit != "" {
			value := rule.DurationValue
			unit := types.DurationUnit(strings.ToUpper(rule.DurationUnit))
			syncRule.DurationValue = &value
			syncRule.DurationUnit = &unit
		}

		rules[role] = syncRule
	}

	return syncer.Policy{
		Rules: rules,
		Thresholds: map[types.EntryType]float64{
			types.EntryTypeStaff:   a.Config.Sync.StaffThreshold,
			types.EntryTypeGeneral: a.Config.Sync.GeneralThreshold,
		},
	}
}

// DebounceWindow returns the duplicate-observation window.
func (a *App) DebounceWindow() time.Duration {
	return time.Duration(a.Config.Sync.DebounceWindowMS) * time.Millisecond
}

// MembershipTimeout returns the bound on live membership lookups.
func (a *App) MembershipTimeout() time.Duration {
	return time.Duration(a.Config.Sync.MembershipTimeoutMS) * time.Millisecond
}
