// Package bootstrap wires the process-wide runtime shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"

	"homehive/internal/cache"
	"homehive/internal/config"
	"homehive/internal/database"
	"homehive/internal/models"
	"homehive/internal/observability"
	"homehive/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ServiceName labels traces.
	ServiceName string
	// ApplySchema runs migrations according to DB_SCHEMA_MODE.
	ApplySchema bool
	// SeedDemoData fills an empty development database with demo data.
	SeedDemoData bool
}

// Runtime holds the connections a command needs.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client

	shutdownTracing func(context.Context) error
}

// InitRuntime starts tracing, connects to DB and Redis and optionally seeds demo data.
// Redis is optional; Runtime.Redis is nil when it cannot be reached.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "homehive-api"
	}
	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  opts.ServiceName,
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: opts.ApplySchema})
	if err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)

	rt := &Runtime{DB: db, Redis: cache.GetClient(), shutdownTracing: shutdown}

	if opts.SeedDemoData {
		if err := seedDemoData(cfg, db); err != nil {
			_ = rt.Close(context.Background())
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}
	return rt, nil
}

// Close flushes traces and closes Redis and the database.
func (r *Runtime) Close(ctx context.Context) error {
	var firstErr error
	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			firstErr = err
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// seedDemoData seeds only in development and only when there are no users yet.
func seedDemoData(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || !strings.EqualFold(cfg.Env, "development") {
		return nil
	}
	var users int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}
	summary, err := seed.Seed(db, seed.Options{NumUsers: 12, NumListings: 30})
	if err != nil {
		return err
	}
	log.Printf("development demo data seeded: %d users, %d listings", summary.Users, summary.Listings)
	return nil
}
