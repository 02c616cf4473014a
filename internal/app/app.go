// Package app assembles the services behind the API and the worker from
// configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/cache"
	"rollcall/internal/config"
	"rollcall/internal/course"
	"rollcall/internal/queue"
	"rollcall/internal/store"
	"rollcall/internal/user"
)

// Backends holds the wired services and the connections they use. DB and
// Redis are nil for the in-memory backends.
type Backends struct {
	DB    *store.DB
	Redis *store.Redis

	Users      *user.Service
	Courses    *course.Service
	Attendance *attendance.Service
	Queue      queue.Queue
	Revoker    auth.Revoker
}

// Build connects to the configured backends and wires the services.
func Build(ctx context.Context, cfg config.App, log *zap.Logger) (*Backends, error) {
	b := &Backends{}

	var (
		userRepo    user.Repository
		courseRepo  course.Repository
		sessionRepo attendance.Store
	)
	switch cfg.StoreBackend {
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.DB = db
		if cfg.AutoMigrate {
			if err := store.Migrate(db.Client, log); err != nil {
				b.Close()
				return nil, err
			}
		}
		userRepo = user.NewPostgresRepository(db.Client)
		courseRepo = course.NewPostgresRepository(db.Client)
		sessionRepo = attendance.NewRepository(db.Client)
	default:
		log.Warn("using in-memory store, data is lost on restart")
		userRepo = user.NewMemoryRepository()
		courseRepo = course.NewMemoryRepository()
		sessionRepo = attendance.NewMemoryStore()
	}

	var history attendance.HistoryCache
	switch cfg.CacheBackend {
	case "redis":
		b.Redis = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if !b.Redis.Healthy(ctx) {
			log.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
		}
		history = cache.NewRedisHistory(b.Redis.Client, cfg.HistoryCacheTTL)
		b.Queue = queue.NewRedisQueue(b.Redis.Client, cfg.QueueKey)
		b.Revoker = auth.NewRedisRevoker(b.Redis.Client)
	default:
		history = cache.NewMemoryHistory()
		b.Queue = queue.NewInMemory(64)
		b.Revoker = auth.NewMemoryRevoker()
	}

	b.Users = user.NewService(userRepo, user.DomainPolicy{
		Teacher: cfg.TeacherEmailDomain,
		Student: cfg.StudentEmailDomain,
	}, log.Named("user"))
	b.Courses = course.NewService(courseRepo, b.Users, sessionRepo, log.Named("course"))
	b.Attendance = attendance.NewService(sessionRepo, b.Courses,
		attendance.WithCodeSource(attendance.NewRandomCodes(cfg.CodeLength)),
		attendance.WithHistoryCache(history),
		attendance.WithPublisher(b.Queue),
		attendance.WithLogger(log.Named("attendance")),
	)
	return b, nil
}

// InProcessQueue reports whether jobs must be consumed by this process.
func (b *Backends) InProcessQueue() bool {
	_, ok := b.Queue.(*queue.InMemory)
	return ok
}

// Close releases connections.
func (b *Backends) Close() {
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.DB != nil {
		_ = b.DB.Close()
	}
}
