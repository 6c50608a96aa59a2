// Package app boots the governance service: it opens the database, runs
// migrations, wires the governance facade and serves the admin API.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelfleet/governd/internal/config"
	"github.com/modelfleet/governd/internal/db"
	"github.com/modelfleet/governd/internal/governance"
	"github.com/modelfleet/governd/internal/http/api/admin"
	"github.com/modelfleet/governd/internal/security"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and applies the schema.
func Migrate(_ context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the admin API server and blocks until ctx is cancelled
// or the listener fails.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	sealer, errSealer := buildSealer(cfg.Security)
	if errSealer != nil {
		return errSealer
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := rdb.Ping(ctx).Err(); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable, quota cache falls back to local")
			rdb = nil
		}
	}

	svc := governance.New(conn, sealer, rdb, cfg.Quota.CacheTTL)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	admin.RegisterAdminRoutes(engine, conn, svc)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("admin api listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// buildSealer constructs the credential sealer from config. Without a
// configured key a random one is generated and sealed credentials do not
// survive a restart.
func buildSealer(cfg config.SecurityConfig) (*security.Box, error) {
	if cfg.SealingKey != "" {
		return security.NewBox(cfg.SealingKey)
	}
	log.Warn("no sealing key configured, using a random per-process key")
	return security.NewRandomBox()
}

// requestLogger emits one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("request")
	}
}
