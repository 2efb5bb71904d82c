// Package server boots the backing services and runs the listeners until
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/jobs"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/kernel"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/database"
	"github.com/shashiranjanraj/storefront/pkg/event"
	grpcsrv "github.com/shashiranjanraj/storefront/pkg/grpc"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/messaging"
	"github.com/shashiranjanraj/storefront/pkg/queue"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// Runtime is a booted process: a connected database, the service graph
// and the collaborators that need closing on exit.
type Runtime struct {
	DB       *gorm.DB
	Services *kernel.Services

	closers []func()
}

// Boot loads configuration and connects everything the services need.
// Cache and storage degrade to their in-process fallbacks; the database
// does not.
func Boot() (*Runtime, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("server: load config: %w", err)
	}

	rt := &Runtime{}

	closeLogs, err := logger.AttachMongo()
	if err != nil {
		logger.Warn("logger: mongo sink disabled", "error", err)
	}
	rt.closers = append(rt.closers, closeLogs)

	if err := database.Connect(); err != nil {
		rt.Close()
		return nil, err
	}
	rt.DB = database.DB

	if err := cache.Connect(); err != nil {
		logger.Warn("cache: redis unavailable, using memory store", "error", err)
	}

	storage.Connect()

	if config.QueueDriver() == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
		})
		queue.SetDriver(queue.NewRedisDriver(rdb))
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
	}
	queue.UseDB(rt.DB)

	pub := messaging.New()
	rt.closers = append(rt.closers, func() {
		if err := pub.Close(); err != nil {
			logger.Warn("messaging: close", "error", err)
		}
	})
	jobs.Register(queue.Default(), pub)

	rt.Services = kernel.NewServices(rt.DB, storage.Default())
	return rt, nil
}

// Close releases everything Boot opened, last opened first.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
	if rt.DB == nil {
		return
	}
	if sqlDB, err := rt.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Serve runs the HTTP API and gRPC health service, with workers queue
// consumers alongside, until ctx is cancelled.
func (rt *Runtime) Serve(ctx context.Context, workers int) error {
	r, err := kernel.NewRouter(rt.Services)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	grpcServer := grpcsrv.NewServer(kernel.Probe(rt.DB))
	if _, err := grpcsrv.Start(grpcServer, config.GRPCPort()); err != nil {
		return err
	}

	workCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	if workers > 0 {
		queue.StartWorkers(workCtx, workers)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", httpSrv.Addr, "env", config.AppEnv())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			grpcsrv.Stop(grpcServer)
			return fmt.Errorf("server: http: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server: http shutdown", "error", err)
	}
	grpcsrv.Stop(grpcServer)

	// Listeners still running may dispatch order.placed jobs; those must
	// land before the backlog is drained.
	if err := event.Wait(shutdownCtx); err != nil {
		logger.Error("server: event listeners", "error", err)
	}
	stopWorkers()
	drainQueue(shutdownCtx)
	event.Flush()
	return nil
}

func drainQueue(ctx context.Context) {
	n, err := queue.Shutdown(ctx)
	if err != nil {
		logger.Error("server: queue drain", "drained", n, "error", err)
		return
	}
	if n > 0 {
		logger.Info("queue: drained backlog", "jobs", n)
	}
}
