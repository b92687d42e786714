package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ordersaga/internal/config"
	"ordersaga/internal/events"
	"ordersaga/internal/platform/kafka"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Application holds all the components and manages the application lifecycle
type Application struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container *Container
	runners   []Runner
}

// NewApplication creates and fully initializes the named service
func NewApplication(ctx context.Context, service string) (*Application, error) {
	appCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	app := &Application{
		ctx:    appCtx,
		cancel: cancel,
	}

	container, err := NewContainer(app.ctx, service)
	if err != nil {
		cancel()
		return nil, err
	}
	app.container = container

	if container.Config().CreateTopics {
		created, err := kafka.EnsureTopics(app.ctx, container.Config().KafkaBrokers, events.AllTopics, config.TopicPartitions, config.ReplicationFactor)
		if err != nil {
			app.Shutdown()
			return nil, fmt.Errorf("ensure topics: %w", err)
		}
		container.Logger().Info("Topics ready", zap.Strings("created", created))
	}

	runners, err := NewServiceFactory(container).Build(app.ctx, service)
	if err != nil {
		app.Shutdown()
		return nil, err
	}
	app.runners = runners

	container.Logger().Info("Application initialized successfully", zap.Int("runners", len(runners)))
	return app, nil
}

// Run starts every runner and blocks until all have stopped. The first
// runner to fail stops the others.
func (app *Application) Run() error {
	g, ctx := errgroup.WithContext(app.ctx)
	for _, r := range app.runners {
		g.Go(func() error { return r.Start(ctx) })
	}
	err := g.Wait()
	app.container.Logger().Info("Service loop finished. Shutting down...", zap.Error(err))
	return err
}

// Shutdown gracefully shuts down all application components
func (app *Application) Shutdown() {
	if app.container != nil {
		app.container.Logger().Info("Starting application shutdown...")
	}

	if app.cancel != nil {
		app.cancel()
	}

	if app.container != nil {
		app.container.Shutdown(context.Background())
	}
}
