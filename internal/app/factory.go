package app

import (
	"context"
	"fmt"
	"time"

	"ordersaga/internal/catalog"
	"ordersaga/internal/config"
	"ordersaga/internal/httpapi"
	"ordersaga/internal/inventory"
	"ordersaga/internal/order"
	"ordersaga/internal/outbox"
	"ordersaga/internal/payment"
	"ordersaga/internal/projection"
	"ordersaga/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Runner is a long-lived component supervised by the Application.
type Runner interface {
	Start(ctx context.Context) error
}

// ServiceFactory builds the runners of one service from the container.
type ServiceFactory struct {
	c *Container
}

func NewServiceFactory(c *Container) *ServiceFactory {
	return &ServiceFactory{c: c}
}

// Build returns the runners for the named service.
func (f *ServiceFactory) Build(ctx context.Context, service string) ([]Runner, error) {
	switch service {
	case config.OrderServiceName:
		return f.orderService(ctx)
	case config.InventoryServiceName:
		return f.inventoryService(ctx)
	case config.PaymentServiceName:
		return f.paymentService()
	case config.ProjectorServiceName:
		return f.projectorService(ctx)
	case config.CatalogServiceName:
		return f.catalogService(ctx)
	case config.UserServiceName:
		return f.userService(ctx)
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
}

func (f *ServiceFactory) router() *gin.Engine {
	return httpapi.NewRouter(f.c.Config().ServiceName, f.c.Registry(), f.c.Logger())
}

func (f *ServiceFactory) server(router *gin.Engine) Runner {
	return httpapi.NewServer(f.c.Config().HTTPAddr, router, f.c.Logger())
}

// postgres opens the pool and applies migrate before any runner starts.
func (f *ServiceFactory) postgres(ctx context.Context, migrate func(context.Context, *pgxpool.Pool) error) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, f.c.Config().DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	f.c.OnShutdown(pool.Close)
	if err := pool.Ping(connectCtx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := migrate(connectCtx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (f *ServiceFactory) orderService(ctx context.Context) ([]Runner, error) {
	cfg := f.c.Config()

	pool, err := f.postgres(ctx, order.Migrate)
	if err != nil {
		return nil, err
	}

	repo := order.NewPostgresRepository(pool)
	coordinator, err := order.NewCoordinator(repo, f.c.Logger(), f.c.Tracer(), f.c.Meter())
	if err != nil {
		return nil, err
	}
	relay := outbox.NewRelay(outbox.NewPostgresStore(pool), f.c.Publisher(), f.c.Logger(), cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	router := f.router()
	httpapi.RegisterOrders(router, repo)
	httpapi.RegisterOrderCommands(router, f.c.Publisher())

	return []Runner{
		f.c.NewDispatcher(coordinator, order.Topics...),
		relay,
		f.server(router),
	}, nil
}

func (f *ServiceFactory) catalogService(ctx context.Context) ([]Runner, error) {
	pool, err := f.postgres(ctx, catalog.Migrate)
	if err != nil {
		return nil, err
	}

	repo := catalog.NewPostgresRepository(pool)
	handler := catalog.NewHandler(repo, f.c.Publisher(), f.c.Logger(), f.c.Tracer())

	router := f.router()
	httpapi.RegisterProducts(router, repo)
	httpapi.RegisterProductCommands(router, f.c.Publisher())

	return []Runner{
		f.c.NewDispatcher(handler, catalog.Topics...),
		f.server(router),
	}, nil
}

func (f *ServiceFactory) userService(ctx context.Context) ([]Runner, error) {
	pool, err := f.postgres(ctx, user.Migrate)
	if err != nil {
		return nil, err
	}

	repo := user.NewPostgresRepository(pool)
	handler := user.NewHandler(repo, f.c.Publisher(), f.c.Logger(), f.c.Tracer())

	router := f.router()
	httpapi.RegisterUsers(router, repo)
	httpapi.RegisterUserCommands(router, f.c.Publisher())

	return []Runner{
		f.c.NewDispatcher(handler, user.Topics...),
		f.server(router),
	}, nil
}

func (f *ServiceFactory) inventoryService(ctx context.Context) ([]Runner, error) {
	cfg := f.c.Config()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	f.c.OnShutdown(func() {
		if err := rdb.Close(); err != nil {
			f.c.Logger().Error("Failed to close redis client", zap.Error(err))
		}
	})
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(connectCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ledger := inventory.NewRedisLedger(rdb, cfg.ReservationTTL, cfg.ReservationMarkerTTL)
	engine, err := inventory.NewEngine(ledger, f.c.Publisher(), f.c.Logger(), f.c.Tracer(), f.c.Meter())
	if err != nil {
		return nil, err
	}

	return []Runner{
		f.c.NewDispatcher(engine, inventory.Topics...),
		f.server(f.router()),
	}, nil
}

func (f *ServiceFactory) paymentService() ([]Runner, error) {
	authorizer := payment.NewAuthorizer(f.c.Logger(), f.c.Tracer())
	handler := payment.NewHandler(authorizer, f.c.Publisher(), f.c.Logger())

	return []Runner{
		f.c.NewDispatcher(handler, payment.Topics...),
		f.server(f.router()),
	}, nil
}

func (f *ServiceFactory) projectorService(ctx context.Context) ([]Runner, error) {
	cfg := f.c.Config()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	f.c.OnShutdown(func() {
		if err := client.Disconnect(context.Background()); err != nil {
			f.c.Logger().Error("Failed to disconnect mongo client", zap.Error(err))
		}
	})
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	store := projection.NewMongoStore(client.Database(cfg.MongoDatabase))
	if err := store.EnsureIndexes(connectCtx); err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	projector := projection.NewProjector(store, f.c.Logger())

	router := f.router()
	httpapi.RegisterViews(router, store)

	return []Runner{
		f.c.NewDispatcher(projector, projection.Topics...),
		f.server(router),
	}, nil
}
