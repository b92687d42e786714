package sagatest

import (
	"context"
	"testing"
	"time"

	"ordersaga/internal/catalog"
	"ordersaga/internal/config"
	"ordersaga/internal/inventory"
	"ordersaga/internal/order"
	"ordersaga/internal/outbox"
	"ordersaga/internal/payment"
	"ordersaga/internal/projection"
	"ordersaga/internal/user"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Harness wires every saga component to one in-memory bus, with the
// inventory ledger on miniredis.
type Harness struct {
	Bus         *Bus
	Orders      *OrderStore
	Products    *CatalogStore
	Users       *UserStore
	Views       *ViewStore
	Redis       *miniredis.Miniredis
	Catalog     *catalog.Handler
	Directory   *user.Handler
	Coordinator *order.Coordinator
	Relay       *outbox.Relay
	Inventory   *inventory.Engine
	Payments    *payment.Handler
	Projector   *projection.Projector
}

func NewHarness(t testing.TB) *Harness {
	t.Helper()
	logger := zap.NewNop()
	tracer := noop.NewTracerProvider().Tracer("sagatest")
	meter := metricnoop.NewMeterProvider().Meter("sagatest")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &Harness{
		Bus:      NewBus(),
		Orders:   NewOrderStore(),
		Products: NewCatalogStore(),
		Users:    NewUserStore(),
		Views:    NewViewStore(),
		Redis:    mr,
	}
	h.Catalog = catalog.NewHandler(h.Products, h.Bus, logger, tracer)
	h.Directory = user.NewHandler(h.Users, h.Bus, logger, tracer)

	var err error
	if h.Coordinator, err = order.NewCoordinator(h.Orders, logger, tracer, meter); err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	ledger := inventory.NewRedisLedger(rdb, 24*time.Hour, 7*24*time.Hour)
	if h.Inventory, err = inventory.NewEngine(ledger, h.Bus, logger, tracer, meter); err != nil {
		t.Fatalf("inventory engine: %v", err)
	}
	h.Relay = outbox.NewRelay(h.Orders, h.Bus, logger, time.Millisecond, 100)
	h.Payments = payment.NewHandler(payment.NewAuthorizer(logger, tracer), h.Bus, logger)
	h.Projector = projection.NewProjector(h.Views, logger)

	h.Bus.Subscribe(config.CatalogServiceName, h.Catalog, catalog.Topics...)
	h.Bus.Subscribe(config.UserServiceName, h.Directory, user.Topics...)
	h.Bus.Subscribe(config.OrderServiceName, h.Coordinator, order.Topics...)
	h.Bus.Subscribe(config.InventoryServiceName, h.Inventory, inventory.Topics...)
	h.Bus.Subscribe(config.PaymentServiceName, h.Payments, payment.Topics...)
	h.Bus.Subscribe(config.ProjectorServiceName, h.Projector, projection.Topics...)
	return h
}

// Settle relays the outbox and drains the bus until neither makes progress.
func (h *Harness) Settle(ctx context.Context) error {
	for {
		relayed, err := h.Relay.Flush(ctx)
		if err != nil {
			return err
		}
		delivered, err := h.Bus.Drain(ctx)
		if err != nil {
			return err
		}
		if relayed == 0 && delivered == 0 {
			return nil
		}
	}
}
