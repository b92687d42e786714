package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ordersaga/internal/config"
	"ordersaga/internal/events"
	"ordersaga/internal/platform/kafka"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/projection"
	"ordersaga/internal/tracing"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

func createTopics(ctx context.Context, cfg *config.Config, out io.Writer) error {
	created, err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, events.AllTopics, config.TopicPartitions, config.ReplicationFactor)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		fmt.Fprintln(out, "all topics already exist")
		return nil
	}
	for _, topic := range created {
		fmt.Fprintf(out, "created %s\n", topic)
	}
	return nil
}

func publishProduct(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("product", flag.ContinueOnError)
	id := fs.String("id", "", "product id (generated when empty)")
	name := fs.String("name", "", "product name")
	description := fs.String("description", "", "product description")
	price := fs.String("price", "0", "unit price")
	stock := fs.Int("stock", 0, "available stock")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *name == "" {
		return fmt.Errorf("%w: -name is required", errUsage)
	}
	if *id == "" {
		*id = uuid.NewString()
	}
	p, err := decimal.NewFromString(*price)
	if err != nil {
		return fmt.Errorf("invalid -price: %w", err)
	}

	return publish(ctx, cfg, "", out, events.ProductUpsertCommand{
		ProductID:   *id,
		Name:        *name,
		Description: *description,
		Price:       p,
		Stock:       *stock,
	})
}

func publishUser(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("user", flag.ContinueOnError)
	id := fs.String("id", "", "user id (generated when empty)")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *name == "" || *email == "" {
		return fmt.Errorf("%w: -name and -email are required", errUsage)
	}
	if *id == "" {
		*id = uuid.NewString()
	}

	return publish(ctx, cfg, "", out, events.UserUpsertCommand{UserID: *id, Name: *name, Email: *email})
}

type itemFlags []events.OrderItem

func (f *itemFlags) String() string { return fmt.Sprint(len(*f)) }

func (f *itemFlags) Set(value string) error {
	item, err := parseItem(value)
	if err != nil {
		return err
	}
	*f = append(*f, item)
	return nil
}

// parseItem reads product:quantity:unitPrice.
func parseItem(value string) (events.OrderItem, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 || parts[0] == "" {
		return events.OrderItem{}, fmt.Errorf("item %q is not product:quantity:price", value)
	}
	qty, err := strconv.Atoi(parts[1])
	if err != nil {
		return events.OrderItem{}, fmt.Errorf("item %q: quantity: %w", value, err)
	}
	price, err := decimal.NewFromString(parts[2])
	if err != nil {
		return events.OrderItem{}, fmt.Errorf("item %q: price: %w", value, err)
	}
	return events.OrderItem{ProductID: parts[0], Quantity: qty, UnitPrice: price}, nil
}

func publishOrder(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	id := fs.String("id", "", "order id (generated when empty)")
	user := fs.String("user", "", "user id")
	correlationID := fs.String("correlation-id", "", "correlation id (generated when empty)")
	var items itemFlags
	fs.Var(&items, "item", "order line as product:quantity:price, repeatable")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *user == "" || len(items) == 0 {
		return fmt.Errorf("%w: -user and at least one -item are required", errUsage)
	}
	if *id == "" {
		*id = uuid.NewString()
	}

	return publish(ctx, cfg, *correlationID, out, events.OrderRequested{
		OrderID:     *id,
		UserID:      *user,
		Items:       items,
		TotalAmount: events.Total(items),
	})
}

func publish(ctx context.Context, cfg *config.Config, correlationID string, out io.Writer, evt events.Event) error {
	logger := observability.NewLogger(config.CLIName, false)
	defer func() { _ = logger.Sync() }()

	producer, err := kafka.NewProducer(cfg, otel.GetTracerProvider())
	if err != nil {
		return err
	}
	publisher := kafka.NewPublisher(producer, logger, nil)
	defer publisher.Close()

	if correlationID != "" {
		ctx = tracing.WithCorrelationID(ctx, correlationID)
	} else {
		ctx, correlationID = tracing.EnsureCorrelationID(ctx)
	}
	if err := publisher.Publish(ctx, evt); err != nil {
		return err
	}
	fmt.Fprintf(out, "published %s key=%s correlation_id=%s\n", evt.Topic(), evt.Key(), correlationID)
	return nil
}

func watchOrder(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	baseURL := fs.String("url", envOr("PROJECTOR_URL", "http://localhost:8080"), "projector base url")
	id := fs.String("id", "", "order id")
	interval := fs.Duration("interval", 500*time.Millisecond, "poll interval")
	timeout := fs.Duration("timeout", 30*time.Second, "give up after")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *id == "" {
		return fmt.Errorf("%w: -id is required", errUsage)
	}

	view, err := pollOrder(ctx, resty.New().SetBaseURL(*baseURL), *id, *interval, *timeout, out)
	if err != nil {
		return err
	}
	if view.Reason != "" {
		fmt.Fprintf(out, "order %s finished: %s (%s)\n", view.ID, view.Status, view.Reason)
	} else {
		fmt.Fprintf(out, "order %s finished: %s\n", view.ID, view.Status)
	}
	return nil
}

// pollOrder fetches the order view until its status is terminal, printing
// every status change it observes.
func pollOrder(ctx context.Context, client *resty.Client, orderID string, interval, timeout time.Duration, out io.Writer) (*projection.OrderView, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last events.OrderStatus
	for {
		view := &projection.OrderView{}
		resp, err := client.R().
			SetContext(ctx).
			SetResult(view).
			Get("/orders/" + orderID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("order %s: %w", orderID, ctx.Err())
		case err != nil:
			fmt.Fprintf(out, "request failed: %v\n", err)
		case resp.IsSuccess():
			if view.Status != last {
				fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), view.Status)
				last = view.Status
			}
			if view.Status.IsTerminal() {
				return view, nil
			}
		case resp.StatusCode() != 404:
			fmt.Fprintf(out, "unexpected status %d\n", resp.StatusCode())
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("order %s not finished: %w", orderID, ctx.Err())
		case <-ticker.C:
		}
	}
}
