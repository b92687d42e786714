// Command sagactl is an operator tool for the order saga: it creates the
// topics, publishes catalog updates and order requests, and follows an
// order through the projector's read model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"ordersaga/internal/config"
)

const usage = `usage: sagactl [-brokers host:port,...] <command> [flags]

commands:
  topics    create every saga topic
  product   publish a catalog.product-upsert-command
  user      publish a user.upsert-command
  order     publish an order.requested command
  watch     poll the projector until an order reaches a terminal status
`

var errUsage = errors.New("usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		stdlog.Fatalf("sagactl: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet(config.CLIName, flag.ContinueOnError)
	brokers := global.String("brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "comma separated kafka brokers")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		return errUsage
	}

	cfg := &config.Config{
		ServiceName:  config.CLIName,
		KafkaBrokers: config.SplitBrokers(*brokers),
	}
	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "topics":
		return createTopics(ctx, cfg, out)
	case "product":
		return publishProduct(ctx, cfg, rest, out)
	case "user":
		return publishUser(ctx, cfg, rest, out)
	case "order":
		return publishOrder(ctx, cfg, rest, out)
	case "watch":
		return watchOrder(ctx, rest, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
