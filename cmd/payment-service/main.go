package main

import (
	"context"
	stdlog "log"

	"ordersaga/internal/app"
	"ordersaga/internal/config"
)

func main() {
	if err := run(); err != nil {
		stdlog.Fatalf("Application failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	application, err := app.NewApplication(ctx, config.PaymentServiceName)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	return application.Run()
}
