package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/hatchmark-backend/internal/app"
	"github.com/yungbote/hatchmark-backend/internal/observability"
	"github.com/yungbote/hatchmark-backend/internal/platform/shutdown"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	otelShutdown := observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "hatchmark-api",
		Environment: a.Cfg.Env,
		Version:     a.Cfg.Version,
	})
	if otelShutdown != nil {
		defer func() { _ = otelShutdown(context.Background()) }()
	}

	a.Start()

	if err := a.Run(ctx); err != nil {
		a.Log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
