package main

import (
	"context"
	"time"

	"github.com/niksmo/darkstore/config"
	"github.com/niksmo/darkstore/internal/app"
	"github.com/niksmo/darkstore/pkg/sigctx"
)

const closeTimeout = 10 * time.Second

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()
	cfg.Print()

	cartService := app.New(sigCtx, cfg)

	cartService.Run(closeApp)

	<-sigCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	cartService.Close(ctx)
}
