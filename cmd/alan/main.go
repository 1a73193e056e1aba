package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antoniofrancaib/alan/internal/app"
	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	// Bootstrap logger for failures before the app's log service exists.
	log := logx.NewConsole("info")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		log.Error("startup failed", logx.Err(err))
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		log.Error("start failed", logx.Err(err))
		os.Exit(1)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx)
}
