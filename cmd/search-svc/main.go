// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/linuxfoundation/lfx-v2-search-gateway/cmd/service"
	natsinfra "github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/nats"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/notification"
	logging "github.com/linuxfoundation/lfx-v2-search-gateway/pkg/log"

	"goa.design/clue/debug"
)

const (
	defaultPort = "8080"
	// gracefulShutdownSeconds should be higher than NATS client
	// request timeout, and lower than the pod or liveness probe's
	// terminationGracePeriodSeconds.
	gracefulShutdownSeconds = 25
)

func init() {
	// slog is the standard library logger, we use it to log errors and
	logging.InitStructureLogConfig()
}

func main() {
	// Define command line flags, add any other flag required to configure the
	// service.
	var (
		dbgF = flag.Bool("d", false, "enable debug logging")
		port = flag.String("p", defaultPort, "listen port")
		bind = flag.String("bind", "*", "interface to bind on")
	)
	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	ctx := context.Background()
	slog.InfoContext(ctx, "Starting search gateway",
		"bind", *bind,
		"http-port", *port,
		"graceful-shutdown-seconds", gracefulShutdownSeconds,
	)

	// Initialize the infrastructure based on configuration
	store := service.StoreImpl(ctx)
	events := service.EventsImpl(ctx)
	upstream := service.UpstreamImpl(ctx)
	authService := service.AuthServiceImpl(ctx)
	registry := service.RegistryImpl(ctx, store, upstream, events.Publisher)

	index := service.IndexName()
	mapping, err := registry.Mapping(index)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build index mapping", "index", index, "error", err)
		os.Exit(1)
	}
	if err := store.CreateIndex(ctx, index, mapping); err != nil {
		// The store may still be starting; readyz reports it until it is.
		slog.ErrorContext(ctx, "failed to create index", "index", index, "error", err)
	}

	router, err := notification.NewRouter(ctx, registry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build notification router", "error", err)
		os.Exit(1)
	}

	// Wrap the service in endpoints that can be invoked from other services
	// potentially running in different processes.
	endpoints := service.NewSearchGateway(registry, store, authService)
	endpoints.Use(debug.LogPayloads())

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	// Setup interrupt handler. This optional step configures the process so
	// that SIGINT and SIGTERM signals cause the services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)

	var listener *natsinfra.Listener
	if events.Conn != nil {
		listener = natsinfra.NewListener(events.Conn, router, events.Config)
		if err := listener.Start(ctx, router.Subscriptions()); err != nil {
			slog.ErrorContext(ctx, "failed to start notification listener", "error", err)
			os.Exit(1)
		}
	}

	// Start the servers and send errors (if any) to the error channel.
	addr := ":" + *port
	if *bind != "*" {
		addr = *bind + ":" + *port
	}

	handleHTTPServer(ctx, addr, endpoints, &wg, errc, *dbgF)

	// Wait for signal.
	slog.InfoContext(ctx, "received shutdown signal, stopping servers",
		"signal", <-errc,
	)

	// Send cancellation signal to the goroutines.
	cancel()

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	// Stop consuming notifications before the connection drains
	wg.Add(1)
	go func() {
		defer wg.Done()
		if listener != nil {
			slog.InfoContext(shutdownCtx, "stopping notification listener")
			listener.Stop(shutdownCtx)
		}
		events.Close()
	}()

	// Wait for all goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "graceful shutdown completed")
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "graceful shutdown timed out")
	}

	slog.InfoContext(ctx, "exited")
}
