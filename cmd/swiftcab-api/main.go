// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"swiftcab/internal/config"
	httptransport "swiftcab/internal/http"
	"swiftcab/internal/http/middleware"
	"swiftcab/internal/infra"
	"swiftcab/internal/modules/assignment"
	"swiftcab/internal/modules/booking"
	"swiftcab/internal/modules/dispatch"
	"swiftcab/internal/modules/driver"
	"swiftcab/internal/modules/events"
	"swiftcab/internal/modules/location"
	"swiftcab/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var bridge events.Bridge
	if cfg.AMQP.URL != "" {
		rmq, err := infra.NewRabbitMQ(cfg.AMQP.URL)
		if err != nil {
			log.Fatalf("amqp init: %v", err)
		}
		defer rmq.Close()
		bridge, err = events.NewAMQPBridge(rmq.Chan)
		if err != nil {
			log.Fatalf("amqp bridge: %v", err)
		}
	}
	bus := events.NewBus(bridge)

	bookingStore := booking.NewPGStore(dbPool)
	driverStore := driver.NewPGStore(dbPool)
	assignmentStore := assignment.NewStore(redisClient)

	matcher := assignment.NewService(bookingStore, driverStore, bus, assignmentStore)
	bookingSvc := booking.NewService(bookingStore, bus, matcher)
	coordinator := dispatch.NewCoordinator(matcher, bookingStore, dispatch.Policy{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseDelay:   cfg.Dispatch.BaseDelay,
		CallTimeout: cfg.Dispatch.CallTimeout,
	})
	locationSvc := location.NewService(location.NewStore(redisClient), bus)

	jwtManager := middleware.NewJWTManager(cfg.Auth.JWTSecret)
	realtimeSrv := realtime.NewServer(bus, jwtManager)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Booking:     bookingSvc,
		Matcher:     matcher,
		Coordinator: coordinator,
		Location:    locationSvc,
		Realtime:    realtimeSrv,
		JWT:         jwtManager,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
