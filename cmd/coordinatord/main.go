package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/taskgrid/pkg/api"
	"github.com/psantana5/taskgrid/pkg/broker"
	"github.com/psantana5/taskgrid/pkg/config"
	"github.com/psantana5/taskgrid/pkg/coordinator"
	"github.com/psantana5/taskgrid/pkg/logging"
	"github.com/psantana5/taskgrid/pkg/metrics"
	"github.com/psantana5/taskgrid/pkg/shutdown"
)

func main() {
	cfgPath := flag.String("config", "", "Config file path")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logger, err := logging.NewFileLogger(cfg.LogDir, "coordinatord", logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	logger.Info("Starting taskgrid coordinator", map[string]interface{}{
		"listen":            cfg.ListenAddr,
		"heartbeat_max_age": cfg.HeartbeatMaxAge.String(),
	})

	// Broker unreachability is fatal at startup, not something to retry into
	var brk broker.Broker
	if cfg.BrokerURL != "" {
		brk, err = broker.NewRedisBroker(cfg.BrokerURL)
		if err != nil {
			log.Fatalf("Failed to connect broker: %v", err)
		}
		logger.Info("Using Redis broker", map[string]interface{}{"url": cfg.BrokerURL})
	} else {
		brk = broker.NewMemoryBroker()
		logger.Warn("No broker_url configured, using in-process broker (single-machine mode)")
	}

	coord := coordinator.New(brk, coordinator.Config{
		HeartbeatMaxAge: cfg.HeartbeatMaxAge,
		MaxHistory:      cfg.MaxHistory,
		AssignedTimeout: cfg.AssignedTimeout,
	})

	// The broker pops destructively, so tasks held by crashed consumers are
	// recovered here: the sweep fails anything stuck past its deadline
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	go coord.SweepStuckTasks(sweepCtx, sweepInterval)

	router := mux.NewRouter()
	api.NewHandler(coord).RegisterRoutes(router)
	router.Handle("/metrics", metrics.Handler(metrics.NewCollector(coord, nil, brk)))
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sd := shutdown.New(30 * time.Second)
	sd.Register(func(ctx context.Context) error { return brk.Close() })
	sd.Register(func(ctx context.Context) error {
		stopSweep()
		return nil
	})
	sd.Register(func(ctx context.Context) error { return srv.Shutdown(ctx) })

	go func() {
		log.Printf("Coordinator listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sd.Wait()
}
