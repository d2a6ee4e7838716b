// workerd is the per-machine taskgrid agent. Run without arguments it
// supervises worker processes for the configured queues; the supervisor
// spawns this same binary in "consume" mode for the actual task execution.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/taskgrid/pkg/api"
	"github.com/psantana5/taskgrid/pkg/broker"
	"github.com/psantana5/taskgrid/pkg/capability"
	"github.com/psantana5/taskgrid/pkg/config"
	"github.com/psantana5/taskgrid/pkg/metrics"
	"github.com/psantana5/taskgrid/pkg/shutdown"
	"github.com/psantana5/taskgrid/pkg/supervisor"
	"github.com/psantana5/taskgrid/pkg/worker"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "consume" {
		runConsumer(os.Args[2:])
		return
	}
	runAgent()
}

// runAgent supervises worker processes on this machine
func runAgent() {
	cfgPath := flag.String("config", "", "Config file path")
	scaleTargets := flag.String("scale-targets", "", "YAML file of queue: worker-count targets")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Starting taskgrid worker agent")

	// The agent launches itself in consume mode unless a dedicated worker
	// binary is configured
	binary := cfg.WorkerBinary
	if binary == "" || binary == "taskgrid-worker" {
		if self, err := os.Executable(); err == nil {
			binary = self
		}
	}

	sup := supervisor.New(supervisor.Config{
		WorkerBinary:         binary,
		MonitorInterval:      cfg.MonitorInterval,
		StopTimeout:          cfg.StopTimeout,
		RestartPause:         500 * time.Millisecond,
		MaxRestarts:          cfg.MaxRestarts,
		MaxWorkersPerMachine: cfg.MaxWorkersPerMachine,
		ScaleCooldown:        cfg.ScaleCooldown,
	})

	if *scaleTargets != "" {
		targets, err := config.LoadScaleTargets(*scaleTargets)
		if err != nil {
			log.Fatalf("Failed to load scale targets: %v", err)
		}
		sup.AutoScale(map[string]int(targets))

		// Re-converge periodically; the per-queue cooldown keeps this from
		// oscillating
		go func() {
			ticker := time.NewTicker(cfg.MonitorInterval)
			defer ticker.Stop()
			for range ticker.C {
				if t, err := config.LoadScaleTargets(*scaleTargets); err == nil {
					sup.AutoScale(map[string]int(t))
				}
			}
		}()
	} else {
		if _, err := sup.StartWorker(cfg.Queues, cfg.Concurrency); err != nil {
			log.Fatalf("Failed to start worker process: %v", err)
		}
	}

	sd := shutdown.New(60 * time.Second)
	sd.Register(func(ctx context.Context) error {
		sup.Shutdown()
		return nil
	})

	// Process gauges for the supervised workers on this machine
	if cfg.MetricsAddr != "" {
		router := mux.NewRouter()
		router.Handle("/metrics", metrics.Handler(metrics.NewCollector(nil, sup, nil))).Methods("GET")
		router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}).Methods("GET")

		srv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Printf("Metrics listening on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server: %v", err)
			}
		}()
		sd.Register(srv.Shutdown)
	}

	sd.Wait()
}

// runConsumer executes tasks pulled from the broker queues
func runConsumer(args []string) {
	fs := flag.NewFlagSet("consume", flag.ExitOnError)
	queuesFlag := fs.String("queues", "general", "Comma-separated queue names")
	concurrency := fs.Int("concurrency", 1, "Concurrent task slots")
	pool := fs.String("pool", "prefork", "Pool mode (prefork or solo)")
	cfgPath := fs.String("config", "", "Config file path")
	_ = fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.BrokerURL == "" {
		log.Fatal("consume mode needs broker_url (set TASKGRID_BROKER_URL or config)")
	}

	queues := strings.Split(*queuesFlag, ",")

	log.Printf("Starting taskgrid consumer (queues %v, concurrency %d, pool %s)",
		queues, *concurrency, *pool)

	// Detect and advertise this process's capabilities
	caps := capability.Detect(capability.Options{
		MemoryPerTaskGB:     cfg.MemoryPerTaskGB,
		SpecializedSoftware: cfg.Capabilities,
	})
	if *concurrency > 0 && *concurrency < caps.MaxConcurrentTasks {
		caps.MaxConcurrentTasks = *concurrency
	}

	log.Printf("Capabilities: %s/%s, %d cores, %.1f GB, gpu=%v, slots=%d",
		caps.Platform, caps.Architecture, caps.CPUCores, caps.MemoryGB,
		caps.GPUAvailable, caps.MaxConcurrentTasks)

	brk, err := broker.NewRedisBroker(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("Failed to connect broker: %v", err)
	}

	client := api.NewClient(cfg.CoordinatorURL)

	ctx, cancel := context.WithCancel(context.Background())

	if err := client.RegisterWorker(ctx, caps); err != nil {
		log.Fatalf("Failed to register with coordinator: %v", err)
	}

	// Heartbeat loop keeps this worker eligible for routing
	go func() {
		ticker := time.NewTicker(cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := client.Heartbeat(caps.ID); err != nil {
					log.Printf("Heartbeat failed: %v", err)
				}
			}
		}
	}()

	registry := worker.NewRegistry()
	worker.RegisterExecHandlers(registry, cfg.Handlers)

	runtime := worker.NewRuntime(caps.ID, queues, *concurrency, brk, registry, client)

	sd := shutdown.New(30 * time.Second)
	sd.Register(func(ctx context.Context) error { return brk.Close() })
	sd.Register(func(ctx context.Context) error {
		cancel()
		return nil
	})
	go func() {
		runtime.Run(ctx)
	}()
	sd.Wait()
}
