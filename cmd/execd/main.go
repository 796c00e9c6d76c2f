package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/osdajiba/autotrade/internal/api"
	"github.com/osdajiba/autotrade/internal/chaos"
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/journal"
	"github.com/osdajiba/autotrade/internal/notify"
	"github.com/osdajiba/autotrade/internal/obs"
	"github.com/osdajiba/autotrade/internal/ops"
	"github.com/osdajiba/autotrade/internal/risk"
	"github.com/osdajiba/autotrade/internal/store"
	"github.com/osdajiba/autotrade/pkg/conn"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

type closer func()

func main() {
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	flag.Parse()

	_ = godotenv.Load()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if loaded.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: loaded.Profiling.ApplicationName,
			ServerAddress:   loaded.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx := context.Background()
	metrics := obs.NewMetrics()

	// Closers run in reverse order after the worker has stopped.
	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	sinks := notify.Multi{notify.Log{}}
	hub := notify.NewHub(0, metrics)
	sinks = append(sinks, hub)
	closers = append(closers, hub.Close)

	if loaded.Journal.Enabled {
		writer, err := journal.NewWriter(loaded.Journal.Config)
		if err != nil {
			log.Fatalf("journal init failed: %v", err)
		}
		if err := writer.Start(ctx); err != nil {
			log.Fatalf("journal start failed: %v", err)
		}
		sinks = append(sinks, writer)
		closers = append(closers, func() {
			if err := writer.Close(); err != nil {
				logs.Errorf("close journal, err: %+v", err)
			}
		})
	}

	if loaded.Store.Enabled {
		pg, err := conn.NewPostgres(loaded.Store.Postgres)
		if err != nil {
			log.Fatalf("postgres connect failed: %v", err)
		}
		st := store.New(pg.DB(), loaded.Store.Timeout)
		if err := st.Migrate(ctx); err != nil {
			log.Fatalf("store migrate failed: %v", err)
		}
		sinks = append(sinks, st)
		closers = append(closers, func() { _ = pg.Close() })
	}

	if loaded.Redis.Enabled {
		client, err := conn.NewRedis(ctx, loaded.Redis.RedisOption)
		if err != nil {
			log.Fatalf("redis connect failed: %v", err)
		}
		sinks = append(sinks, notify.NewRedis(client, loaded.Redis.Channel, loaded.Redis.Timeout))
		closers = append(closers, func() { _ = client.Close() })
	}

	// Everything but the log sink is delivered off the worker goroutine.
	async := notify.NewAsync(sinks[1:], 0, metrics)
	closers = append(closers, async.Close)

	opts := []execution.Option{
		execution.WithSink(notify.Multi{sinks[0], async}),
		execution.WithMetrics(metrics),
		execution.WithRegistry(loaded.Registry),
	}
	if loaded.RiskEnabled {
		opts = append(opts, execution.WithRisk(risk.NewEngine(loaded.Risk, loaded.Registry)))
	}
	if loaded.Chaos.Enabled() {
		faults, err := chaos.NewEngine(loaded.Chaos)
		if err != nil {
			log.Fatalf("chaos init failed: %v", err)
		}
		logs.Warnf("fault injection enabled, fail rate: %v, panic rate: %v", loaded.Chaos.FailRate, loaded.Chaos.PanicRate)
		opts = append(opts, execution.WithFaults(faults))
	}

	system := execution.New(loaded.Execution, opts...)
	if err := system.Run(); err != nil {
		log.Fatalf("execution system start failed: %v", err)
	}

	var server *http.Server
	if loaded.HTTP.Enabled {
		server = &http.Server{
			Addr:              loaded.HTTP.Addr,
			Handler:           api.NewRouter(api.NewHandler(system, hub, loaded.Settings)),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logs.Infof("http listening on %s", loaded.HTTP.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("http server failed: %v", err)
			}
		}()
	}

	<-sys.Shutdown()
	logs.Info("shutting down")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logs.Errorf("http shutdown, err: %+v", err)
		}
		cancel()
	}
	system.Stop()

	snapshot := metrics.Snapshot()
	logs.Infof("submitted: %d, queue drops: %d, sink drops: %d", snapshot.Submitted, snapshot.QueueDrops, snapshot.SinkDrops)
}
