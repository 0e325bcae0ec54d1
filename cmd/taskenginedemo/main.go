// Command taskenginedemo wires the task engine into a small host
// process: it submits a one-shot startup probe and registers a heartbeat
// submitter on a cron schedule external to the engine (the engine's own
// aging model operates on millisecond deadlines, not cron expressions,
// so the two are composed rather than merged). The process exits right
// after the probe completes and the stats line is printed, so the
// heartbeat runs only if a five-second cron tick falls before then.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/taskforge-go/taskforge/internal/diagnostics"
	"github.com/taskforge-go/taskforge/internal/engine"
	"github.com/taskforge-go/taskforge/internal/platform/config"
	"github.com/taskforge-go/taskforge/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logger)

	tel, err := diagnostics.New(diagnostics.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		JaegerEndpoint: cfg.Telemetry.JaegerEndpoint,
		MetricsEnabled: cfg.Telemetry.MetricsEnabled,
		TracingEnabled: cfg.Telemetry.TracingEnabled,
	})
	if err != nil {
		log.Fatal("failed to initialize telemetry", "error", err)
	}
	defer tel.Close()

	eng := engine.NewBuilder().
		SetPoolSize(cfg.Engine.PoolSize).
		SetIDCapacity(cfg.Engine.IDCapacity).
		SetAwaitTimeout(cfg.Engine.AwaitTimeout).
		WithTelemetry(tel).
		WithLogger(log).
		Init()
	defer eng.Destroy()

	submitHeartbeat := func() {
		runID := uuid.NewString()
		task, err := eng.Start(func(args any) any {
			log.Info("heartbeat task executed", "run_id", runID)
			return runID
		}, nil)
		if err != nil {
			log.Error("heartbeat submission unavailable", "error", err)
			return
		}
		task.OnComplete(func(result any, _ any) {
			log.Debug("heartbeat completed", "run_id", result)
		}, nil)
	}

	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc("*/5 * * * * *", submitHeartbeat); err != nil {
		log.Fatal("failed to register heartbeat schedule", "error", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	task, err := eng.Start(func(args any) any {
		return args
	}, "startup probe")
	if err != nil {
		log.Fatal("startup probe unavailable", "error", err)
	}
	result, ok := eng.Await(task)
	if !ok {
		log.Fatal("startup probe did not complete")
	}
	log.Info("startup probe completed", "result", result)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stats, err := eng.Stats(ctx)
	if err != nil {
		log.Error("failed to collect stats", "error", err)
	} else {
		fmt.Printf("pool_size=%d queue_depth=%d cpu=%.1f%% heap=%dB goroutines=%d\n",
			stats.PoolSize, stats.QueueDepth, stats.CPUPercent, stats.HeapAllocBytes, stats.Goroutines)
	}
}
