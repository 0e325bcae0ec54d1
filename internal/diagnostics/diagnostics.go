// Package diagnostics is the engine's observability surface: Prometheus
// counters/gauges for scheduling behavior, an OpenTelemetry/Jaeger
// tracer for per-callback spans, and gopsutil-derived process stats for
// Engine.Stats(). It is a single package rather than split metrics and
// telemetry packages since the engine has one observability surface.
package diagnostics

import (
	"context"
	"fmt"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"net/http"
)

// Metrics holds the Prometheus instruments the engine updates as it
// schedules and runs tasks.
type Metrics struct {
	TasksSubmitted   prometheus.Counter
	TasksCompleted   prometheus.Counter
	TasksCancelled   prometheus.Counter
	TasksUnavailable prometheus.Counter
	QueueDepth       prometheus.Gauge
	WorkersBusy      prometheus.Gauge
	CallbackDuration prometheus.Histogram
}

// NewMetrics creates and registers the engine's Prometheus instruments
// against reg. Pass prometheus.NewRegistry() for an isolated registry in
// tests, or prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskengine",
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks submitted via run/run_with_args/start.",
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskengine",
			Name:      "tasks_completed_total",
			Help:      "Total number of task callback invocations that returned.",
		}),
		TasksCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskengine",
			Name:      "tasks_cancelled_total",
			Help:      "Total number of tasks cancelled while running.",
		}),
		TasksUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskengine",
			Name:      "tasks_unavailable_total",
			Help:      "Total number of make_task calls that failed due to id exhaustion.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskengine",
			Name:      "queue_depth",
			Help:      "Number of pending tasks in the queue.",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskengine",
			Name:      "workers_busy",
			Help:      "Number of workers currently executing a task.",
		}),
		CallbackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taskengine",
			Name:      "callback_duration_seconds",
			Help:      "Wall time spent inside task callbacks.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.TasksSubmitted, m.TasksCompleted, m.TasksCancelled, m.TasksUnavailable,
		m.QueueDepth, m.WorkersBusy, m.CallbackDuration,
	)
	return m
}

// Telemetry bundles the Prometheus registry and OpenTelemetry tracer
// provider the engine uses.
type Telemetry struct {
	Metrics  *Metrics
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	registry *prometheus.Registry
}

// Config controls which observability subsystems are active.
type Config struct {
	ServiceName    string
	JaegerEndpoint string
	MetricsEnabled bool
	TracingEnabled bool
}

// New builds a Telemetry instance. Metrics are always created (on an
// isolated registry) even if MetricsEnabled is false, so callers may
// still inspect them directly in tests; MetricsEnabled only gates
// whether the Go/process collectors are attached.
func New(cfg Config) (*Telemetry, error) {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		Metrics:  NewMetrics(reg),
		registry: reg,
		tracer:   trace.NewNoopTracerProvider().Tracer(cfg.ServiceName),
	}

	if cfg.MetricsEnabled {
		reg.MustRegister(prometheus.NewGoCollector())
		reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}

	if cfg.TracingEnabled {
		provider, err := initTracer(cfg.ServiceName, cfg.JaegerEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		t.provider = provider
		t.tracer = otel.Tracer(cfg.ServiceName)
	}

	return t, nil
}

func initTracer(serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the tracer used to wrap each task callback in a span.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// StartCallbackSpan starts a span named for the task's completion event,
// used by the worker loop to bracket a single callback invocation.
func (t *Telemetry) StartCallbackSpan(ctx context.Context, taskEvent string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "task.callback:"+taskEvent)
}

// MetricsHandler exposes the registry over HTTP, for callers that run a
// sidecar scrape endpoint (the engine itself has no network surface).
func (t *Telemetry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Close shuts down the tracer provider, flushing any buffered spans.
func (t *Telemetry) Close() error {
	if t.provider != nil {
		return t.provider.Shutdown(context.Background())
	}
	return nil
}

// ProcessStats is a point-in-time snapshot of host/runtime resource use,
// returned by Engine.Stats() alongside the engine's own counters.
type ProcessStats struct {
	CPUPercent      float64
	MemoryUsedBytes uint64
	MemoryPercent   float64
	Goroutines      int
	HeapAllocBytes  uint64
}

// CollectProcessStats samples CPU and memory using gopsutil plus the Go
// runtime's own goroutine/heap counters. CPU is sampled with a zero
// interval, so the call does not block; the percentage covers the time
// since the previous sample.
func CollectProcessStats(ctx context.Context) (ProcessStats, error) {
	var stats ProcessStats

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return stats, fmt.Errorf("sample cpu: %w", err)
	}
	if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("sample memory: %w", err)
	}
	stats.MemoryUsedBytes = vmem.Used
	stats.MemoryPercent = vmem.UsedPercent

	var rt runtime.MemStats
	runtime.ReadMemStats(&rt)
	stats.HeapAllocBytes = rt.HeapAlloc
	stats.Goroutines = runtime.NumGoroutine()

	return stats, nil
}
