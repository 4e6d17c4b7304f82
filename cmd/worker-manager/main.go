// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pm-intelligence/internal/app"
	"pm-intelligence/internal/common/camunda"
	"pm-intelligence/internal/common/config"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/scheduler"
	"pm-intelligence/pkg/registry"

	pq "pm-intelligence/internal/workers/conversation/process-query"
	cvc "pm-intelligence/internal/workers/intelligence/cross-validate-claim"
	ir "pm-intelligence/internal/workers/intelligence/infer-relationships"
)

func main() {
	bootLog := logger.New("info", "console")
	defer bootLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Stores and pipelines ---
	a, err := app.Build(ctx, cfg, log, app.Options{ConnectAttempts: 15, RetryDelay: 2 * time.Second})
	if err != nil {
		zapLog.Fatal("application bootstrap failed", zap.Error(err))
	}

	reg, err := registry.Default()
	if err != nil {
		zapLog.Fatal("activity registry invalid", zap.Error(err))
	}

	// --- Zeebe client ---
	zc, err := camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		a.Close(context.Background())
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Workers ---
	var workers []*camunda.Worker
	start := func(taskType string, newHandler func(registry.Activity) camunda.JobHandler) {
		if !cfg.IsWorkerEnabled(taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		activity, ok := reg.Lookup(taskType)
		if !ok {
			zapLog.Fatal("task type missing from activity registry", zap.String("taskType", taskType))
		}
		wcfg := cfg.GetWorkerConfig(taskType)
		maxJobs := wcfg.MaxJobsActive
		if maxJobs <= 0 {
			maxJobs = cfg.Camunda.MaxJobsActive
		}
		workers = append(workers, camunda.NewWorker(zc.Zeebe(), taskType, camunda.WorkerOptions{
			MaxJobsActive: maxJobs,
			Timeout:       config.GetDuration(wcfg.Timeout, activity.TimeoutOr(30*time.Second)),
		}, newHandler(activity), a.Obs, log))
	}

	start(pq.TaskType, func(act registry.Activity) camunda.JobHandler {
		return pq.NewHandler(pq.LoadConfig(cfg), a.Orchestrator, act, log)
	})
	start(ir.TaskType, func(act registry.Activity) camunda.JobHandler {
		return ir.NewHandler(ir.LoadConfig(cfg), a.Engine, act, log)
	})
	start(cvc.TaskType, func(act registry.Activity) camunda.JobHandler {
		return cvc.NewHandler(cvc.LoadConfig(cfg), a.Intelligence, act, log)
	})
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Inference schedule ---
	sched, err := scheduler.New(a.Engine, cfg.Inference.Schedule, log,
		scheduler.WithTimeout(config.GetDuration(cfg.GetWorkerConfig(ir.TaskType).Timeout, scheduler.DefaultTimeout)),
	)
	switch {
	case errors.Is(err, scheduler.ErrDisabled):
		zapLog.Info("inference schedule disabled")
	case err != nil:
		zapLog.Fatal("inference schedule invalid", zap.Error(err))
	default:
		sched.Start()
		if next, err := sched.NextRun(); err == nil {
			zapLog.Info("next scheduled inference", zap.Time("at", next))
		}
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		rctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		checks, ready := a.Ready(rctx)
		if err := zc.HealthCheck(rctx); err != nil {
			checks["zeebe"] = err.Error()
			ready = false
		} else {
			checks["zeebe"] = "ok"
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]interface{}{
			"status": status,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.App.HTTPAddress, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			zapLog.Error("Error stopping scheduler", zap.Error(err))
		}
	}
	if err := zc.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	a.Close(shutdownCtx)

	zapLog.Info("Worker manager stopped gracefully")
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
