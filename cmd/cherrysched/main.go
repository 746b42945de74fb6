package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/scoobyjava/cherry-scheduler/internal/config"
	"github.com/scoobyjava/cherry-scheduler/internal/events"
	"github.com/scoobyjava/cherry-scheduler/internal/executor"
	"github.com/scoobyjava/cherry-scheduler/internal/persistence"
	"github.com/scoobyjava/cherry-scheduler/internal/scheduler"
	"github.com/scoobyjava/cherry-scheduler/internal/telemetry"
	"github.com/scoobyjava/cherry-scheduler/internal/tui"
)

func main() {
	workloadPath := flag.String("workload", "", "path to a JSON workload file (required)")
	configPath := flag.String("config", "", "path to a config file (overrides conventional paths)")
	monitor := flag.Bool("monitor", false, "show the live TUI monitor while running")
	metricsFlag := flag.Bool("metrics", false, "periodically export metrics to stdout")
	flag.Parse()

	if *workloadPath == "" {
		fmt.Fprintln(os.Stderr, "usage: cherrysched -workload tasks.json [-config config.json] [-monitor]")
		os.Exit(2)
	}

	// Environment overrides may live in a .env file next to the binary.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: could not load .env: %v", err)
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load("", *configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Signal-aware context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *workloadPath, *monitor, *metricsFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, workloadPath string, monitor, metricsEnabled bool) error {
	bus := events.NewEventBus()
	defer bus.Close()

	var metrics scheduler.Metrics
	if metricsEnabled {
		shutdown, err := telemetry.InitProvider(ctx, 10*time.Second)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Printf("WARNING: telemetry shutdown: %v", err)
			}
		}()

		m, err := telemetry.NewMetrics()
		if err != nil {
			return fmt.Errorf("creating metrics: %w", err)
		}
		metrics = m
	}

	var journal scheduler.Journal
	if cfg.DatabasePath != "" {
		store, err := persistence.NewSQLiteStore(ctx, cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening task journal: %w", err)
		}
		defer store.Close()
		journal = store
	}

	policy, err := scheduler.ParsePolicy(cfg.Scheduler.DispatchPolicy)
	if err != nil {
		return err
	}

	retryCfg := executor.RetryConfig{
		InitialInterval:     time.Duration(cfg.Scheduler.Retry.InitialIntervalMS) * time.Millisecond,
		MaxInterval:         time.Duration(cfg.Scheduler.Retry.MaxIntervalMS) * time.Millisecond,
		Multiplier:          cfg.Scheduler.Retry.Multiplier,
		RandomizationFactor: cfg.Scheduler.Retry.RandomizationFactor,
	}

	sched := scheduler.New(scheduler.Options{
		Policy:             policy,
		RecomputeInterval:  time.Duration(cfg.Scheduler.RecomputeIntervalSec) * time.Second,
		DefaultMaxAttempts: cfg.Scheduler.DefaultMaxAttempts,
		Capacities:         cfg.Scheduler.Resources,
		Bus:                bus,
		Journal:            journal,
		Metrics:            metrics,
		RetryDelay:         retryCfg.DelayFunc(),
	})

	workload, err := LoadWorkload(workloadPath)
	if err != nil {
		return err
	}
	if err := workload.Register(sched); err != nil {
		return err
	}
	if _, err := sched.Validate(); err != nil {
		return err
	}

	exec := executor.New(
		time.Duration(cfg.Scheduler.DefaultTimeoutSec)*time.Second,
		executor.NewBreakerRegistry(),
	)
	runner := executor.NewRunner(executor.RunnerConfig{
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
	}, sched, exec)

	if monitor {
		return runWithMonitor(ctx, bus, runner, sched)
	}

	results, err := runner.RunAll(ctx)
	if err != nil {
		return err
	}
	printSummary(sched, len(results))
	return nil
}

// runWithMonitor runs the TUI in the foreground while the runner drains the
// scheduler in the background.
func runWithMonitor(ctx context.Context, bus *events.EventBus, runner *executor.Runner, sched *scheduler.Scheduler) error {
	p := tea.NewProgram(tui.New(bus), tea.WithAltScreen())

	runnerErr := make(chan error, 1)
	go func() {
		_, err := runner.RunAll(ctx)
		runnerErr <- err
	}()

	uiErr := make(chan error, 1)
	go func() {
		_, err := p.Run()
		uiErr <- err
	}()

	select {
	case err := <-uiErr:
		// User quit the monitor; the runner keeps the context.
		return err
	case <-ctx.Done():
		stopMonitor(p, uiErr)
		return ctx.Err()
	case err := <-runnerErr:
		if err != nil {
			stopMonitor(p, uiErr)
			return err
		}
		// Leave the monitor up so the final state can be inspected.
		err = <-uiErr
		printSummary(sched, 0)
		return err
	}
}

func stopMonitor(p *tea.Program, uiErr <-chan error) {
	p.Quit()
	select {
	case <-uiErr:
	case <-time.After(5 * time.Second):
		log.Println("Monitor shutdown timeout exceeded, forcing exit")
	}
}

func printSummary(sched *scheduler.Scheduler, executed int) {
	stats := sched.Stats()
	fmt.Printf("Tasks: %d total", stats.Total)
	for _, status := range []scheduler.Status{
		scheduler.StatusCompleted, scheduler.StatusFailed, scheduler.StatusSkipped,
	} {
		if n := stats.ByStatus[status]; n > 0 {
			fmt.Printf(", %d %s", n, status)
		}
	}
	fmt.Println()
	if stats.Executed > 0 {
		fmt.Printf("Average execution time: %s\n", stats.AverageExecution.Round(time.Millisecond))
	}
	if executed > 0 {
		fmt.Printf("Attempts recorded: %d\n", executed)
	}
}
