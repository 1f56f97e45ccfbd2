// proctord - proctored assessment session daemon
//
// proctord runs timed multiple-choice assessments under integrity
// monitoring. It loads question banks from disk, runs one attempt at a
// time, watches the exam surface and ambient sensors for violations,
// scores finished attempts, and persists tamper-evident records. A
// Unix-socket IPC interface drives the session from the CLI or a kiosk
// front end.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proctord/internal/config"
	"proctord/internal/content"
	"proctord/internal/exam"
	"proctord/internal/health"
	"proctord/internal/ipc"
	"proctord/internal/logging"
	"proctord/internal/metrics"
	"proctord/internal/monitor"
	"proctord/internal/sensor"
	"proctord/internal/session"
	"proctord/internal/store"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("proctord %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger, err := logging.New(&logging.Config{
		Level:     level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "proctord",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	secret, err := loadOrCreateSecret(cfg.Storage.SecretPath)
	if err != nil {
		return fmt.Errorf("load record secret: %w", err)
	}

	st, err := store.Open(cfg.Storage.Path, secret)
	if err != nil {
		return fmt.Errorf("open attempt store: %w", err)
	}
	defer st.Close()

	library, err := content.Open(cfg.Content.BankDir, logger.WithComponent("content"))
	if err != nil {
		return fmt.Errorf("open question banks: %w", err)
	}
	if cfg.Content.Watch {
		if err := library.Watch(); err != nil {
			logger.Warn("bank watching disabled", "error", err)
		} else {
			defer library.Stop()
		}
	}

	registry := metrics.NewRegistry("proctord")
	pm := metrics.NewProctordMetrics(registry)
	pm.SetLoadedBanks(int64(len(library.TestIDs())))

	surface, closeSurface := newSurface(logger)
	defer closeSurface()

	adapters := buildAdapters(cfg, surface)

	recorder := &observedRecorder{store: st, metrics: pm}

	engine := session.New(monitor.Config{
		MaxWarnings:    cfg.Session.MaxWarnings,
		DebounceWindow: time.Duration(cfg.Session.DebounceMs) * time.Millisecond,
	}, adapters, recorder, logger.WithComponent("session"))

	checker := health.NewChecker()
	checker.RegisterFunc("store", true, health.DatabaseCheck(st.Ping))
	checker.RegisterFunc("banks", false, health.BankCheck(func() int {
		return len(library.TestIDs())
	}))
	checker.RegisterFunc("sensors", false, health.SensorCheck(func() map[string]string {
		unavailable := make(map[string]string)
		for _, a := range adapters {
			if ok, reason := a.Available(); !ok {
				unavailable[a.Name()] = reason
			}
		}
		return unavailable
	}))

	startedAt := time.Now()

	var httpSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.HTTPHandler())
		mux.Handle("/health", checker.HealthHandler())
		httpSrv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.Metrics.ListenAddr)
	}

	var ipcSrv *ipc.Server
	if cfg.IPC.Enabled {
		handler := &ipc.DaemonHandler{
			Engine:    engine,
			Library:   library,
			Store:     st,
			Logger:    logger.WithComponent("ipc"),
			Metrics:   pm,
			Version:   version,
			StartedAt: startedAt,
		}
		srvCfg := ipc.DefaultServerConfig(cfg.IPC.SocketPath)
		srvCfg.Version = version
		srvCfg.ReadTimeout = time.Duration(cfg.IPC.TimeoutSec) * time.Second
		ipcSrv = ipc.NewServer(srvCfg, handler, logger.WithComponent("ipc"))
		if err := ipcSrv.Start(); err != nil {
			return fmt.Errorf("start ipc server: %w", err)
		}
		defer ipcSrv.Stop()
	}

	uptimeDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-uptimeDone:
				return
			case <-ticker.C:
				pm.UpdateUptime()
				pm.SetLoadedBanks(int64(len(library.TestIDs())))
			}
		}
	}()
	defer close(uptimeDone)

	logger.Info("proctord started",
		"version", version,
		"banks", len(library.TestIDs()),
		"socket", cfg.IPC.SocketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	// A running attempt does not survive the daemon. Terminate it, then
	// wait for the recorder handoff so the final record is written
	// before the deferred store close.
	if engine.State() == session.StateRunning {
		engine.ForceTerminate("daemon shutdown")
	}
	engine.Drain()

	if httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}

	return nil
}

// buildAdapters assembles the sensor set, honoring disabled_sensors.
func buildAdapters(cfg *config.Config, surface sensor.Surface) []sensor.Adapter {
	p := cfg.Proctoring
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }

	disabled := make(map[string]bool, len(p.DisabledSensors))
	for _, name := range p.DisabledSensors {
		disabled[name] = true
	}

	all := []sensor.Adapter{
		sensor.NewVisibilityAdapter(surface),
		sensor.NewFullscreenAdapter(surface),
		sensor.NewClipboardAdapter(surface),
		sensor.NewDevtoolsAdapter(surface, p.DevtoolsThresholdPx, ms(p.DevtoolsIntervalMs)),
		sensor.NewFaceAdapter(sensor.NoFrameSource{}, ms(p.CameraIntervalMs)),
		sensor.NewMultiFaceAdapter(sensor.NoFrameSource{}, ms(p.CameraIntervalMs)),
		sensor.NewSpeechAdapter(sensor.NoLevelSource{}, ms(p.AudioSampleMs), p.SpeechThreshold, ms(p.SpeechDwellMs)),
	}

	adapters := make([]sensor.Adapter, 0, len(all))
	for _, a := range all {
		if disabled[a.Name()] {
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters
}

// observedRecorder forwards finished attempts to the store and keeps
// the metrics in step.
type observedRecorder struct {
	store   *store.Store
	metrics *metrics.ProctordMetrics
}

func (r *observedRecorder) Record(a *exam.Attempt) error {
	expired := a.Status == exam.StatusCompleted && a.TimeSpent >= a.Duration
	r.metrics.AttemptFinished(a, expired)
	for _, v := range a.Violations {
		r.metrics.RecordViolation(v.Type)
	}

	if err := r.store.Record(a); err != nil {
		r.metrics.RecordFailure()
		return err
	}
	return nil
}

// loadOrCreateSecret reads the record HMAC secret, generating it on
// first run.
func loadOrCreateSecret(path string) ([]byte, error) {
	secret, err := os.ReadFile(path)
	if err == nil && len(secret) >= 16 {
		return secret, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	secret = make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return nil, err
	}
	return secret, nil
}
