package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/1broseidon/kiosk/internal/browser"
	"github.com/1broseidon/kiosk/internal/config"
	"github.com/1broseidon/kiosk/internal/controller"
	"github.com/1broseidon/kiosk/internal/daemon"
	"github.com/1broseidon/kiosk/internal/freshness"
	"github.com/1broseidon/kiosk/internal/hotkeys"
	"github.com/1broseidon/kiosk/internal/ipc"
	"github.com/1broseidon/kiosk/internal/marker"
	"github.com/1broseidon/kiosk/internal/metrics"
	"github.com/1broseidon/kiosk/internal/platform"
	"github.com/1broseidon/kiosk/internal/relaunch"
	"github.com/1broseidon/kiosk/internal/runtimepath"
)

func printRunUsage() {
	fmt.Fprintln(os.Stderr, "Usage: kiosk run [--config PATH] [--policy session|boot] [--log-level LEVEL]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Open one kiosk window per configured URL and run the restart cycle")
	fmt.Fprintln(os.Stderr, "(foreground). This is the default when kiosk is started without a command.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  KIOSK_CONFIG          Config file path")
	fmt.Fprintln(os.Stderr, "  KIOSK_RESOURCES_DIR   Resources directory searched for the config")
	fmt.Fprintln(os.Stderr, "  KIOSK_MARKER_DIR      Directory for restart marker files")
	fmt.Fprintln(os.Stderr, "  KIOSK_RESTART_POLICY  session or boot")
	fmt.Fprintln(os.Stderr, "  KIOSK_LOG_LEVEL       debug, info, warn or error")
	fmt.Fprintln(os.Stderr, "  KIOSK_LOG_FORMAT      auto, text or json")
	fmt.Fprintln(os.Stderr, "  KIOSK_METRICS_ADDR    Serve Prometheus metrics on this address")
	fmt.Fprintln(os.Stderr, "  KIOSK_DISPLAY_POLL    Display hotplug poll interval (default 2s)")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
}

func runKiosk(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path (skips the search)")
	policyName := fs.String("policy", "", "Restart policy: session or boot")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn or error")
	fs.Usage = func() {
		printRunUsage()
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "run takes no arguments")
		fs.Usage()
		return 2
	}

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *configPath != "" {
		settings.ConfigPath = *configPath
	}
	if *policyName != "" {
		settings.RestartPolicy = *policyName
	}
	if *logLevel != "" {
		settings.LogLevel = *logLevel
	}

	logger, err := newLogger(os.Stderr, settings.LogLevel, settings.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	slog.SetDefault(logger)

	exeDir, err := runtimepath.ExecutableDir()
	if err != nil {
		logger.Error("failed to locate executable", "error", err)
		return 1
	}

	loader := config.NewLoader(searchPaths(settings, exeDir), logger.With("component", "config"))
	initial := loader.Load()

	policy, err := freshness.Parse(settings.ResolvePolicy(initial))
	if err != nil {
		logger.Warn("falling back to session restart policy", "error", err)
		policy = freshness.SessionCount{}
	}

	m := metrics.NewMetrics()
	markers := marker.NewStore(markerDir(settings, exeDir), logger.With("component", "marker"))
	markers.SetErrorObserver(m.MarkerFailed)

	// Without an X connection browsers still start with their own
	// position flags; placement, shortcuts and hotplug are unavailable.
	var (
		backend   platform.Backend
		shortcuts browser.Shortcuts
	)
	xb, err := platform.NewLinuxBackendFromDisplay()
	if err != nil {
		logger.Error("failed to connect to display; windows will not be pinned", "error", err)
	} else {
		backend = xb
		shortcuts = hotkeys.NewHandler(xb)
	}

	host := browser.NewHost(browser.Options{
		Command:   initial.BrowserCommand(),
		Args:      initial.Browser.Args,
		Backend:   backend,
		Shortcuts: shortcuts,
		Logger:    logger.With("component", "browser"),
	})

	proc, err := relaunch.NewProcess(logger.With("component", "relaunch"))
	if err != nil {
		logger.Error("failed to prepare relaunch", "error", err)
		return 1
	}

	ctrl := controller.New(controller.Options{
		Host:     host,
		Process:  proc,
		Markers:  markers,
		Policy:   policy,
		Config:   loader,
		Observer: m,
		Logger:   logger.With("component", "controller"),
	})

	srv, err := startIPC(ctrl, host, loader, logger)
	if errors.Is(err, ipc.ErrAlreadyRunning) {
		logger.Error("kiosk is already running")
		return 1
	}
	if err != nil {
		logger.Warn("IPC unavailable", "error", err)
	}

	var releaseOnce sync.Once
	release := func() {
		releaseOnce.Do(func() {
			if srv != nil {
				srv.Stop()
			}
			if xb != nil {
				xb.StopEventLoop()
				xb.Disconnect()
			}
		})
	}
	proc.Flush = release

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if backend != nil {
		watcher := daemon.NewReconciler(daemon.ReconcilerConfig{
			Interval: settings.DisplayPoll,
			Logger:   logger.With("component", "displays"),
		}, host.Displays, func(c daemon.Change) {
			if ev, ok := displayEvent(c); ok {
				ctrl.Dispatch(ev)
			}
		})
		go watcher.Run(ctx)
	}

	if settings.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, settings.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("kiosk starting", "policy", policy.Name(), "pid", os.Getpid())
	go func() {
		if err := ctrl.Run(ctx); err != nil {
			logger.Error("controller stopped", "error", err)
		}
	}()

	if xb != nil {
		go func() {
			<-ctrl.Done()
			xb.StopEventLoop()
		}()
		xb.EventLoop()
	}
	<-ctrl.Done()

	release()
	logger.Info("kiosk stopped")
	return 0
}

func searchPaths(settings *config.Settings, exeDir string) config.SearchPaths {
	cwd, _ := os.Getwd()
	return config.SearchPaths{
		Explicit:     settings.ConfigPath,
		ExeDir:       exeDir,
		ResourcesDir: runtimepath.ResourcesDir(exeDir, settings.ResourcesDir),
		DevDir:       cwd,
	}
}

func markerDir(settings *config.Settings, exeDir string) string {
	if settings.MarkerDir != "" {
		return settings.MarkerDir
	}
	return exeDir
}

func startIPC(ctrl *controller.Controller, displays ipc.DisplaySource, configs controller.ConfigSource, logger *slog.Logger) (*ipc.Server, error) {
	srv, err := ipc.NewServer(ipc.ServerOptions{
		Controller: ctrl,
		Displays:   displays,
		Config:     configs,
		Logger:     logger.With("component", "ipc"),
	})
	if err != nil {
		return nil, err
	}
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return srv, nil
}

// displayEvent folds one watcher change into a single controller event.
// Removal wins so windows on a vanished output are rebuilt right away.
func displayEvent(c daemon.Change) (controller.Event, bool) {
	switch {
	case len(c.Removed) > 0:
		return controller.Event{Kind: controller.EventDisplayRemoved, Reason: "display removed"}, true
	case len(c.Added) > 0:
		return controller.Event{Kind: controller.EventDisplayAdded, Reason: "display added"}, true
	case len(c.Changed) > 0:
		return controller.Event{Kind: controller.EventRematerialize, Reason: "display layout changed"}, true
	default:
		return controller.Event{}, false
	}
}
