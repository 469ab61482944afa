package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/1broseidon/kiosk/internal/config"
	"github.com/1broseidon/kiosk/internal/freshness"
	"github.com/1broseidon/kiosk/internal/marker"
	"github.com/1broseidon/kiosk/internal/runtimepath"
)

func runMarkers(args []string) int {
	fs := flag.NewFlagSet("markers", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	clearAll := fs.Bool("clear", false, "Remove every marker so the next start is a cold start owing a restart")
	dir := fs.String("dir", "", "Marker directory (default: KIOSK_MARKER_DIR or the executable's directory)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: kiosk markers [--clear] [--dir DIR]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show or remove the restart marker files.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Options:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "markers takes no arguments")
		fs.Usage()
		return 2
	}

	if *dir == "" {
		settings, err := config.LoadSettings()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		exeDir, err := runtimepath.ExecutableDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		*dir = markerDir(settings, exeDir)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := marker.NewStore(*dir, logger)
	if *clearAll {
		clearMarkers(store)
		fmt.Fprintf(os.Stdout, "cleared markers in %s\n", store.Dir())
		return 0
	}

	uptime, err := freshness.SystemUptime()
	writeMarkers(os.Stdout, store, uptime, err == nil)
	return 0
}

func clearMarkers(store *marker.Store) {
	store.ClearInFlight()
	store.ClearCompletion(marker.SessionCompleted)
	store.ClearCompletion(marker.BootCompleted)
}

// writeMarkers prints every marker and what each policy concludes from it.
func writeMarkers(w io.Writer, store *marker.Store, uptime float64, uptimeKnown bool) {
	fmt.Fprintf(w, "dir:       %s\n", store.Dir())
	fmt.Fprintf(w, "in_flight: %v\n", store.HasInFlight())

	if uptimeKnown {
		fmt.Fprintf(w, "uptime:    %.2f\n", uptime)
	} else {
		fmt.Fprintln(w, "uptime:    unknown")
	}

	for _, p := range []freshness.Policy{freshness.SessionCount{}, freshness.BootEpoch{}} {
		payload, ok := store.ReadCompletion(p.Marker())
		obs := freshness.Observation{
			Uptime:        uptime,
			UptimeKnown:   uptimeKnown,
			HasCompletion: ok,
			Completion:    payload,
		}
		state := "absent"
		if ok {
			state = fmt.Sprintf("%q", payload)
		}
		fmt.Fprintf(w, "%-9s  %s: %s (restart owed: %v)\n", p.Name(), p.Marker(), state, p.ShouldArm(obs))
	}
}
