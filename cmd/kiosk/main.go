package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/ipc"
)

func main() {
	if len(os.Args) < 2 {
		os.Exit(runKiosk(nil))
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runKiosk(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "displays":
		os.Exit(runDisplays(os.Args[2:]))
	case "plan":
		os.Exit(runPlan(os.Args[2:]))
	case "rematerialize":
		os.Exit(runRematerialize(os.Args[2:]))
	case "quit":
		os.Exit(runQuit(os.Args[2:]))
	case "markers":
		os.Exit(runMarkers(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		if strings.HasPrefix(os.Args[1], "-") {
			os.Exit(runKiosk(os.Args[1:]))
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: kiosk [command] [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run                 Open the kiosk windows (default, foreground)")
	fmt.Fprintln(w, "  status              Show restart-cycle status of the running kiosk")
	fmt.Fprintln(w, "  displays            List connected displays")
	fmt.Fprintln(w, "  plan                Show the window-to-display assignment")
	fmt.Fprintln(w, "  rematerialize       Rebuild every window from the config on disk")
	fmt.Fprintln(w, "  quit                Close all windows and exit the running kiosk")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  markers             Show restart marker files")
	fmt.Fprintln(w, "  markers --clear     Remove restart marker files")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'kiosk <command> --help' for command-specific options.")
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Print raw JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: kiosk status [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show the running kiosk's state via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(os.Stdout, status)
	}
	writeStatus(os.Stdout, status)
	return 0
}

func writeStatus(w io.Writer, s *ipc.StatusData) {
	fmt.Fprintf(w, "state:          %s\n", s.State)
	fmt.Fprintf(w, "policy:         %s\n", s.Policy)
	fmt.Fprintf(w, "timer_armed:    %v\n", s.TimerArmed)
	fmt.Fprintf(w, "open_windows:   %d\n", s.OpenWindows)
	fmt.Fprintf(w, "shortcuts:      %v\n", s.Shortcuts)
	if s.UptimeKnown {
		fmt.Fprintf(w, "system_uptime:  %.2f\n", s.Uptime)
		fmt.Fprintf(w, "fresh_boot:     %v\n", s.FreshBoot)
	} else {
		fmt.Fprintln(w, "system_uptime:  unknown")
	}
	fmt.Fprintf(w, "completed:      %v\n", s.Completed)
	fmt.Fprintf(w, "pass:           %d\n", s.Pass)
	fmt.Fprintf(w, "pid:            %d\n", s.PID)
	fmt.Fprintf(w, "uptime_seconds: %d\n", s.UptimeSeconds)
}

func runDisplays(args []string) int {
	fs := flag.NewFlagSet("displays", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Print raw JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: kiosk displays [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List the displays the running kiosk sees, in assignment order.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "displays takes no arguments")
		fs.Usage()
		return 2
	}

	data, err := ipc.NewClient().GetDisplays()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(os.Stdout, data)
	}
	writeDisplays(os.Stdout, data.Displays)
	return 0
}

func writeDisplays(w io.Writer, displays []ipc.DisplayInfo) {
	if len(displays) == 0 {
		fmt.Fprintln(w, "no displays")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tGEOMETRY")
	for i, d := range displays {
		fmt.Fprintf(tw, "%d\t%s\t%dx%d+%d+%d\n", i, d.Name, d.Width, d.Height, d.X, d.Y)
	}
	tw.Flush()
}

func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	preview := fs.Bool("preview", false, "Show what a rematerialization would produce instead")
	jsonOut := fs.Bool("json", false, "Print raw JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: kiosk plan [--preview] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show which display each kiosk window is on.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "plan takes no arguments")
		fs.Usage()
		return 2
	}

	plan, err := ipc.NewClient().GetPlan()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	placements := plan.Current
	if *preview {
		placements = plan.Preview
	}
	if *jsonOut {
		return printJSON(os.Stdout, placements)
	}
	writePlan(os.Stdout, placements)
	return 0
}

func writePlan(w io.Writer, placements []assign.Placement) {
	if len(placements) == 0 {
		fmt.Fprintln(w, "no windows")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tDISPLAY\tGEOMETRY\tURL")
	for _, p := range placements {
		display := "default"
		if p.DisplayIndex >= 0 {
			display = fmt.Sprintf("%d", p.DisplayIndex)
			if p.DisplayName != "" {
				display += " (" + p.DisplayName + ")"
			}
		}
		if p.FellBack() {
			display += fmt.Sprintf(" [wanted %d]", p.RequestedDisplay)
		}
		url := p.URL
		if p.ShortcutOwner {
			url += "  *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.Index, display, p.Bounds.String(), url)
	}
	tw.Flush()
}

func runRematerialize(args []string) int {
	fs := flag.NewFlagSet("rematerialize", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: kiosk rematerialize [reason]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Close every window and reopen them from the config on disk.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if err := ipc.NewClient().Rematerialize(strings.Join(fs.Args(), " ")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runQuit(args []string) int {
	fs := flag.NewFlagSet("quit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: kiosk quit")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Exit the running kiosk as if the exit shortcut was pressed.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "quit takes no arguments")
		fs.Usage()
		return 2
	}

	if err := ipc.NewClient().Quit("cli"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func printJSON(w io.Writer, v interface{}) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
