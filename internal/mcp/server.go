// Package mcp exposes a running kiosk to MCP clients over stdio. Every tool
// talks to the kiosk through its IPC socket.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/ipc"
	"github.com/1broseidon/kiosk/internal/platform"
)

const (
	ServerName    = "kiosk"
	ServerVersion = "0.1.0"
)

// Kiosk is the IPC surface the tools use. *ipc.Client implements it.
type Kiosk interface {
	GetStatus() (*ipc.StatusData, error)
	GetDisplays() (*ipc.DisplaysData, error)
	GetPlan() (*ipc.PlanData, error)
	Rematerialize(reason string) error
}

var _ Kiosk = (*ipc.Client)(nil)

// Server is the MCP server for kiosk inspection and control.
type Server struct {
	mcpServer *mcpsdk.Server
	kiosk     Kiosk
}

// NewServer creates an MCP server backed by kiosk.
func NewServer(kiosk Kiosk) (*Server, error) {
	if kiosk == nil {
		return nil, errors.New("mcp: kiosk client is nil")
	}
	s := &Server{kiosk: kiosk}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "kiosk_status",
		Description: "Report the kiosk restart-cycle state: current phase, active freshness policy, whether the one-time restart timer is armed, and how many windows are open.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_displays",
		Description: "List the displays the kiosk can place windows on, in the order display indexes in the config refer to.",
	}, s.handleListDisplays)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "window_plan",
		Description: "Show which display and URL each configured window is using. With preview, also show what a rematerialization from the config on disk would produce.",
	}, s.handleWindowPlan)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "rematerialize_windows",
		Description: "Close all kiosk windows and reopen them from the config on disk and the displays connected now. Ignored while a restart is in flight. Does not change restart-cycle state.",
	}, s.handleRematerialize)
}

func (s *Server) handleStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st, err := s.kiosk.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	out := StatusOutput{
		State:          st.State,
		Policy:         st.Policy,
		TimerArmed:     st.TimerArmed,
		OpenWindows:    st.OpenWindows,
		Pass:           st.Pass,
		UptimeKnown:    st.UptimeKnown,
		CompletionSeen: st.Completed,
		PID:            st.PID,
	}
	if st.UptimeKnown {
		out.UptimeSeconds = strconv.FormatFloat(st.Uptime, 'f', 2, 64)
	}
	return nil, out, nil
}

func (s *Server) handleListDisplays(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListDisplaysInput) (*mcpsdk.CallToolResult, ListDisplaysOutput, error) {
	data, err := s.kiosk.GetDisplays()
	if err != nil {
		return nil, ListDisplaysOutput{}, err
	}
	out := ListDisplaysOutput{Displays: make([]DisplayInfo, 0, len(data.Displays))}
	for i, d := range data.Displays {
		r := platform.Rect{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height}
		out.Displays = append(out.Displays, DisplayInfo{Index: i, Name: d.Name, Geometry: r.String()})
	}
	return nil, out, nil
}

func (s *Server) handleWindowPlan(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowPlanInput) (*mcpsdk.CallToolResult, WindowPlanOutput, error) {
	plan, err := s.kiosk.GetPlan()
	if err != nil {
		return nil, WindowPlanOutput{}, err
	}
	out := WindowPlanOutput{Current: plan.Current}
	if out.Current == nil {
		out.Current = []assign.Placement{}
	}
	if args.Preview {
		out.Preview = plan.Preview
	}
	return nil, out, nil
}

func (s *Server) handleRematerialize(_ context.Context, _ *mcpsdk.CallToolRequest, args RematerializeInput) (*mcpsdk.CallToolResult, RematerializeOutput, error) {
	reason := args.Reason
	if reason == "" {
		reason = "mcp"
	}
	if err := s.kiosk.Rematerialize(reason); err != nil {
		return nil, RematerializeOutput{}, fmt.Errorf("rematerialize: %w", err)
	}
	return nil, RematerializeOutput{Requested: true}, nil
}
