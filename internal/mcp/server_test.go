package mcp

import (
	"context"
	"errors"
	"sort"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/kiosk/internal/assign"
	"github.com/1broseidon/kiosk/internal/controller"
	"github.com/1broseidon/kiosk/internal/ipc"
)

type fakeKiosk struct {
	status   ipc.StatusData
	displays ipc.DisplaysData
	plan     ipc.PlanData
	err      error
	reasons  []string
}

func (f *fakeKiosk) GetStatus() (*ipc.StatusData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.status, nil
}

func (f *fakeKiosk) GetDisplays() (*ipc.DisplaysData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.displays, nil
}

func (f *fakeKiosk) GetPlan() (*ipc.PlanData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.plan, nil
}

func (f *fakeKiosk) Rematerialize(reason string) error {
	if f.err != nil {
		return f.err
	}
	f.reasons = append(f.reasons, reason)
	return nil
}

func TestNewServerRequiresKiosk(t *testing.T) {
	if _, err := NewServer(nil); err == nil {
		t.Fatal("expected error for nil kiosk")
	}
}

func TestHandleStatus(t *testing.T) {
	k := &fakeKiosk{status: ipc.StatusData{
		Status: controller.Status{
			State:       "windows-open",
			Policy:      "boot",
			TimerArmed:  true,
			OpenWindows: 3,
			Uptime:      42.5,
			UptimeKnown: true,
		},
		PID: 4242,
	}}
	s, err := NewServer(k)
	if err != nil {
		t.Fatal(err)
	}

	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("handleStatus: %v", err)
	}
	if out.State != "windows-open" || out.Policy != "boot" || !out.TimerArmed {
		t.Errorf("unexpected status %+v", out)
	}
	if out.UptimeSeconds != "42.50" {
		t.Errorf("UptimeSeconds = %q, want 42.50", out.UptimeSeconds)
	}
	if out.PID != 4242 || out.OpenWindows != 3 {
		t.Errorf("unexpected status %+v", out)
	}
}

func TestHandleStatusUnknownUptime(t *testing.T) {
	s, _ := NewServer(&fakeKiosk{})

	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.UptimeSeconds != "" {
		t.Errorf("UptimeSeconds = %q, want empty", out.UptimeSeconds)
	}
}

func TestHandleListDisplays(t *testing.T) {
	k := &fakeKiosk{displays: ipc.DisplaysData{Displays: []ipc.DisplayInfo{
		{ID: 0, Name: "DP-1", Width: 1920, Height: 1080},
		{ID: 1, Name: "HDMI-1", X: 1920, Width: 1280, Height: 1024},
	}}}
	s, _ := NewServer(k)

	_, out, err := s.handleListDisplays(context.Background(), nil, ListDisplaysInput{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Displays) != 2 {
		t.Fatalf("got %d displays, want 2", len(out.Displays))
	}
	if got := out.Displays[1].Geometry; got != "1280x1024+1920+0" {
		t.Errorf("Geometry = %q", got)
	}
	if out.Displays[1].Index != 1 {
		t.Errorf("Index = %d, want 1", out.Displays[1].Index)
	}
}

func TestHandleWindowPlan(t *testing.T) {
	k := &fakeKiosk{plan: ipc.PlanData{
		Current: []assign.Placement{{Index: 0, URL: "https://a.example"}},
		Preview: []assign.Placement{{Index: 0, URL: "https://b.example"}},
	}}
	s, _ := NewServer(k)

	_, out, err := s.handleWindowPlan(context.Background(), nil, WindowPlanInput{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Current) != 1 || out.Preview != nil {
		t.Errorf("without preview got %+v", out)
	}

	_, out, err = s.handleWindowPlan(context.Background(), nil, WindowPlanInput{Preview: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Preview) != 1 || out.Preview[0].URL != "https://b.example" {
		t.Errorf("with preview got %+v", out)
	}
}

func TestHandleRematerialize(t *testing.T) {
	k := &fakeKiosk{}
	s, _ := NewServer(k)

	_, out, err := s.handleRematerialize(context.Background(), nil, RematerializeInput{})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Requested {
		t.Error("Requested = false")
	}
	if len(k.reasons) != 1 || k.reasons[0] != "mcp" {
		t.Errorf("reasons = %v", k.reasons)
	}
}

func TestHandlersPropagateIPCErrors(t *testing.T) {
	s, _ := NewServer(&fakeKiosk{err: errors.New("failed to connect to kiosk")})

	if _, _, err := s.handleStatus(context.Background(), nil, StatusInput{}); err == nil {
		t.Error("handleStatus: expected error")
	}
	if _, _, err := s.handleRematerialize(context.Background(), nil, RematerializeInput{}); err == nil {
		t.Error("handleRematerialize: expected error")
	}
}

func TestToolsAreListed(t *testing.T) {
	s, _ := NewServer(&fakeKiosk{})
	ctx := context.Background()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer serverSession.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"kiosk_status", "list_displays", "rematerialize_windows", "window_plan"}
	if len(names) != len(want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tools = %v, want %v", names, want)
			break
		}
	}
}
