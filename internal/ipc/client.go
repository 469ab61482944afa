package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/kiosk/internal/runtimepath"
)

// Client handles IPC communication with a running kiosk
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client for the default socket
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientWithPath(socketPath)
}

// NewClientWithPath creates a client for an explicit socket path.
func NewClientWithPath(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kiosk: %w (is kiosk running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("kiosk error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *Client) fetch(cmd CommandType, out interface{}) error {
	resp, err := c.sendRequest(&Request{Command: cmd})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

func (c *Client) send(cmd CommandType, reason string) error {
	req := &Request{Command: cmd}
	if reason != "" {
		payload, err := json.Marshal(ReasonPayload{Reason: reason})
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Payload = payload
	}
	_, err := c.sendRequest(req)
	return err
}

// GetStatus retrieves the controller status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.fetch(CommandGetStatus, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetDisplays retrieves connected displays
func (c *Client) GetDisplays() (*DisplaysData, error) {
	var displays DisplaysData
	if err := c.fetch(CommandGetDisplays, &displays); err != nil {
		return nil, err
	}
	return &displays, nil
}

// GetPlan retrieves the current and previewed window placements
func (c *Client) GetPlan() (*PlanData, error) {
	var plan PlanData
	if err := c.fetch(CommandGetPlan, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Rematerialize asks the kiosk to rebuild its windows from the config on disk
func (c *Client) Rematerialize(reason string) error {
	return c.send(CommandRematerialize, reason)
}

// Quit asks the kiosk to exit through the manual exit path
func (c *Client) Quit(reason string) error {
	return c.send(CommandQuit, reason)
}

// Ping checks if the kiosk is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
