// Package unifi provides integration with a UniFi network controller.
// The client speaks the controller's proxied network API; the normalizer
// converts raw controller records into the canonical report schema; the
// ingester polls on an interval and feeds the processing queue.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Client provides access to the UniFi controller API. It authenticates
// with a local account, keeps the session cookie, and re-authenticates
// once on a 401 before failing a request.
type Client struct {
	baseURL    string
	site       string
	username   string
	password   string
	apiKey     string
	csrfToken  string
	httpClient *http.Client
}

// ClientConfig holds configuration for the controller client.
type ClientConfig struct {
	BaseURL  string        `yaml:"base_url" validate:"required,url"`
	Site     string        `yaml:"site"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`

	// InsecureSkipVerify disables TLS verification. Most controllers ship
	// with a self-signed certificate, so this defaults to on.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:            "https://192.168.1.1",
		Site:               "default",
		Timeout:            30 * time.Second,
		InsecureSkipVerify: true,
	}
}

// NewClient creates a new controller client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("controller base URL is required")
	}
	if cfg.Site == "" {
		cfg.Site = "default"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		site:     cfg.Site,
		username: cfg.Username,
		password: cfg.Password,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: transport,
		},
	}, nil
}

// RawEvent is an event record as the controller returns it. The time field
// is untyped because controllers emit epoch milliseconds, epoch seconds, or
// a datetime string depending on version.
type RawEvent struct {
	Key      string `json:"key"`
	Msg      string `json:"msg"`
	Time     any    `json:"time,omitempty"`
	Datetime string `json:"datetime,omitempty"`
	Subsys   string `json:"subsystem,omitempty"`

	AP       string `json:"ap,omitempty"`
	APName   string `json:"ap_name,omitempty"`
	SW       string `json:"sw,omitempty"`
	SWName   string `json:"sw_name,omitempty"`
	GW       string `json:"gw,omitempty"`
	GWName   string `json:"gw_name,omitempty"`
	User     string `json:"user,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Admin    string `json:"admin,omitempty"`
	IP       string `json:"ip,omitempty"`
	SSID     string `json:"ssid,omitempty"`
	ESSID    string `json:"essid,omitempty"`
	Channel  any    `json:"channel,omitempty"`
	Port     any    `json:"port,omitempty"`
	Version  string `json:"version,omitempty"`
	WANIface string `json:"iface,omitempty"`
}

// RawAlarm is an IPS/IDS alarm record from the controller's alarm log.
type RawAlarm struct {
	Key         string `json:"key"`
	Time        any    `json:"time,omitempty"`
	Datetime    string `json:"datetime,omitempty"`
	Signature   string `json:"inner_alert_signature,omitempty"`
	Category    string `json:"inner_alert_category,omitempty"`
	Action      string `json:"inner_alert_action,omitempty"`
	SrcIP       string `json:"src_ip,omitempty"`
	DstIP       string `json:"dst_ip,omitempty"`
	SrcPort     int    `json:"src_port,omitempty"`
	DstPort     int    `json:"dst_port,omitempty"`
	Protocol    string `json:"proto,omitempty"`
	InnerSrcIP  string `json:"inner_alert_src_ip,omitempty"`
	InnerDstIP  string `json:"inner_alert_dst_ip,omitempty"`
	Msg         string `json:"msg,omitempty"`
}

// RawDevice is a device record from the controller's device listing,
// reduced to the fields health evaluation needs.
type RawDevice struct {
	Name        string   `json:"name"`
	Model       string   `json:"model,omitempty"`
	IP          string   `json:"ip,omitempty"`
	Type        string   `json:"type,omitempty"`
	State       int      `json:"state"`
	Uptime      *int64   `json:"uptime,omitempty"`
	Temperature *float64 `json:"general_temperature,omitempty"`
	SystemStats *struct {
		CPU string `json:"cpu"`
		Mem string `json:"mem"`
	} `json:"system-stats,omitempty"`
}

// apiResponse is the controller's standard envelope.
type apiResponse struct {
	Meta struct {
		RC      string `json:"rc"`
		Message string `json:"msg,omitempty"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// Login authenticates against the controller and stores the session
// cookie and CSRF token. Clients using an API key skip this entirely.
func (c *Client) Login(ctx context.Context) error {
	if c.apiKey != "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	if token := resp.Header.Get("X-Csrf-Token"); token != "" {
		c.csrfToken = token
	}
	return nil
}

// GetEvents retrieves up to limit events from the last within hours.
func (c *Client) GetEvents(ctx context.Context, withinHours, limit int) ([]RawEvent, error) {
	payload := map[string]any{"_limit": limit, "within": withinHours}

	data, err := c.doAPI(ctx, http.MethodPost, c.sitePath("stat/event"), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	var events []RawEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events response: %w", err)
	}
	return events, nil
}

// GetAlarms retrieves IPS/IDS alarms from the last within hours.
func (c *Client) GetAlarms(ctx context.Context, withinHours, limit int) ([]RawAlarm, error) {
	payload := map[string]any{"_limit": limit, "within": withinHours}

	data, err := c.doAPI(ctx, http.MethodPost, c.sitePath("stat/alarm"), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to get alarms: %w", err)
	}

	var alarms []RawAlarm
	if err := json.Unmarshal(data, &alarms); err != nil {
		return nil, fmt.Errorf("failed to decode alarms response: %w", err)
	}
	return alarms, nil
}

// GetDevices retrieves the site's adopted devices with their current stats.
func (c *Client) GetDevices(ctx context.Context) ([]RawDevice, error) {
	data, err := c.doAPI(ctx, http.MethodGet, c.sitePath("stat/device"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	var devices []RawDevice
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("failed to decode devices response: %w", err)
	}
	return devices, nil
}

func (c *Client) sitePath(suffix string) string {
	return fmt.Sprintf("/proxy/network/api/s/%s/%s", c.site, suffix)
}

// doAPI performs an authenticated request and unwraps the response
// envelope. A 401 triggers one re-login and retry before failing.
func (c *Client) doAPI(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	data, status, err := c.attempt(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if err := c.Login(ctx); err != nil {
			return nil, fmt.Errorf("re-authentication failed: %w", err)
		}
		data, status, err = c.attempt(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
	}
	if status >= 400 {
		return nil, fmt.Errorf("controller returned status %d for %s", status, path)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if envelope.Meta.RC != "" && envelope.Meta.RC != "ok" {
		return nil, fmt.Errorf("controller error: %s", envelope.Meta.Message)
	}
	return envelope.Data, nil
}

func (c *Client) attempt(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.csrfToken != "" {
		req.Header.Set("X-Csrf-Token", c.csrfToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}
