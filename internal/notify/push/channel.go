// Package push delivers alerts through the push gateway, the HTTP service
// that owns the device-facing notification pipeline. It implements the
// notification collaborator: permission queries, one-time channel setup, and
// message delivery, all routed through the resilient external.BaseClient.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"zonewatch/internal/external"
	"zonewatch/internal/types"
)

// maxResponseBodyRead bounds how much of a gateway response is read for error
// messages and receipt decoding.
const maxResponseBodyRead = 4096

const (
	defaultChannelID   = "zonewatch-alerts"
	defaultChannelName = "Disaster zone alerts"
)

// Config holds the gateway endpoint and the target device registration.
type Config struct {
	BaseURL     string
	APIKey      types.SecretString
	DeviceToken string
	ChannelID   string
	ChannelName string
}

// Channel is the push gateway notification channel.
type Channel struct {
	http    *external.BaseClient
	cfg     Config
	baseURL string
	logger  types.Logger
}

var _ types.Notifier = (*Channel)(nil)

// NewChannel creates a push gateway channel. The client should come from
// external.NewBaseClient so gateway outages trip the shared breaker instead
// of hanging alert dispatch.
func NewChannel(cfg Config, client *external.BaseClient, logger types.Logger) (*Channel, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("push channel: gateway base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("push channel: invalid gateway base URL: %w", err)
	}
	if cfg.DeviceToken == "" {
		return nil, errors.New("push channel: device token is required")
	}
	if client == nil {
		return nil, errors.New("push channel: http client is required")
	}
	if cfg.ChannelID == "" {
		cfg.ChannelID = defaultChannelID
	}
	if cfg.ChannelName == "" {
		cfg.ChannelName = defaultChannelName
	}

	return &Channel{
		http:    client,
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}, nil
}

// permissionStatus is the gateway's answer to a device permission query.
type permissionStatus struct {
	Granted bool `json:"granted"`
}

// channelSpec is the channel definition installed by EnsureChannel.
type channelSpec struct {
	Name       string `json:"name"`
	Importance string `json:"importance"`
	Vibration  bool   `json:"vibration"`
}

// pushMessage is the delivery payload for one alert.
type pushMessage struct {
	DeviceToken string              `json:"device_token"`
	ChannelID   string              `json:"channel_id"`
	Title       string              `json:"title"`
	Body        string              `json:"body"`
	Sound       bool                `json:"sound"`
	Priority    types.AlertPriority `json:"priority"`
	Data        map[string]string   `json:"data,omitempty"`
}

// sendReceipt carries the gateway-assigned message identifier.
type sendReceipt struct {
	MessageID string `json:"message_id"`
}

// CheckPermission asks the gateway whether the device's notification grant is
// in place. An unregistered device cannot receive anything and counts as
// denied.
func (c *Channel) CheckPermission(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet,
		"/v1/devices/"+url.PathEscape(c.cfg.DeviceToken)+"/permission", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return types.NewPermissionDenied(types.PermissionNotifications,
			errors.New("device is not registered with the push gateway"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return types.NewAppError(types.ErrCodeUpstreamPushGateway,
			fmt.Sprintf("permission query returned %d: %s", resp.StatusCode, truncateBody(body)), nil)
	}

	var status permissionStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamPushGateway,
			"failed to decode permission response", err)
	}
	if !status.Granted {
		return types.NewPermissionDenied(types.PermissionNotifications, nil)
	}
	return nil
}

// EnsureChannel installs the alert channel definition on the gateway. The PUT
// is idempotent; calling it again re-asserts importance and vibration.
func (c *Channel) EnsureChannel(ctx context.Context) error {
	spec := channelSpec{Name: c.cfg.ChannelName, Importance: "high", Vibration: true}
	req, err := c.newRequest(ctx, http.MethodPut,
		"/v1/channels/"+url.PathEscape(c.cfg.ChannelID), spec)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
		return types.NewAppError(types.ErrCodeUpstreamPushGateway,
			fmt.Sprintf("channel setup returned %d: %s", resp.StatusCode, truncateBody(body)), nil)
	}

	c.logger.Info("notification channel ensured", "channel_id", c.cfg.ChannelID)
	return nil
}

// Send delivers one alert to the device.
func (c *Channel) Send(ctx context.Context, alert types.Alert) error {
	msg := pushMessage{
		DeviceToken: c.cfg.DeviceToken,
		ChannelID:   c.cfg.ChannelID,
		Title:       alert.Title,
		Body:        alert.Body,
		Sound:       alert.Sound,
		Priority:    alert.Priority,
		Data:        alert.Data,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/messages", msg)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewAppError(types.ErrCodeUpstreamPushGateway,
			fmt.Sprintf("message delivery returned %d: %s", resp.StatusCode, truncateBody(body)), nil)
	}

	var receipt sendReceipt
	_ = json.Unmarshal(body, &receipt)

	c.logger.Info("push delivered",
		"message_id", receipt.MessageID,
		"priority", string(alert.Priority),
	)
	return nil
}

func (c *Channel) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
				"failed to encode push gateway request", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build push gateway request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey.Unmask())
	}
	return req, nil
}

func truncateBody(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
