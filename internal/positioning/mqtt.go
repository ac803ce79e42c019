// Package positioning implements the positioning collaborator over MQTT.
//
// A device agent (the phone-side companion) publishes permission reports and
// position fixes to retained topics under a per-device prefix; this provider
// subscribes and keeps the latest of each in memory. Region registration works
// the other way around: the provider publishes the armed region set as a
// retained document, the agent arms its geofences from it and publishes
// platform-verified enter/exit signals back. Because the registration document
// is retained on the broker, registration state survives process restarts on
// both sides and is queried from the broker, never from memory.
package positioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"zonewatch/internal/types"
)

// Topic suffixes under the configured device prefix.
const (
	topicPermissions = "permissions"
	topicPosition    = "position"
	topicRegions     = "regions"
	topicSignals     = "signals"
	topicWatch       = "watch"
)

const (
	defaultQoS            = 1
	defaultConnectTimeout = 10 * time.Second
	defaultOpTimeout      = 5 * time.Second
	defaultQueryTimeout   = 3 * time.Second
	defaultMaxFixAge      = 5 * time.Minute
)

// Config holds the broker connection and topic settings for one device.
type Config struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string

	QoS            byte
	ConnectTimeout time.Duration
	OpTimeout      time.Duration
	QueryTimeout   time.Duration

	// MaxFixAge bounds how old the retained position fix may be before
	// CurrentFix reports positioning as unavailable. Zero selects the default;
	// a negative value disables the check.
	MaxFixAge time.Duration
}

func (c Config) withDefaults() Config {
	if c.QoS == 0 {
		c.QoS = defaultQoS
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = defaultOpTimeout
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = defaultQueryTimeout
	}
	if c.MaxFixAge == 0 {
		c.MaxFixAge = defaultMaxFixAge
	}
	return c
}

func (c Config) validate() error {
	if c.BrokerURL == "" {
		return errors.New("positioning: broker URL is required")
	}
	if c.ClientID == "" {
		return errors.New("positioning: client ID is required")
	}
	if c.TopicPrefix == "" {
		return errors.New("positioning: topic prefix is required")
	}
	return nil
}

// permissionReport is the retained document the device agent publishes
// whenever its grant state changes.
type permissionReport struct {
	ForegroundLocation bool      `json:"foreground_location"`
	BackgroundLocation bool      `json:"background_location"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// regionConfig is the retained registration document this provider publishes.
// Its presence on the broker is what "registered" means.
type regionConfig struct {
	Regions      []types.Region `json:"regions"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// watchConfig is the retained cadence document for the foreground watch.
type watchConfig struct {
	IntervalMS int64   `json:"interval_ms"`
	DistanceM  float64 `json:"distance_m"`
}

// Provider implements types.Positioning over an MQTT session with the device
// agent.
type Provider struct {
	client mqtt.Client
	cfg    Config
	clock  types.Clock
	logger types.Logger

	// queryMu serializes transient retained-topic queries, which would
	// otherwise race on the shared topic route.
	queryMu sync.Mutex

	mu          sync.RWMutex
	perms       *permissionReport
	lastFix     *types.PositionFix
	signalFn    types.RegionSignalHandler
	watchers    map[int]types.PositionHandler
	nextWatchID int
}

var _ types.Positioning = (*Provider)(nil)

// New builds a Provider connected to nothing; call Connect before use.
func New(cfg Config, clock types.Clock, logger types.Logger) (*Provider, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := newProvider(nil, cfg, clock, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)

	p.client = mqtt.NewClient(opts)
	return p, nil
}

func newProvider(client mqtt.Client, cfg Config, clock types.Clock, logger types.Logger) *Provider {
	return &Provider{
		client:   client,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
		watchers: make(map[int]types.PositionHandler),
	}
}

// Connect dials the broker and subscribes to the device agent's retained
// report topics. The retained replays seed the permission and fix caches
// before the first caller asks for them.
func (p *Provider) Connect(ctx context.Context) error {
	token := p.client.Connect()
	if err := p.wait(ctx, token, "connect"); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamBroker,
			"failed to connect to positioning broker", err)
	}
	if err := p.subscribeReports(ctx); err != nil {
		return err
	}
	p.logger.Info("positioning broker connected", "prefix", p.cfg.TopicPrefix)
	return nil
}

// Close disconnects from the broker, allowing in-flight work to quiesce.
func (p *Provider) Close() {
	p.client.Disconnect(250)
	p.logger.Info("positioning broker disconnected")
}

// Ping reports broker connectivity for health checks. The client reconnects
// on its own, so a closed connection here is a degraded state rather than a
// permanent one.
func (p *Provider) Ping(_ context.Context) error {
	if !p.client.IsConnectionOpen() {
		return types.NewAppError(types.ErrCodeUpstreamBroker,
			"positioning broker connection is not open", nil)
	}
	return nil
}

func (p *Provider) subscribeReports(ctx context.Context) error {
	token := p.client.Subscribe(p.topic(topicPermissions), p.cfg.QoS, p.onPermissions)
	if err := p.wait(ctx, token, "subscribe permissions"); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamBroker,
			"failed to subscribe to device permission reports", err)
	}
	token = p.client.Subscribe(p.topic(topicPosition), p.cfg.QoS, p.onPosition)
	if err := p.wait(ctx, token, "subscribe position"); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamBroker,
			"failed to subscribe to device position reports", err)
	}
	return nil
}

// CheckPermission consults the device agent's latest retained report. A
// missing report is treated as denied; for a safety service an unverifiable
// grant must not pass.
func (p *Provider) CheckPermission(_ context.Context, scope types.PermissionScope) error {
	p.mu.RLock()
	report := p.perms
	p.mu.RUnlock()

	if report == nil {
		return types.NewPermissionDenied(scope,
			errors.New("no permission report received from device agent"))
	}

	var granted bool
	switch scope {
	case types.PermissionForeground:
		granted = report.ForegroundLocation
	case types.PermissionBackground:
		granted = report.BackgroundLocation
	default:
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("unknown permission scope %q", scope), nil)
	}
	if !granted {
		return types.NewPermissionDenied(scope, nil)
	}
	return nil
}

// CurrentFix returns the latest cached fix, rejecting stale ones.
func (p *Provider) CurrentFix(_ context.Context) (types.PositionFix, error) {
	p.mu.RLock()
	fix := p.lastFix
	p.mu.RUnlock()

	if fix == nil {
		return types.PositionFix{}, types.NewAppError(types.ErrCodePositioningUnavailable,
			"no position fix received from device agent", nil)
	}
	if p.cfg.MaxFixAge > 0 {
		if age := p.clock.Now().Sub(fix.Timestamp); age > p.cfg.MaxFixAge {
			return types.PositionFix{}, types.NewAppError(types.ErrCodePositioningUnavailable,
				fmt.Sprintf("last position fix is stale (%s old)", age.Round(time.Second)), nil)
		}
	}
	return *fix, nil
}

// RegisterRegionWatch publishes the retained registration document and routes
// incoming signals to the handler. A retained publish replaces any prior
// registration outright.
func (p *Provider) RegisterRegionWatch(ctx context.Context, regions []types.Region, handler types.RegionSignalHandler) error {
	p.mu.Lock()
	p.signalFn = handler
	p.mu.Unlock()

	token := p.client.Subscribe(p.topic(topicSignals), p.cfg.QoS, p.onSignal)
	if err := p.wait(ctx, token, "subscribe signals"); err != nil {
		p.clearSignalHandler()
		return types.NewAppError(types.ErrCodePositioningUnavailable,
			"failed to subscribe to region signals", err)
	}

	doc := regionConfig{Regions: regions, RegisteredAt: p.clock.Now()}
	payload, err := json.Marshal(doc)
	if err != nil {
		p.clearSignalHandler()
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to encode region registration", err)
	}

	token = p.client.Publish(p.topic(topicRegions), p.cfg.QoS, true, payload)
	if err := p.wait(ctx, token, "publish region registration"); err != nil {
		p.client.Unsubscribe(p.topic(topicSignals)).WaitTimeout(p.cfg.OpTimeout)
		p.clearSignalHandler()
		return types.NewAppError(types.ErrCodePositioningUnavailable,
			"failed to publish region registration", err)
	}

	p.logger.Info("background region watch registered", "regions", len(regions))
	return nil
}

// UnregisterRegionWatch clears the retained registration document and drops
// the signal route.
func (p *Provider) UnregisterRegionWatch(ctx context.Context) error {
	token := p.client.Publish(p.topic(topicRegions), p.cfg.QoS, true, []byte{})
	if err := p.wait(ctx, token, "clear region registration"); err != nil {
		return types.NewAppError(types.ErrCodePositioningUnavailable,
			"failed to clear region registration", err)
	}

	token = p.client.Unsubscribe(p.topic(topicSignals))
	if err := p.wait(ctx, token, "unsubscribe signals"); err != nil {
		return types.NewAppError(types.ErrCodePositioningUnavailable,
			"failed to unsubscribe from region signals", err)
	}

	p.clearSignalHandler()
	p.logger.Info("background region watch unregistered")
	return nil
}

// RegionWatchRegistered asks the broker whether a retained registration
// document exists: subscribe transiently, wait one query window for the
// retained replay, and report its presence. No replay means no registration.
func (p *Provider) RegionWatchRegistered(ctx context.Context) (bool, error) {
	p.queryMu.Lock()
	defer p.queryMu.Unlock()

	replies := make(chan []byte, 1)
	topic := p.topic(topicRegions)
	token := p.client.Subscribe(topic, p.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case replies <- msg.Payload():
		default:
		}
	})
	if err := p.wait(ctx, token, "query region registration"); err != nil {
		return false, types.NewAppError(types.ErrCodePositioningUnavailable,
			"failed to query region registration", err)
	}
	defer p.client.Unsubscribe(topic).WaitTimeout(p.cfg.OpTimeout)

	select {
	case payload := <-replies:
		return len(payload) > 0, nil
	case <-time.After(p.cfg.QueryTimeout):
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// WatchPosition publishes the retained cadence document so the device agent
// tightens its reporting, then fans every subsequent fix out to the handler.
func (p *Provider) WatchPosition(ctx context.Context, cadence types.WatchCadence, handler types.PositionHandler) (types.WatchSubscription, error) {
	doc := watchConfig{IntervalMS: cadence.Interval.Milliseconds(), DistanceM: cadence.DistanceM}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to encode watch cadence", err)
	}
	token := p.client.Publish(p.topic(topicWatch), p.cfg.QoS, true, payload)
	if err := p.wait(ctx, token, "publish watch cadence"); err != nil {
		return nil, types.NewAppError(types.ErrCodePositioningUnavailable,
			"failed to configure foreground position watch", err)
	}

	p.mu.Lock()
	id := p.nextWatchID
	p.nextWatchID++
	p.watchers[id] = handler
	p.mu.Unlock()

	p.logger.Info("foreground position watch started",
		"interval", cadence.Interval, "distance_m", cadence.DistanceM)
	return &watchHandle{provider: p, id: id}, nil
}

// watchHandle is the subscription handle returned by WatchPosition.
type watchHandle struct {
	provider *Provider
	id       int
	once     sync.Once
}

// Stop removes the handler; when it was the last one the retained cadence
// document is cleared so the device agent can relax its reporting.
func (h *watchHandle) Stop() {
	h.once.Do(func() {
		p := h.provider
		p.mu.Lock()
		delete(p.watchers, h.id)
		last := len(p.watchers) == 0
		p.mu.Unlock()

		if last {
			p.client.Publish(p.topic(topicWatch), p.cfg.QoS, true, []byte{}).WaitTimeout(p.cfg.OpTimeout)
		}
		p.logger.Info("foreground position watch stopped")
	})
}

func (p *Provider) onPermissions(_ mqtt.Client, msg mqtt.Message) {
	var report permissionReport
	if err := json.Unmarshal(msg.Payload(), &report); err != nil {
		p.logger.Warn("dropping malformed permission report", "error", err, "topic", msg.Topic())
		return
	}
	p.mu.Lock()
	p.perms = &report
	p.mu.Unlock()
	p.logger.Info("device permission report updated",
		"foreground", report.ForegroundLocation, "background", report.BackgroundLocation)
}

func (p *Provider) onPosition(_ mqtt.Client, msg mqtt.Message) {
	var fix types.PositionFix
	if err := json.Unmarshal(msg.Payload(), &fix); err != nil {
		p.logger.Warn("dropping malformed position fix", "error", err, "topic", msg.Topic())
		return
	}

	p.mu.Lock()
	p.lastFix = &fix
	handlers := make([]types.PositionHandler, 0, len(p.watchers))
	for _, h := range p.watchers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	ctx := context.Background()
	for _, h := range handlers {
		h(ctx, fix)
	}
}

func (p *Provider) onSignal(_ mqtt.Client, msg mqtt.Message) {
	var sig types.RegionSignal
	if err := json.Unmarshal(msg.Payload(), &sig); err != nil {
		p.logger.Warn("dropping malformed region signal", "error", err, "topic", msg.Topic())
		return
	}

	p.mu.RLock()
	handler := p.signalFn
	p.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(context.Background(), sig)
}

// onConnect re-subscribes everything after an automatic reconnect; paho does
// not restore routes for a clean session.
func (p *Provider) onConnect(client mqtt.Client) {
	p.logger.Info("positioning broker connection established")

	subs := map[string]mqtt.MessageHandler{
		p.topic(topicPermissions): p.onPermissions,
		p.topic(topicPosition):    p.onPosition,
	}
	p.mu.RLock()
	if p.signalFn != nil {
		subs[p.topic(topicSignals)] = p.onSignal
	}
	p.mu.RUnlock()

	for topic, handler := range subs {
		token := client.Subscribe(topic, p.cfg.QoS, handler)
		if token.WaitTimeout(p.cfg.OpTimeout) && token.Error() != nil {
			p.logger.Error("failed to re-subscribe after reconnect",
				"topic", topic, "error", token.Error())
		}
	}
}

func (p *Provider) onConnectionLost(_ mqtt.Client, err error) {
	p.logger.Error("positioning broker connection lost", "error", err)
}

func (p *Provider) clearSignalHandler() {
	p.mu.Lock()
	p.signalFn = nil
	p.mu.Unlock()
}

func (p *Provider) topic(suffix string) string {
	return strings.TrimSuffix(p.cfg.TopicPrefix, "/") + "/" + suffix
}

// wait blocks on a paho token, honoring the context and the operation timeout.
func (p *Provider) wait(ctx context.Context, token mqtt.Token, op string) error {
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-time.After(p.cfg.OpTimeout):
		return fmt.Errorf("%s: timeout after %v", op, p.cfg.OpTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
